package tools

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/domain"
)

// duckDuckGoHTMLEndpoint is DuckDuckGo's non-JS HTML results page, scraped
// as the last-resort generic search provider when no JSON search API is
// configured or reachable (spec §4.6).
const duckDuckGoHTMLEndpoint = "https://html.duckduckgo.com/html/"

// executeDuckDuckGoFallback fetches DuckDuckGo's HTML results page for
// query and extracts up to maxSnippetsPerProvider result links and
// snippets. Any failure collapses to a single failed snippet rather than
// propagating an error, matching every other provider path.
func (e *Executor) executeDuckDuckGoFallback(ctx context.Context, tool, query string) []domain.ToolSnippet {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, duckDuckGoHTMLEndpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return []domain.ToolSnippet{domain.FailedToolSnippet(tool, "generic")}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; bfsi-qa-core/1.0)")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return []domain.ToolSnippet{domain.FailedToolSnippet(tool, "generic")}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return []domain.ToolSnippet{domain.FailedToolSnippet(tool, "generic")}
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return []domain.ToolSnippet{domain.FailedToolSnippet(tool, "generic")}
	}

	results := extractDuckDuckGoResults(doc, e.maxSnippetsPerProvider)
	if len(results) == 0 {
		return []domain.ToolSnippet{domain.FailedToolSnippet(tool, "generic")}
	}

	now := time.Now().Unix()
	snippets := make([]domain.ToolSnippet, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, domain.ToolSnippet{
			Tool:      tool,
			Category:  "generic",
			Text:      e.masker.Mask(r.text),
			URL:       r.url,
			FetchedAt: now,
		})
	}
	return snippets
}

type ddgResult struct {
	text string
	url  string
}

// extractDuckDuckGoResults walks the parsed HTML tree looking for anchors
// with class "result__a" (the result title/link) and the following
// "result__snippet" element, the way the result markup of DuckDuckGo's
// lite HTML page is structured.
func extractDuckDuckGoResults(doc *html.Node, max int) []ddgResult {
	var results []ddgResult

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= max {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClassContaining(n, "result__a") {
			title := collectText(n)
			href := attrValue(n, "href")
			snippet := findSiblingSnippet(n)
			if title != "" && href != "" {
				text := title
				if snippet != "" {
					text = title + " — " + snippet
				}
				results = append(results, ddgResult{text: text, url: href})
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
			if len(results) >= max {
				return
			}
		}
	}
	walk(doc)
	return results
}

// findSiblingSnippet looks forward through the anchor's ancestors for the
// nearest following element carrying class "result__snippet".
func findSiblingSnippet(anchor *html.Node) string {
	container := anchor.Parent
	for container != nil {
		for sib := container.NextSibling; sib != nil; sib = sib.NextSibling {
			if sib.Type == html.ElementNode && hasClassContaining(sib, "result__snippet") {
				return collectText(sib)
			}
		}
		container = container.Parent
	}
	return ""
}

func hasClassContaining(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" && strings.Contains(attr.Val, class) {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func collectText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
