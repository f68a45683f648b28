package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/go-shiori/go-readability"

	"github.com/jeanpaul/fleet/internal/engine"
)

const (
	defaultSearchEndpoint = "https://html.duckduckgo.com/html/"
	userAgent             = "Mozilla/5.0 (compatible; fleet/1.0)"
	maxFetchBytes         = 512 << 10
	maxFetchChars         = 8000
)

// --- web_search ---

// WebSearchTool queries DuckDuckGo's HTML endpoint.
type WebSearchTool struct {
	// Endpoint overrides the search URL. Empty uses DuckDuckGo.
	Endpoint string
	Client   *http.Client
}

type webSearchArgs struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results,omitempty"`
}

func (w *WebSearchTool) Name() string { return "web_search" }
func (w *WebSearchTool) Description() string {
	return "Search the web. Returns titles, URLs and snippets for each result."
}

func (w *WebSearchTool) Parameters() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":       map[string]any{"type": "string", "minLength": 1, "description": "Search query"},
			"num_results": map[string]any{"type": "integer", "minimum": 1, "maximum": 20, "description": "Max results to return (default 8)"},
		},
		"required": []string{"query"},
	}
}

func (w *WebSearchTool) Announce(callID, rawArgs string) engine.EventMsg {
	var args webSearchArgs
	_ = json.Unmarshal([]byte(rawArgs), &args)
	return engine.WebSearchBegin{CallID: callID, Query: args.Query}
}

func (w *WebSearchTool) Execute(ctx context.Context, rawArgs string) (Result, error) {
	var args webSearchArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return Result{Error: "invalid arguments: " + err.Error()}, nil
	}
	if args.NumResults == 0 {
		args.NumResults = 8
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	endpoint := w.Endpoint
	if endpoint == "" {
		endpoint = defaultSearchEndpoint
	}
	body, _, err := get(ctx, httpClient(w.Client), endpoint+"?q="+url.QueryEscape(args.Query))
	if err != nil {
		return Result{Error: "search failed: " + err.Error()}, nil
	}

	results := parseDDGResults(string(body), args.NumResults)
	if len(results) == 0 {
		return Result{Output: "No results found for: " + args.Query}, nil
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "Result %d:\nTitle: %s\nURL: %s\nSnippet: %s\n\n", i+1, r.title, r.url, r.snippet)
	}
	return Result{Output: sb.String()}, nil
}

type searchResult struct {
	title   string
	url     string
	snippet string
}

var (
	ddgResultRe  = regexp.MustCompile(`<a rel="nofollow" class="result__a" href="([^"]*)"[^>]*>(.*?)</a>`)
	ddgSnippetRe = regexp.MustCompile(`<a class="result__snippet"[^>]*>(.*?)</a>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	htmlEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&apos;", "'", "&nbsp;", " ")
)

func parseDDGResults(html string, max int) []searchResult {
	links := ddgResultRe.FindAllStringSubmatch(html, max)
	snippets := ddgSnippetRe.FindAllStringSubmatch(html, max)

	var results []searchResult
	for i, link := range links {
		href := link[1]
		// DuckDuckGo wraps result URLs in a redirect.
		if u, err := url.Parse(href); err == nil {
			if actual := u.Query().Get("uddg"); actual != "" {
				href = actual
			}
		}
		snippet := ""
		if i < len(snippets) {
			snippet = stripHTML(snippets[i][1])
		}
		results = append(results, searchResult{title: stripHTML(link[2]), url: href, snippet: snippet})
	}
	return results
}

func stripHTML(s string) string {
	return strings.TrimSpace(htmlEntities.Replace(htmlTagRe.ReplaceAllString(s, "")))
}

// --- web_fetch ---

// WebFetchTool downloads a page. HTML is reduced to its main article and
// converted to Markdown.
type WebFetchTool struct {
	Client *http.Client
}

type webFetchArgs struct {
	URL string `json:"url"`
}

func (w *WebFetchTool) Name() string { return "web_fetch" }
func (w *WebFetchTool) Description() string {
	return "Fetch a URL and return its main content. HTML pages are returned as Markdown."
}

func (w *WebFetchTool) Parameters() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "minLength": 1, "description": "The URL to fetch"},
		},
		"required": []string{"url"},
	}
}

func (w *WebFetchTool) Execute(ctx context.Context, rawArgs string) (Result, error) {
	var args webFetchArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return Result{Error: "invalid arguments: " + err.Error()}, nil
	}
	pageURL, err := url.Parse(args.URL)
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") {
		return Result{Error: fmt.Sprintf("invalid url %q", args.URL)}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	body, contentType, err := get(ctx, httpClient(w.Client), args.URL)
	if err != nil {
		return Result{Error: "fetch failed: " + err.Error()}, nil
	}

	content := string(body)
	if strings.Contains(contentType, "html") {
		content = pageToMarkdown(content, pageURL)
	}
	if len(content) > maxFetchChars {
		content = content[:maxFetchChars] + "\n\n[... truncated]"
	}
	return Result{Output: content}, nil
}

// pageToMarkdown extracts the readable part of page. When extraction fails
// the tag-stripped text is returned instead.
func pageToMarkdown(page string, pageURL *url.URL) string {
	article, err := readability.FromReader(strings.NewReader(page), pageURL)
	if err != nil {
		return stripHTML(page)
	}
	converter := md.NewConverter(pageURL.Host, true, nil)
	markdown, err := converter.ConvertString(article.Content)
	if err != nil {
		markdown = article.TextContent
	}
	if article.Title == "" {
		return strings.TrimSpace(markdown)
	}
	return fmt.Sprintf("# %s\n\n%s", article.Title, strings.TrimSpace(markdown))
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}

func get(ctx context.Context, client *http.Client, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain,application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
