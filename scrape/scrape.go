// Package scrape reads published Notion pages as plain HTML when the API is
// not reachable.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/foomo/notion-mcp/notion"
	"github.com/foomo/notion-mcp/service/vo"
	"golang.org/x/net/html"
)

// ErrNoRecordMap is returned by Fetcher when a page embeds no record map.
var ErrNoRecordMap = errors.New("page embeds no record map")

const maxBodySize = 16 << 20

var defaultSelectors = []string{"main", "body"}

// Page is a scraped page. Markdown is only filled when RecordMap is nil.
type Page struct {
	URL       string
	Summary   vo.ContentSummary
	Markdown  vo.Markdown
	RecordMap *notion.RecordMap
}

// Scrape downloads url and reads the record map embedded in its scripts.
// Without one the node picked by selector is converted to markdown; an empty
// selector tries main, then body.
func Scrape(ctx context.Context, httpClient *http.Client, url, selector string) (*Page, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	// Download HTML from URL
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download HTML: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Parse HTML
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{
		URL: url,
		Summary: vo.ContentSummary{
			Title:       extractTitle(doc),
			Description: extractMetaDescription(doc),
			Keywords:    extractMetaKeywords(doc),
		},
	}

	if raw := extractRecordMapJSON(doc); raw != nil {
		rm := notion.NewRecordMap()
		if err := json.Unmarshal(raw, rm); err == nil && rm.Len() > 0 {
			page.RecordMap = rm
			return page, nil
		}
	}

	selectedNode, err := selectNode(doc, selector)
	if err != nil {
		return nil, err
	}

	// Convert HTML node to markdown
	markdownBytes, err := htmltomarkdown.ConvertNode(selectedNode)
	if err != nil {
		return nil, fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	page.Markdown = vo.Markdown(strings.TrimSpace(string(markdownBytes)))
	return page, nil
}

func selectNode(doc *html.Node, selector string) (*html.Node, error) {
	if selector != "" {
		n, err := extractNodeBySelector(doc, selector)
		if err != nil {
			return nil, fmt.Errorf("failed to extract node with selector '%s': %w", selector, err)
		}
		return n, nil
	}
	for _, s := range defaultSelectors {
		if n, err := extractNodeBySelector(doc, s); err == nil {
			return n, nil
		}
	}
	return doc, nil
}

// Fetcher reads public pages below baseURL.
type Fetcher struct {
	httpClient *http.Client
	baseURL    string
	selector   string
}

func NewFetcher(httpClient *http.Client, baseURL, selector string) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		selector:   selector,
	}
}

// PageURL returns ref unchanged when it is already a URL, otherwise the
// public page address of the normalized id.
func (f *Fetcher) PageURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return f.baseURL + "/" + notion.NormalizeID(ref)
}

func (f *Fetcher) Page(ctx context.Context, ref string) (*Page, error) {
	return Scrape(ctx, f.httpClient, f.PageURL(ref), f.selector)
}

// FetchContentGraph returns the record map embedded in the page behind ref.
func (f *Fetcher) FetchContentGraph(ctx context.Context, ref string) (*notion.RecordMap, error) {
	page, err := f.Page(ctx, ref)
	if err != nil {
		return nil, err
	}
	if page.RecordMap == nil {
		return nil, fmt.Errorf("%s: %w", page.URL, ErrNoRecordMap)
	}
	return page.RecordMap, nil
}
