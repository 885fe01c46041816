package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	nurl "net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const maxFetchBytes = 2 << 20 // 2 MiB of HTML is plenty for article extraction

var reSpaces = regexp.MustCompile(`\s+`)

// WebsiteFetcher retrieves a page and extracts its readable text so the
// indexer receives plain content. File and record parsing happen elsewhere;
// this covers only the website source type.
type WebsiteFetcher struct {
	httpClient *http.Client
}

// Page is the extracted readable content of one URL.
type Page struct {
	URL   string
	Title string
	Text  string
}

// NewWebsiteFetcher builds a fetcher with the given timeout.
func NewWebsiteFetcher(timeout time.Duration) *WebsiteFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &WebsiteFetcher{httpClient: &http.Client{Timeout: timeout}}
}

// Fetch downloads the page and runs readability extraction over it.
func (f *WebsiteFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	parsed, err := nurl.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "notare-indexer/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return nil, fmt.Errorf("extract readable content from %s: %w", rawURL, err)
	}

	text := strings.TrimSpace(reSpaces.ReplaceAllString(article.TextContent, " "))
	if text == "" {
		return nil, fmt.Errorf("no readable text at %s", rawURL)
	}
	return &Page{
		URL:   rawURL,
		Title: strings.TrimSpace(article.Title),
		Text:  text,
	}, nil
}
