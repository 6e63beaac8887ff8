/**
 * Product Page Scraper for PhotoScan Worker
 *
 * Fetches a product listing page and distills it into title and description
 * context for the attribute extractors. Listing copy often names the brand,
 * color, and materials that never appear on the photographed label itself.
 */

package webpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

const (
	defaultFetchTimeout  = 15 * time.Second
	maxPageBytes         = 10 << 20
	maxDescriptionLength = 500
)

// PageContext is the extraction context distilled from one product page.
type PageContext struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	SiteName    string `json:"siteName,omitempty"`
}

// Scraper fetches and distills product listing pages.
type Scraper struct {
	client *http.Client
}

// NewScraper creates a scraper with the given timeout. Zero selects the
// default.
func NewScraper(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Scraper{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the page and distills it into a PageContext.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) (*PageContext, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "PhotoScanWorker/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch page, status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read page body: %w", err)
	}

	return s.Parse(pageURL, body)
}

// Parse distills raw HTML into a PageContext. Readability finds the main
// content; meta tags fill in whatever it misses.
func (s *Scraper) Parse(pageURL string, html []byte) (*PageContext, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	page := &PageContext{URL: pageURL}

	readabilityParser := readability.NewParser()
	article, articleErr := readabilityParser.Parse(strings.NewReader(string(html)), parsed)
	if articleErr == nil {
		page.Title = normalizeText(article.Title)
		page.Description = normalizeText(article.Excerpt)
		page.SiteName = normalizeText(article.SiteName)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		if articleErr != nil {
			return nil, fmt.Errorf("failed to parse HTML: %w", err)
		}
		return page, nil
	}

	if page.Title == "" {
		page.Title = normalizeText(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	}
	if page.Title == "" {
		page.Title = normalizeText(doc.Find("title").First().Text())
	}

	if page.Description == "" {
		page.Description = normalizeText(doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	}
	if page.Description == "" {
		page.Description = normalizeText(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	}
	if page.Description == "" && articleErr == nil {
		page.Description = normalizeText(article.TextContent)
	}

	if page.SiteName == "" {
		page.SiteName = normalizeText(doc.Find(`meta[property="og:site_name"]`).AttrOr("content", ""))
	}

	if len(page.Description) > maxDescriptionLength {
		page.Description = truncateAtWord(page.Description, maxDescriptionLength)
	}

	if page.Title == "" && page.Description == "" {
		return nil, fmt.Errorf("page yielded no usable title or description")
	}

	return page, nil
}

// normalizeText collapses runs of whitespace into single spaces.
func normalizeText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

// truncateAtWord cuts text to at most limit bytes without splitting a word.
func truncateAtWord(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
