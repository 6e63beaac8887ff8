package webpage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const productPage = `<!DOCTYPE html>
<html>
<head>
<title>Aurora Desk Lamp | Shelfwise</title>
<meta property="og:title" content="Aurora Desk Lamp">
<meta property="og:description" content="Adjustable red plastic desk lamp with USB charging port.">
<meta property="og:site_name" content="Shelfwise">
</head>
<body>
<article>
<h1>Aurora Desk Lamp</h1>
<p>The Aurora desk lamp combines a matte red plastic shade with a weighted
steel base. An integrated USB port charges your phone while you work, and
the arm adjusts through 120 degrees.</p>
<p>Dimensions: 12.5 x 4 x 4 inches. Weighs 1.2 kg.</p>
</article>
</body>
</html>`

func TestScraperFetchDistillsProductPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(productPage))
	}))
	defer server.Close()

	scraper := NewScraper(5 * time.Second)
	page, err := scraper.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if !strings.Contains(page.Title, "Aurora Desk Lamp") {
		t.Errorf("title = %q, want Aurora Desk Lamp", page.Title)
	}
	if page.Description == "" {
		t.Error("description is empty")
	}
	if page.SiteName != "Shelfwise" {
		t.Errorf("site name = %q, want Shelfwise", page.SiteName)
	}
}

func TestScraperFallsBackToMetaTags(t *testing.T) {
	// Minimal head-only page: nothing for readability to distill
	html := `<html><head>
	<title>Steel Shelf Bracket</title>
	<meta name="description" content="Heavy duty steel bracket, holds 50 lbs.">
	</head><body></body></html>`

	scraper := NewScraper(0)
	page, err := scraper.Parse("https://shop.example.com/bracket", []byte(html))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if page.Title != "Steel Shelf Bracket" {
		t.Errorf("title = %q, want Steel Shelf Bracket", page.Title)
	}
	if page.Description != "Heavy duty steel bracket, holds 50 lbs." {
		t.Errorf("description = %q", page.Description)
	}
}

func TestScraperFetchRejectsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	scraper := NewScraper(5 * time.Second)
	if _, err := scraper.Fetch(context.Background(), server.URL); err == nil {
		t.Error("Fetch() succeeded on 500 response, want error")
	}
}

func TestScraperFetchRejectsBadSchemes(t *testing.T) {
	scraper := NewScraper(0)
	if _, err := scraper.Fetch(context.Background(), "file:///etc/passwd"); err == nil {
		t.Error("Fetch() accepted file:// URL, want error")
	}
}

func TestScraperRejectsEmptyPages(t *testing.T) {
	scraper := NewScraper(0)
	if _, err := scraper.Parse("https://shop.example.com/blank", []byte("<html><body></body></html>")); err == nil {
		t.Error("Parse() succeeded on empty page, want error")
	}
}

func TestTruncateAtWord(t *testing.T) {
	got := truncateAtWord("red plastic lamp with charging port", 20)
	if len(got) > 20 {
		t.Errorf("truncated length = %d, want <= 20", len(got))
	}
	if strings.HasSuffix(got, " ") {
		t.Errorf("truncated text %q has trailing space", got)
	}
	if got != "red plastic lamp" {
		t.Errorf("truncateAtWord = %q, want %q", got, "red plastic lamp")
	}
}
