package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	errs "cropcrawler/pkg/errors"
	"cropcrawler/pkg/logger"
)

// imageURLPattern matches direct image links embedded in a results page
var imageURLPattern = regexp.MustCompile(`https?://[^"'\\\s]+\.(?:jpg|jpeg|png|webp)`)

// Google searches Google Images by scraping the results page
type Google struct {
	httpClient *http.Client
	baseURL    string
	logger     logger.Logger
}

// NewGoogle creates a Google Images engine
func NewGoogle(timeout time.Duration, log logger.Logger) *Google {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Google{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://www.google.com",
		logger:     log,
	}
}

// SetBaseURL overrides the search endpoint, used in tests
func (g *Google) SetBaseURL(base string) {
	g.baseURL = strings.TrimRight(base, "/")
}

func (g *Google) Name() string {
	return "google"
}

// Search fetches the image-search results page and extracts direct image
// URLs from it
func (g *Google) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	searchURL := fmt.Sprintf("%s/search?q=%s&tbm=isch&tbs=isz:l", g.baseURL, url.QueryEscape(query))

	body, err := fetchResultsPage(ctx, g.httpClient, searchURL)
	if err != nil {
		return nil, err
	}

	candidates := g.extract(body, limit)
	g.logger.InfoWithFields("google search finished", map[string]interface{}{
		"query":      query,
		"candidates": len(candidates),
	})
	return candidates, nil
}

// extract pulls image URLs out of the results HTML. Direct links inside
// <img> tags are preferred; the raw-text regex pass picks up URLs that
// only appear inside inline JSON blobs.
func (g *Google) extract(body string, limit int) []Candidate {
	var urls []string
	seen := make(map[string]bool)

	add := func(raw string) {
		if raw == "" || seen[raw] || !isImageURL(raw) {
			return
		}
		seen[raw] = true
		urls = append(urls, raw)
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		doc.Find("img").Each(func(_ int, s *goquery.Selection) {
			if src, ok := s.Attr("src"); ok && strings.HasPrefix(src, "http") {
				add(src)
			}
			if src, ok := s.Attr("data-src"); ok && strings.HasPrefix(src, "http") {
				add(src)
			}
		})
	}

	for _, raw := range imageURLPattern.FindAllString(body, -1) {
		add(raw)
	}

	if limit > 0 && len(urls) > limit {
		urls = urls[:limit]
	}

	candidates := make([]Candidate, 0, len(urls))
	for _, u := range urls {
		candidates = append(candidates, Candidate{
			SourceEngine:      "google",
			SourceURL:         u,
			SuggestedFilename: suggestedFilename(u),
		})
	}
	return candidates
}

// isImageURL reports whether the URL ends in a known image extension
func isImageURL(raw string) bool {
	lower := strings.ToLower(raw)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// fetchResultsPage performs a search-page GET with browser-like headers and
// classifies failures as engine unavailability
func fetchResultsPage(ctx context.Context, client *http.Client, searchURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", errs.New(errs.ErrorTypeEngineUnavailable, fmt.Sprintf("invalid search URL: %v", err))
	}

	req.Header.Set("User-Agent", RandomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return "", errs.New(errs.ErrorTypeEngineUnavailable, fmt.Sprintf("search request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errs.NewWithCode(errs.ErrorTypeEngineUnavailable,
			"search returned non-200 status", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.New(errs.ErrorTypeEngineUnavailable, fmt.Sprintf("reading search response: %v", err))
	}

	return string(body), nil
}
