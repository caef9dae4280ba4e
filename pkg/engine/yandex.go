package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"cropcrawler/pkg/logger"
)

// Yandex stores original image URLs inside a JSON structure embedded in
// the results HTML
var yandexOrigURLPattern = regexp.MustCompile(`"orig_url":"(https?://[^"]+\.(?:jpg|jpeg|png|webp))"`)

// Yandex searches Yandex Images by scraping the results page
type Yandex struct {
	httpClient *http.Client
	baseURL    string
	logger     logger.Logger
}

// NewYandex creates a Yandex Images engine
func NewYandex(timeout time.Duration, log logger.Logger) *Yandex {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Yandex{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://yandex.ru",
		logger:     log,
	}
}

// SetBaseURL overrides the search endpoint, used in tests
func (y *Yandex) SetBaseURL(base string) {
	y.baseURL = strings.TrimRight(base, "/")
}

func (y *Yandex) Name() string {
	return "yandex"
}

// Search fetches the image-search results page and extracts original image
// URLs from the embedded JSON
func (y *Yandex) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	searchURL := fmt.Sprintf("%s/images/search?text=%s", y.baseURL, url.QueryEscape(query))

	body, err := fetchResultsPage(ctx, y.httpClient, searchURL)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	seen := make(map[string]bool)
	for _, match := range yandexOrigURLPattern.FindAllStringSubmatch(body, -1) {
		// Strip backslash escaping left over from the JSON encoding
		raw := strings.ReplaceAll(match[1], "\\", "")
		if seen[raw] || !isImageURL(raw) {
			continue
		}
		seen[raw] = true
		candidates = append(candidates, Candidate{
			SourceEngine:      "yandex",
			SourceURL:         raw,
			SuggestedFilename: suggestedFilename(raw),
		})
		if limit > 0 && len(candidates) >= limit {
			break
		}
	}

	y.logger.InfoWithFields("yandex search finished", map[string]interface{}{
		"query":      query,
		"candidates": len(candidates),
	})
	return candidates, nil
}
