package engine

import (
	"context"
	"net/url"
	"path"
)

// Candidate is a not-yet-downloaded reference to a discovered image
type Candidate struct {
	SourceEngine      string
	SourceURL         string
	SuggestedFilename string
}

// Engine is a search backend that yields candidate image URLs for a query,
// ordered by the backend's native relevance ranking
type Engine interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// suggestedFilename derives a filename hint from the URL path
func suggestedFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
