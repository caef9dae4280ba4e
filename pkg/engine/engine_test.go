package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errs "cropcrawler/pkg/errors"
	"cropcrawler/pkg/logger"
)

func TestGoogleSearchExtractsImageURLs(t *testing.T) {
	page := `<html><body>
		<img src="https://farm.example.com/photos/rust1.jpg">
		<img data-src="https://farm.example.com/photos/rust2.png" src="data:image/gif;base64,R0lGOD">
		<img src="https://farm.example.com/logo.svg">
		<script>var data = ["https://cdn.example.com/leaf.webp"];</script>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" {
			t.Error("Expected query parameter to be set")
		}
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	google := NewGoogle(5*time.Second, nil)
	google.SetBaseURL(server.URL)

	candidates, err := google.Search(context.Background(), "ржавчина пшеница", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	want := []string{
		"https://farm.example.com/photos/rust1.jpg",
		"https://farm.example.com/photos/rust2.png",
		"https://cdn.example.com/leaf.webp",
	}
	if len(candidates) != len(want) {
		t.Fatalf("Expected %d candidates, got %d", len(want), len(candidates))
	}
	for i, url := range want {
		if candidates[i].SourceURL != url {
			t.Errorf("Candidate %d: expected %s, got %s", i, url, candidates[i].SourceURL)
		}
		if candidates[i].SourceEngine != "google" {
			t.Errorf("Candidate %d: expected engine google, got %s", i, candidates[i].SourceEngine)
		}
	}

	if candidates[0].SuggestedFilename != "rust1.jpg" {
		t.Errorf("Expected suggested filename rust1.jpg, got %s", candidates[0].SuggestedFilename)
	}
}

func TestGoogleSearchHonorsLimit(t *testing.T) {
	page := ""
	for i := 0; i < 20; i++ {
		page += fmt.Sprintf(`<img src="https://example.com/img%d.jpg">`, i)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	google := NewGoogle(5*time.Second, nil)
	google.SetBaseURL(server.URL)

	candidates, err := google.Search(context.Background(), "wheat", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(candidates) != 5 {
		t.Errorf("Expected 5 candidates, got %d", len(candidates))
	}
}

func TestGoogleSearchEngineUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	google := NewGoogle(5*time.Second, nil)
	google.SetBaseURL(server.URL)

	_, err := google.Search(context.Background(), "wheat", 5)
	if err == nil {
		t.Fatal("Expected error for non-200 response")
	}

	pipeErr, ok := err.(*errs.Error)
	if !ok {
		t.Fatalf("Expected typed error, got %T", err)
	}
	if pipeErr.Type != errs.ErrorTypeEngineUnavailable {
		t.Errorf("Expected engine_unavailable, got %s", pipeErr.Type)
	}
	if pipeErr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected code 429, got %d", pipeErr.Code)
	}
}

func TestYandexSearchExtractsOrigURLs(t *testing.T) {
	page := `<html><body><div data-state='{"items":[
		{"orig_url":"https://fields.example.com/orig/septoria_full.jpg","thumb":"x"},
		{"orig_url":"https://fields.example.com/orig/septoria_full.jpg","thumb":"y"},
		{"orig_url":"https://fields.example.com/orig/mildew.png"},
		{"orig_url":"https://fields.example.com/page.html"}
	]}'></div></body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("text") == "" {
			t.Error("Expected text parameter to be set")
		}
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	yandex := NewYandex(5*time.Second, nil)
	yandex.SetBaseURL(server.URL)

	candidates, err := yandex.Search(context.Background(), "септориоз пшеница", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	// Duplicate orig_url collapses, the HTML page link is dropped
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].SourceURL != "https://fields.example.com/orig/septoria_full.jpg" {
		t.Errorf("Unexpected first candidate: %s", candidates[0].SourceURL)
	}
	if candidates[1].SourceURL != "https://fields.example.com/orig/mildew.png" {
		t.Errorf("Unexpected second candidate: %s", candidates[1].SourceURL)
	}
	if candidates[0].SourceEngine != "yandex" {
		t.Errorf("Expected engine yandex, got %s", candidates[0].SourceEngine)
	}
}

func TestYandexSearchEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>nothing here</body></html>")
	}))
	defer server.Close()

	yandex := NewYandex(5*time.Second, nil)
	yandex.SetBaseURL(server.URL)

	candidates, err := yandex.Search(context.Background(), "wheat", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("Expected no candidates, got %d", len(candidates))
	}
}

// stubEngine is a canned search backend for merge tests
type stubEngine struct {
	name string
	urls []string
	err  error
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	var candidates []Candidate
	for _, u := range s.urls {
		candidates = append(candidates, Candidate{SourceEngine: s.name, SourceURL: u})
		if limit > 0 && len(candidates) >= limit {
			break
		}
	}
	return candidates, nil
}

func TestMultiInterleavesInEngineOrder(t *testing.T) {
	first := &stubEngine{name: "yandex", urls: []string{"https://a/1.jpg", "https://a/2.jpg"}}
	second := &stubEngine{name: "google", urls: []string{"https://b/1.jpg", "https://b/2.jpg"}}

	multi := NewMulti(nil, first, second)
	candidates, err := multi.Search(context.Background(), "wheat", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	want := []string{"https://a/1.jpg", "https://b/1.jpg", "https://a/2.jpg", "https://b/2.jpg"}
	if len(candidates) != len(want) {
		t.Fatalf("Expected %d candidates, got %d", len(want), len(candidates))
	}
	for i, url := range want {
		if candidates[i].SourceURL != url {
			t.Errorf("Position %d: expected %s, got %s", i, url, candidates[i].SourceURL)
		}
	}
}

func TestMultiDeduplicatesAcrossEngines(t *testing.T) {
	shared := "https://shared.example.com/photo.jpg"
	first := &stubEngine{name: "yandex", urls: []string{shared, "https://a/only.jpg"}}
	second := &stubEngine{name: "google", urls: []string{shared, "https://b/only.jpg"}}

	multi := NewMulti(nil, first, second)
	candidates, err := multi.Search(context.Background(), "wheat", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(candidates) != 3 {
		t.Fatalf("Expected 3 candidates after dedup, got %d", len(candidates))
	}
	// The shared URL keeps its first (yandex) occurrence
	if candidates[0].SourceURL != shared || candidates[0].SourceEngine != "yandex" {
		t.Errorf("Expected shared URL attributed to yandex first, got %s from %s",
			candidates[0].SourceURL, candidates[0].SourceEngine)
	}
}

func TestMultiSkipsFailedEngine(t *testing.T) {
	broken := &stubEngine{name: "yandex", err: errs.New(errs.ErrorTypeEngineUnavailable, "blocked")}
	working := &stubEngine{name: "google", urls: []string{"https://b/1.jpg", "https://b/2.jpg"}}

	log := logger.NewCapture()
	multi := NewMulti(log, broken, working)
	candidates, err := multi.Search(context.Background(), "wheat", 0)
	if err != nil {
		t.Fatalf("One failed engine must not fail the search: %v", err)
	}
	if len(candidates) != 2 {
		t.Errorf("Expected 2 candidates from the working engine, got %d", len(candidates))
	}

	// The degradation is logged, not swallowed
	if !log.HasMessage("engine unavailable") {
		t.Error("Expected the skipped engine to be logged as a warning")
	}
}

func TestMultiAllEnginesFailed(t *testing.T) {
	broken1 := &stubEngine{name: "yandex", err: errs.New(errs.ErrorTypeEngineUnavailable, "blocked")}
	broken2 := &stubEngine{name: "google", err: errs.New(errs.ErrorTypeEngineUnavailable, "blocked")}

	multi := NewMulti(nil, broken1, broken2)
	candidates, err := multi.Search(context.Background(), "wheat", 0)
	if err != nil {
		t.Fatalf("All engines failing is a no-candidates outcome, not an error: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("Expected no candidates, got %d", len(candidates))
	}
}

func TestMultiName(t *testing.T) {
	multi := NewMulti(nil, &stubEngine{name: "yandex"}, &stubEngine{name: "google"})
	if multi.Name() != "multi+yandex+google" {
		t.Errorf("Unexpected name: %s", multi.Name())
	}
}

func TestRandomUserAgent(t *testing.T) {
	for i := 0; i < 10; i++ {
		ua := RandomUserAgent()
		if ua == "" {
			t.Fatal("Expected a non-empty user agent")
		}
	}
}
