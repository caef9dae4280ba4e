// Package fetch retrieves raw image bytes for candidate URLs with bounded
// timeouts and payload validation.
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cropcrawler/pkg/engine"
	errs "cropcrawler/pkg/errors"
	"cropcrawler/pkg/logger"
)

// Result holds a validated image payload
type Result struct {
	Data        []byte
	ContentType string
	// Extension is derived from the response content type, .jpg fallback
	Extension string
}

// Client downloads image payloads over HTTP
type Client struct {
	httpClient  *http.Client
	minFileSize int64
	maxFileSize int64
	logger      logger.Logger
}

// NewClient creates a download client with a bounded per-request timeout.
// minFileSize rejects suspiciously small payloads; maxFileSize 0 means no
// limit.
func NewClient(timeout time.Duration, minFileSize, maxFileSize int64, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		minFileSize: minFileSize,
		maxFileSize: maxFileSize,
		logger:      log,
	}
}

// Download retrieves the candidate's URL and validates that the response
// is a well-formed image payload. Transient failures come back as
// retryable typed errors; permanent ones are not retried by callers.
func (c *Client) Download(candidate engine.Candidate) (*Result, error) {
	req, err := http.NewRequest(http.MethodGet, candidate.SourceURL, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypePermanentFetch, fmt.Sprintf("invalid URL: %v", err))
	}
	req.Header.Set("User-Agent", engine.RandomUserAgent())
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugWithFields("image request failed", map[string]interface{}{
			"url":   candidate.SourceURL,
			"error": err.Error(),
		})
		return nil, errs.New(errs.ErrorTypeTransientFetch, fmt.Sprintf("network error: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewWithCode(errs.TypeForStatusCode(resp.StatusCode),
			fmt.Sprintf("unexpected status downloading %s", candidate.SourceURL), resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, errs.New(errs.ErrorTypeMalformedPayload,
			fmt.Sprintf("not an image payload (Content-Type: %s)", contentType))
	}

	var reader io.Reader = resp.Body
	if c.maxFileSize > 0 {
		reader = io.LimitReader(resp.Body, c.maxFileSize+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeTransientFetch, fmt.Sprintf("reading body: %v", err))
	}

	if int64(len(data)) < c.minFileSize {
		return nil, errs.New(errs.ErrorTypeMalformedPayload,
			fmt.Sprintf("payload suspiciously small (%d bytes)", len(data)))
	}
	if c.maxFileSize > 0 && int64(len(data)) > c.maxFileSize {
		return nil, errs.New(errs.ErrorTypePermanentFetch,
			fmt.Sprintf("payload exceeds size limit (%d bytes)", len(data)))
	}

	// Magic-byte check backs up the Content-Type header
	detected := http.DetectContentType(data)
	if !strings.HasPrefix(detected, "image/") {
		return nil, errs.New(errs.ErrorTypeMalformedPayload,
			fmt.Sprintf("payload is not an image (detected %s)", detected))
	}

	c.logger.DebugWithFields("image downloaded", map[string]interface{}{
		"url":      candidate.SourceURL,
		"size":     len(data),
		"duration": time.Since(start),
	})

	return &Result{
		Data:        data,
		ContentType: detected,
		Extension:   extensionFor(detected),
	}, nil
}

// extensionFor maps a detected content type to a file extension
func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "image/jpeg"):
		return ".jpg"
	case strings.Contains(contentType, "image/png"):
		return ".png"
	case strings.Contains(contentType, "image/webp"):
		return ".webp"
	case strings.Contains(contentType, "image/gif"):
		return ".gif"
	default:
		return ".jpg"
	}
}
