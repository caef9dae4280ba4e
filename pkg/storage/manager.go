package storage

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// imageExtensions are the formats the pipeline stores before conversion
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

// Manager handles file storage for one directory scope: atomic writes and
// source-URL duplicate detection. Writes to the shared scope are
// serialized through the manager so concurrent fetch tasks never race on
// the same path.
type Manager struct {
	outputDir  string
	downloaded map[string]bool // URL-hash keys
	imageCount int
	mu         sync.RWMutex
}

// NewManager creates a storage manager rooted at outputDir
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir:  outputDir,
		downloaded: make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles counts images already present in the scope so a
// re-run tops the directory up instead of starting over
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			m.imageCount++
		}
	}

	return nil
}

// urlKey is the dedup key for a source URL
func urlKey(sourceURL string) string {
	sum := sha1.Sum([]byte(sourceURL))
	return hex.EncodeToString(sum[:])
}

// IsDownloaded checks if an image from the given source URL has already
// been stored in this scope during or before this run
func (m *Manager) IsDownloaded(sourceURL string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.downloaded[urlKey(sourceURL)]
}

// MarkDownloaded records a source URL without writing, used when a
// checkpoint restores state from a previous run
func (m *Manager) MarkDownloaded(sourceURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloaded[urlKey(sourceURL)] = true
}

// SaveImage writes an image payload under the given filename using
// write-to-temp-then-rename so a partial download is never visible under
// its final name. Returns the final path.
func (m *Manager) SaveImage(r io.Reader, filename, sourceURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	finalPath := filepath.Join(m.outputDir, filename)

	tempFile := finalPath + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write image data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, finalPath); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.downloaded[urlKey(sourceURL)] = true
	m.imageCount++

	return finalPath, nil
}

// GetOutputDir returns the directory scope root
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// ImageCount returns the number of images in the scope, existing plus
// newly stored
func (m *Manager) ImageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.imageCount
}
