package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.ImageCount() != 0 {
		t.Error("Expected initial image count to be 0")
	}

	sourceURL := "https://example.com/rust.jpg"
	if manager.IsDownloaded(sourceURL) {
		t.Error("Expected IsDownloaded to return false before saving")
	}

	testData := []byte("test image data")
	path, err := manager.SaveImage(bytes.NewReader(testData), "rust_01.jpg", sourceURL)
	if err != nil {
		t.Fatalf("Failed to save image: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "rust_01.jpg")
	if path != expectedPath {
		t.Errorf("Expected path %s, got %s", expectedPath, path)
	}

	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Error("File content does not match expected data")
	}

	if !manager.IsDownloaded(sourceURL) {
		t.Error("Expected IsDownloaded to return true after saving")
	}
	if manager.ImageCount() != 1 {
		t.Errorf("Expected image count 1, got %d", manager.ImageCount())
	}

	// No temp file left behind
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to read directory: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("Temporary file left behind: %s", entry.Name())
		}
	}
}

func TestManagerCreatesOutputDirectory(t *testing.T) {
	tempDir := t.TempDir()
	nested := filepath.Join(tempDir, "diseases", "cereals", "rust")

	if _, err := NewManager(nested); err != nil {
		t.Fatalf("Failed to create manager with nested directory: %v", err)
	}
	if info, err := os.Stat(nested); err != nil || !info.IsDir() {
		t.Error("Expected nested output directory to be created")
	}
}

func TestManagerScansExistingImages(t *testing.T) {
	tempDir := t.TempDir()

	for _, name := range []string{"a.jpg", "b.webp", "c.png"} {
		if err := os.WriteFile(filepath.Join(tempDir, name), []byte("img"), 0644); err != nil {
			t.Fatalf("Failed to seed file: %v", err)
		}
	}
	// Non-image files are not counted
	if err := os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to seed file: %v", err)
	}

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if manager.ImageCount() != 3 {
		t.Errorf("Expected image count 3 from scan, got %d", manager.ImageCount())
	}
}

func TestManagerMarkDownloaded(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	url := "https://example.com/resumed.jpg"
	manager.MarkDownloaded(url)

	if !manager.IsDownloaded(url) {
		t.Error("Expected marked URL to report as downloaded")
	}
	if manager.ImageCount() != 0 {
		t.Error("Marking must not change the image count")
	}
}

func TestManagerConcurrentSaves(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('a'+i)) + ".jpg"
			url := "https://example.com/" + name
			if _, err := manager.SaveImage(bytes.NewReader([]byte("data")), name, url); err != nil {
				t.Errorf("Concurrent save failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if manager.ImageCount() != 10 {
		t.Errorf("Expected image count 10, got %d", manager.ImageCount())
	}
}
