package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckpointLifecycle(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir, "diseases_cereals_rust")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	// No checkpoint yet
	if manager.Exists() {
		t.Error("Expected no checkpoint before Create")
	}
	loaded, err := manager.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != nil {
		t.Error("Expected nil checkpoint when none exists")
	}

	// Create and record a download
	cp, err := manager.Create("diseases_cereals_rust")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !manager.Exists() {
		t.Error("Expected checkpoint file after Create")
	}

	url := "https://example.com/rust_01.jpg"
	if err := manager.RecordDownload(cp, url, "rust_01.jpg"); err != nil {
		t.Fatalf("RecordDownload failed: %v", err)
	}

	// A fresh manager sees the persisted state
	reopened, err := NewManager(tempDir, "diseases_cereals_rust")
	if err != nil {
		t.Fatalf("Failed to reopen manager: %v", err)
	}
	restored, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if restored == nil {
		t.Fatal("Expected checkpoint to be restored")
	}
	if restored.TotalDownloaded != 1 {
		t.Errorf("Expected 1 downloaded, got %d", restored.TotalDownloaded)
	}
	if restored.DownloadedURLs[url] != "rust_01.jpg" {
		t.Errorf("Expected recorded filename, got %q", restored.DownloadedURLs[url])
	}

	// Delete is idempotent
	if err := manager.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if manager.Exists() {
		t.Error("Expected checkpoint to be gone after Delete")
	}
	if err := manager.Delete(); err != nil {
		t.Errorf("Second delete must not fail: %v", err)
	}
}

func TestCheckpointKeySanitization(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir, "query:septoria wheat/leaf")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if _, err := manager.Create("query:septoria wheat/leaf"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// The checkpoint lands inside the .checkpoints directory, not in a
	// path carved out of the risk key
	entries, err := os.ReadDir(filepath.Join(tempDir, ".checkpoints"))
	if err != nil {
		t.Fatalf("Failed to read checkpoints directory: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 checkpoint file, got %d", len(entries))
	}
}

func TestCheckpointCorruptFile(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir, "risk")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if _, err := manager.Create("risk"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := os.WriteFile(manager.checkpointPath, []byte("{broken"), 0644); err != nil {
		t.Fatalf("Failed to corrupt checkpoint: %v", err)
	}

	if _, err := manager.Load(); err == nil {
		t.Error("Expected error loading corrupt checkpoint")
	}
}
