package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cropcrawler/pkg/config"
)

func TestNewWithValidLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "fatal"} {
		log, err := New(&config.LoggingConfig{Level: level})
		if err != nil {
			t.Errorf("Expected level %s to be accepted: %v", level, err)
		}
		if log == nil {
			t.Errorf("Expected a logger for level %s", level)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(&config.LoggingConfig{Level: "loud"}); err == nil {
		t.Error("Expected error for unknown log level")
	}
}

func TestNewWithFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "crawl.log")

	log, err := New(&config.LoggingConfig{Level: "info", File: path})
	if err != nil {
		t.Fatalf("Failed to create file-backed logger: %v", err)
	}
	log.Info("crawl started")

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected log file to be created: %v", err)
	}
}

func TestGetLoggerNeverNil(t *testing.T) {
	if GetLogger() == nil {
		t.Fatal("Expected a usable default logger")
	}
	// Chained context loggers stay usable
	GetLogger().WithField("query", "rust").WithError(errors.New("x")).Warn("degraded")
}

func TestCaptureLoggerRecords(t *testing.T) {
	capture := NewCapture()

	capture.Info("plain message")
	capture.WarnWithFields("candidate failed", map[string]interface{}{"url": "https://x/1.jpg"})
	capture.WithField("engine", "yandex").WithError(errors.New("blocked")).Error("engine down")

	messages := capture.Messages()
	if len(messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(messages))
	}

	if !capture.HasMessage("candidate failed") {
		t.Error("Expected HasMessage to find the warning")
	}

	warns := capture.MessagesAtLevel("warn")
	if len(warns) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(warns))
	}
	if warns[0].Fields["url"] != "https://x/1.jpg" {
		t.Errorf("Expected url field, got %v", warns[0].Fields)
	}

	errs := capture.MessagesAtLevel("error")
	if len(errs) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(errs))
	}
	if errs[0].Fields["engine"] != "yandex" {
		t.Errorf("Expected engine field from the derived logger, got %v", errs[0].Fields)
	}
	if errs[0].Error == nil {
		t.Error("Expected the attached error to be captured")
	}
}
