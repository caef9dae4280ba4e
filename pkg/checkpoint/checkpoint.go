package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cropcrawler/pkg/logger"
)

// Checkpoint records the state of an interrupted crawl for one risk so a
// later run can resume instead of re-downloading
type Checkpoint struct {
	RiskKey         string            `json:"risk_key"`
	DownloadedURLs  map[string]string `json:"downloaded_urls"` // source URL -> filename
	TotalDownloaded int               `json:"total_downloaded"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Version         int               `json:"version"`
}

// Manager handles checkpoint persistence for one risk
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a checkpoint manager. Checkpoints live in a
// .checkpoints directory under the output base so they travel with the
// corpus.
func NewManager(baseDir, riskKey string) (*Manager, error) {
	checkpointsDir := filepath.Join(baseDir, ".checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	safe := strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(riskKey)
	checkpointPath := filepath.Join(checkpointsDir, fmt.Sprintf("%s.checkpoint.json", safe))

	return &Manager{
		checkpointPath: checkpointPath,
		logger:         logger.GetLogger(),
	}, nil
}

// Create creates and saves a fresh checkpoint
func (m *Manager) Create(riskKey string) (*Checkpoint, error) {
	checkpoint := &Checkpoint{
		RiskKey:        riskKey,
		DownloadedURLs: make(map[string]string),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
		Version:        1,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	return checkpoint, nil
}

// Load loads an existing checkpoint, returning nil when none exists
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.DownloadedURLs == nil {
		checkpoint.DownloadedURLs = make(map[string]string)
	}

	m.logger.InfoWithFields("checkpoint loaded", map[string]interface{}{
		"risk_key":   checkpoint.RiskKey,
		"downloaded": checkpoint.TotalDownloaded,
	})
	return &checkpoint, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tempPath := m.checkpointPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// RecordDownload marks one URL as stored and persists the checkpoint
func (m *Manager) RecordDownload(checkpoint *Checkpoint, sourceURL, filename string) error {
	checkpoint.DownloadedURLs[sourceURL] = filename
	checkpoint.TotalDownloaded++
	return m.Save(checkpoint)
}

// Exists reports whether a checkpoint file is present
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
