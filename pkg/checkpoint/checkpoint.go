package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"locscraper/pkg/logger"
)

// Filename is the checkpoint's name inside the output root. The leading
// dot keeps it clear of the per-record folders.
const Filename = ".locscraper-checkpoint.json"

// currentVersion marks the checkpoint schema.
const currentVersion = 1

// Checkpoint is the resume state of one harvest run
type Checkpoint struct {
	RunID            string    `json:"run_id"`
	Collection       string    `json:"collection"`
	BaseURL          string    `json:"base_url"`
	NextPage         int       `json:"next_page"`
	RecordsProcessed int       `json:"records_processed"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Version          int       `json:"version"`
}

// Matches reports whether the checkpoint belongs to the given collection
// and listing URL. State from a different target must not steer this
// run's pagination.
func (cp *Checkpoint) Matches(collection, baseURL string) bool {
	return cp != nil && cp.Collection == collection && cp.BaseURL == baseURL
}

// Manager handles checkpoint operations under one output root
type Manager struct {
	path string
	log  logger.Logger
}

// NewManager creates a checkpoint manager rooted at outputRoot
func NewManager(outputRoot string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		path: filepath.Join(outputRoot, Filename),
		log:  log,
	}
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.path
}

// Create starts a fresh checkpoint and saves it
func (m *Manager) Create(collection, baseURL string, startPage int) (*Checkpoint, error) {
	cp := &Checkpoint{
		RunID:      uuid.NewString(),
		Collection: collection,
		BaseURL:    baseURL,
		NextPage:   startPage,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		Version:    currentVersion,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.log.InfoWithFields("Checkpoint created", map[string]interface{}{
		"collection": collection,
		"path":       m.path,
	})

	return cp, nil
}

// Load loads an existing checkpoint. A missing file is not an error; both
// return values are nil.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	m.log.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"collection":        cp.Collection,
		"next_page":         cp.NextPage,
		"records_processed": cp.RecordsProcessed,
		"updated_at":        cp.UpdatedAt,
	})

	return &cp, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	// Ensure data is written to disk before the rename publishes it
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.log.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"collection":        cp.Collection,
		"next_page":         cp.NextPage,
		"records_processed": cp.RecordsProcessed,
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.log.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// UpdateProgress advances the checkpoint past a completed page and saves
func (m *Manager) UpdateProgress(cp *Checkpoint, nextPage, recordsProcessed int) error {
	cp.NextPage = nextPage
	cp.RecordsProcessed = recordsProcessed
	return m.Save(cp)
}
