package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/storage"
)

// FileName is the checkpoint file inside the archive root
const FileName = ".sync-checkpoint.json"

const currentVersion = 1

// Checkpoint is the resumable position of an interrupted sync run
type Checkpoint struct {
	RunID string `json:"run_id"`
	// Cursor is the pagination token of the next page to request
	Cursor    string    `json:"cursor"`
	Pages     int       `json:"pages"`
	Committed int       `json:"committed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// Manager handles checkpoint operations for one archive
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a checkpoint manager for the archive at root
func NewManager(root string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Manager{
		checkpointPath: filepath.Join(root, FileName),
		logger:         log.WithField("component", "checkpoint"),
	}, nil
}

// Create starts a fresh checkpoint for a run and saves it
func (m *Manager) Create(runID string) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		RunID:     runID,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   currentVersion,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint created", map[string]interface{}{
		"run_id": runID,
		"path":   m.checkpointPath,
	})

	return cp, nil
}

// Load reads the checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
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
	if cp.Version > currentVersion {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", cp.Version, currentVersion)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_id":     cp.RunID,
		"cursor":     cp.Cursor,
		"pages":      cp.Pages,
		"updated_at": cp.UpdatedAt,
	})

	return &cp, nil
}

// Save writes the checkpoint to disk atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	err := storage.WriteFileAtomic(m.checkpointPath, 0644, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cp)
	})
	if err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"run_id": cp.RunID,
		"cursor": cp.Cursor,
		"pages":  cp.Pages,
	})

	return nil
}

// UpdateProgress records that every page before cursor has been consumed
func (m *Manager) UpdateProgress(cp *Checkpoint, cursor string, pages, committed int) error {
	cp.Cursor = cursor
	cp.Pages = pages
	cp.Committed = committed
	return m.Save(cp)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}
