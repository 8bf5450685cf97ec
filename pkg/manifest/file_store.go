package manifest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sync"

	errs "bookmarkvault/pkg/errors"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/models"
)

// FileStore keeps the manifest as an append-only JSON lines file.
// One line is one committed entry and every append is fsynced before Record returns.
type FileStore struct {
	path    string
	file    *os.File
	size    int64
	index   map[string]int
	entries []models.ManifestEntry
	mu      sync.RWMutex
	logger  logger.Logger
}

// OpenFileStore loads path fully and opens it for appending
func OpenFileStore(path string, log logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errs.NewPersistence("failed to create manifest directory", err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errs.NewPersistence("failed to open manifest", err)
	}

	s := &FileStore{
		path:   path,
		file:   file,
		index:  make(map[string]int),
		logger: log,
	}

	if err := s.load(); err != nil {
		file.Close()
		return nil, err
	}

	log.DebugWithFields("Manifest loaded", map[string]interface{}{
		"path":    path,
		"entries": len(s.entries),
	})
	return s, nil
}

// load reads every complete line. A trailing line without a newline is the
// remains of an interrupted append and is truncated away.
func (s *FileStore) load() error {
	reader := bufio.NewReader(s.file)
	var offset int64
	lineNo := 0

	for {
		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			if len(line) > 0 {
				s.logger.WarnWithFields("Discarding torn manifest line", map[string]interface{}{
					"path":   s.path,
					"offset": offset,
					"bytes":  len(line),
				})
				if err := s.file.Truncate(offset); err != nil {
					return errs.NewPersistence("failed to truncate torn manifest line", err)
				}
			}
			break
		}
		if err != nil {
			return errs.NewPersistence("failed to read manifest", err)
		}
		lineNo++

		trimmed := line[:len(line)-1]
		if len(trimmed) == 0 {
			offset += int64(len(line))
			continue
		}

		var entry models.ManifestEntry
		if err := json.Unmarshal(trimmed, &entry); err != nil || entry.ID == "" {
			return errs.NewPersistence(fmt.Sprintf("corrupt manifest line %d in %s", lineNo, s.path), err)
		}
		if _, dup := s.index[entry.ID]; !dup {
			s.index[entry.ID] = len(s.entries)
			s.entries = append(s.entries, entry)
		}
		offset += int64(len(line))
	}

	s.size = offset
	if _, err := s.file.Seek(offset, io.SeekStart); err != nil {
		return errs.NewPersistence("failed to seek manifest", err)
	}
	return nil
}

func (s *FileStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

func (s *FileStore) Record(ctx context.Context, entry models.ManifestEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.ID == "" {
		return errs.NewPersistence("manifest entry has no id", nil)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return errs.NewPersistence("failed to encode manifest entry", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[entry.ID]; ok {
		return errs.NewPersistence(fmt.Sprintf("bookmark %s already recorded", entry.ID), nil)
	}

	if _, err := s.file.WriteAt(line, s.size); err != nil {
		s.rollback()
		return errs.NewPersistence("failed to append manifest entry", err)
	}
	if err := s.file.Sync(); err != nil {
		s.rollback()
		return errs.NewPersistence("failed to sync manifest", err)
	}

	s.size += int64(len(line))
	s.index[entry.ID] = len(s.entries)
	s.entries = append(s.entries, entry)
	return nil
}

// rollback drops a partially written line so the file stays line aligned
func (s *FileStore) rollback() {
	if err := s.file.Truncate(s.size); err != nil {
		s.logger.WithError(err).Error("Failed to roll back manifest append")
	}
}

func (s *FileStore) All() iter.Seq[models.ManifestEntry] {
	return func(yield func(models.ManifestEntry) bool) {
		s.mu.RLock()
		n := len(s.entries)
		s.mu.RUnlock()

		for i := 0; i < n; i++ {
			s.mu.RLock()
			entry := s.entries[i]
			s.mu.RUnlock()
			if !yield(entry) {
				return
			}
		}
	}
}

func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Path returns the manifest file location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
