package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	errs "bookmarkvault/pkg/errors"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/models"
)

// SQLiteStore keeps the manifest in a SQLite database with one row per bookmark
type SQLiteStore struct {
	db     *sql.DB
	insert *sql.Stmt
	ids    map[string]struct{}
	mu     sync.RWMutex
	logger logger.Logger
}

// OpenSQLiteStore opens or creates the database at path and loads every id
func OpenSQLiteStore(path string, log logger.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errs.NewPersistence("failed to create manifest directory", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, errs.NewPersistence("failed to open manifest database", err)
	}
	// A single connection keeps commits strictly ordered.
	db.SetMaxOpenConns(1)

	if err := newMigrationRunner(db).Run(); err != nil {
		db.Close()
		return nil, errs.NewPersistence("failed to migrate manifest database", err)
	}

	s := &SQLiteStore{
		db:     db,
		ids:    make(map[string]struct{}),
		logger: log,
	}

	s.insert, err = db.Prepare(`INSERT INTO manifest_entries (id, archived_at, artifact_path) VALUES (?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, errs.NewPersistence("failed to prepare insert", err)
	}

	if err := s.loadIDs(); err != nil {
		s.Close()
		return nil, err
	}

	log.DebugWithFields("Manifest database loaded", map[string]interface{}{
		"path":    path,
		"entries": len(s.ids),
	})
	return s, nil
}

func (s *SQLiteStore) loadIDs() error {
	rows, err := s.db.Query(`SELECT id FROM manifest_entries`)
	if err != nil {
		return errs.NewPersistence("failed to load manifest ids", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return errs.NewPersistence("failed to scan manifest id", err)
		}
		s.ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return errs.NewPersistence("failed to iterate manifest ids", err)
	}
	return nil
}

func (s *SQLiteStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *SQLiteStore) Record(ctx context.Context, entry models.ManifestEntry) error {
	if entry.ID == "" {
		return errs.NewPersistence("manifest entry has no id", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[entry.ID]; ok {
		return errs.NewPersistence(fmt.Sprintf("bookmark %s already recorded", entry.ID), nil)
	}

	_, err := s.insert.ExecContext(ctx, entry.ID, entry.ArchivedAt.UTC().Format(time.RFC3339Nano), entry.ArtifactPath)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			s.ids[entry.ID] = struct{}{}
			return errs.NewPersistence(fmt.Sprintf("bookmark %s already recorded", entry.ID), err)
		}
		return errs.NewPersistence("failed to insert manifest entry", err)
	}

	s.ids[entry.ID] = struct{}{}
	return nil
}

// All streams rows straight from the database. The store holds a single
// connection, so Record must not be called from inside the loop.
func (s *SQLiteStore) All() iter.Seq[models.ManifestEntry] {
	return func(yield func(models.ManifestEntry) bool) {
		rows, err := s.db.Query(`SELECT id, archived_at, artifact_path FROM manifest_entries ORDER BY seq`)
		if err != nil {
			s.logger.WithError(err).Error("Failed to query manifest entries")
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				entry      models.ManifestEntry
				archivedAt string
			)
			if err := rows.Scan(&entry.ID, &archivedAt, &entry.ArtifactPath); err != nil {
				s.logger.WithError(err).Error("Failed to scan manifest entry")
				return
			}
			entry.ArchivedAt, _ = time.Parse(time.RFC3339Nano, archivedAt)
			if !yield(entry) {
				return
			}
		}
	}
}

func (s *SQLiteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

func (s *SQLiteStore) Close() error {
	if s.insert != nil {
		s.insert.Close()
	}
	return s.db.Close()
}
