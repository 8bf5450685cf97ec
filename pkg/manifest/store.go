package manifest

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"bookmarkvault/pkg/config"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/models"
)

// Store is the durable set of archived bookmark ids.
// Implementations load every entry at open time and serialize Record calls.
type Store interface {
	// Contains reports whether id has been committed
	Contains(id string) bool
	// Record commits entry. It fails with a persistence error on I/O failure
	// or when entry.ID is already present.
	Record(ctx context.Context, entry models.ManifestEntry) error
	// All lazily yields every committed entry in commit order
	All() iter.Seq[models.ManifestEntry]
	// Len returns the number of committed entries
	Len() int
	Close() error
}

// Open opens the manifest backend selected in cfg
func Open(cfg *config.Config, log logger.Logger) (Store, error) {
	path := cfg.ManifestPath()
	switch strings.ToLower(cfg.Manifest.Backend) {
	case "jsonl", "":
		return OpenFileStore(path, log)
	case "sqlite":
		return OpenSQLiteStore(path, log)
	default:
		return nil, fmt.Errorf("unknown manifest backend %q", cfg.Manifest.Backend)
	}
}
