package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	errs "bookmarkvault/pkg/errors"
	"bookmarkvault/pkg/models"
)

// Problem describes a manifest entry whose artifact does not hold up
type Problem struct {
	ID     string
	Path   string
	Reason string
}

// ArtifactCheck inspects one artifact file and returns an error if it is unusable
type ArtifactCheck func(path string) error

// Verify walks every entry and reports artifacts that are missing, empty, or
// rejected by check. A nil check only tests existence and size.
func Verify(store Store, root string, check ArtifactCheck) []Problem {
	var problems []Problem
	for entry := range store.All() {
		path := filepath.Join(root, entry.ArtifactPath)
		info, err := os.Stat(path)
		switch {
		case err != nil:
			problems = append(problems, Problem{ID: entry.ID, Path: path, Reason: "artifact missing"})
			continue
		case info.Size() == 0:
			problems = append(problems, Problem{ID: entry.ID, Path: path, Reason: "artifact empty"})
			continue
		}
		if check != nil {
			if err := check(path); err != nil {
				problems = append(problems, Problem{ID: entry.ID, Path: path, Reason: err.Error()})
			}
		}
	}
	return problems
}

// ImportResult summarizes an ImportLegacy call
type ImportResult struct {
	Imported int
	Present  int
	Missing  []string
}

// ImportLegacy records ids from a saved_bookmarks.json style id list, but only
// those whose rendered page already exists under root.
func ImportLegacy(ctx context.Context, store Store, root, idsFile string) (*ImportResult, error) {
	data, err := os.ReadFile(idsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy id list: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse legacy id list: %w", err)
	}

	res := &ImportResult{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if store.Contains(id) {
			res.Present++
			continue
		}

		name := models.ArtifactFileName(id)
		info, err := os.Stat(filepath.Join(root, name))
		if err != nil || info.Size() == 0 {
			res.Missing = append(res.Missing, id)
			continue
		}

		if err := store.Record(ctx, models.ManifestEntry{
			ID:           id,
			ArchivedAt:   info.ModTime().UTC(),
			ArtifactPath: name,
		}); err != nil {
			if errs.IsType(err, errs.ErrorTypePersistence) && store.Contains(id) {
				res.Present++
				continue
			}
			return res, err
		}
		res.Imported++
	}
	return res, nil
}
