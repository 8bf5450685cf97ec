package metadata

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"bookmarkvault/pkg/models"
	"bookmarkvault/pkg/storage"
)

// BookmarkMetadata is the machine readable twin of a rendered artifact.
// It is written next to bookmark_<id>.html as bookmark_<id>.json.
type BookmarkMetadata struct {
	// Core identifiers
	ID        string `json:"id"`
	Permalink string `json:"permalink"`

	// Content
	Author    models.Author  `json:"author"`
	Text      string         `json:"text"`
	CreatedAt time.Time      `json:"created_at"`
	Metrics   models.Metrics `json:"metrics"`

	// Media
	Media   []models.MediaAsset   `json:"media,omitempty"`
	Avatar  *models.MediaAsset    `json:"avatar,omitempty"`
	Missing []models.MissingMedia `json:"missing,omitempty"`

	ArchivedAt time.Time `json:"archived_at"`
}

// FromRecord builds the metadata for a record and its resolved media.
// An asset whose source is the author's profile image becomes the avatar.
func FromRecord(record *models.BookmarkRecord, assets []models.MediaAsset, missing []models.MissingMedia, archivedAt time.Time) *BookmarkMetadata {
	meta := &BookmarkMetadata{
		ID:         record.ID,
		Permalink:  record.Permalink(),
		Author:     record.Author,
		Text:       record.Text,
		CreatedAt:  record.CreatedAt,
		Metrics:    record.Metrics,
		Missing:    missing,
		ArchivedAt: archivedAt,
	}

	for i := range assets {
		a := assets[i]
		if record.Author.ProfileImageURL != "" && a.SourceURL == record.Author.ProfileImageURL {
			meta.Avatar = &a
			continue
		}
		meta.Media = append(meta.Media, a)
	}

	return meta
}

// FileName returns the sidecar name for a bookmark id
func FileName(id string) string {
	return "bookmark_" + id + ".json"
}

// Save writes the metadata into root atomically
func (m *BookmarkMetadata) Save(root string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	err = storage.WriteFileAtomic(filepath.Join(root, FileName(m.ID)), 0644, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// Load reads the metadata of a bookmark from root
func Load(root, id string) (*BookmarkMetadata, error) {
	data, err := os.ReadFile(filepath.Join(root, FileName(id)))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta BookmarkMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &meta, nil
}

// Exists checks if a sidecar exists for a bookmark
func Exists(root, id string) bool {
	_, err := os.Stat(filepath.Join(root, FileName(id)))
	return err == nil
}

// Snippet returns the text on a single line, cut to at most maxRunes runes
func (m *BookmarkMetadata) Snippet(maxRunes int) string {
	if m.Text == "" {
		return ""
	}

	text := strings.Join(strings.Fields(m.Text), " ")
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	if maxRunes <= 3 {
		return string([]rune(text)[:maxRunes])
	}

	return string([]rune(text)[:maxRunes-3]) + "..."
}

// CleanOrphaned removes sidecars whose artifact no longer exists and
// returns how many were removed
func CleanOrphaned(root string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(root, "bookmark_*.json"))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range matches {
		artifact := strings.TrimSuffix(path, ".json") + ".html"
		if _, err := os.Stat(artifact); os.IsNotExist(err) {
			if err := os.Remove(path); err != nil {
				return removed, fmt.Errorf("failed to remove orphaned metadata %s: %w", path, err)
			}
			removed++
		}
	}

	return removed, nil
}
