package storage

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/models"
)

const (
	// IndexFileName is the media index inside the media directory
	IndexFileName = "index.jsonl"
	// FingerprintLen is the number of hex characters of the content hash used in file names
	FingerprintLen = 12
	// MediaFileMode matches the mode of rendered artifacts
	MediaFileMode os.FileMode = 0644
)

var extensions = map[string]struct {
	ext  string
	kind models.MimeKind
}{
	"image/jpeg":      {".jpg", models.MimeImage},
	"image/jpg":       {".jpg", models.MimeImage},
	"image/png":       {".png", models.MimeImage},
	"image/gif":       {".gif", models.MimeImage},
	"image/webp":      {".webp", models.MimeImage},
	"video/mp4":       {".mp4", models.MimeVideo},
	"video/webm":      {".webm", models.MimeVideo},
	"video/quicktime": {".mov", models.MimeVideo},
}

// ExtensionFor maps a Content-Type header to a file extension and mime kind.
// ok is false for types the archive does not store.
func ExtensionFor(contentType string) (ext string, kind models.MimeKind, ok bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	e, ok := extensions[mediaType]
	if !ok {
		return "", models.MimeOther, false
	}
	return e.ext, e.kind, true
}

type indexRecord struct {
	BookmarkID string `json:"bookmark_id"`
	models.MediaAsset
}

// MediaStore owns the shared media directory of an archive.
// It remembers which source URLs were already downloaded for which bookmark
// and names files by bookmark id plus a content fingerprint.
type MediaStore struct {
	root     string
	dirName  string
	index    *os.File
	bySource map[string]models.MediaAsset
	mu       sync.RWMutex
	logger   logger.Logger
}

// NewMediaStore creates the media directory under root and loads its index
func NewMediaStore(root, dirName string, log logger.Logger) (*MediaStore, error) {
	dir := filepath.Join(root, dirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	s := &MediaStore{
		root:     root,
		dirName:  dirName,
		bySource: make(map[string]models.MediaAsset),
		logger:   log,
	}

	if err := s.loadIndex(); err != nil {
		return nil, err
	}

	index, err := os.OpenFile(filepath.Join(dir, IndexFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open media index: %w", err)
	}
	s.index = index

	return s, nil
}

func sourceKey(bookmarkID, sourceURL string) string {
	return bookmarkID + " " + sourceURL
}

// loadIndex rebuilds the source map, dropping records whose file has vanished
func (s *MediaStore) loadIndex() error {
	f, err := os.Open(filepath.Join(s.root, s.dirName, IndexFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open media index: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	skipped := 0
	for scanner.Scan() {
		var rec indexRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			skipped++
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(rec.LocalPath))); err != nil {
			skipped++
			continue
		}
		s.bySource[sourceKey(rec.BookmarkID, rec.SourceURL)] = rec.MediaAsset
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read media index: %w", err)
	}

	if skipped > 0 {
		s.logger.WarnWithFields("Ignored stale media index records", map[string]interface{}{
			"skipped": skipped,
		})
	}
	return nil
}

// Lookup returns the stored asset for a bookmark's source URL, if its file still exists
func (s *MediaStore) Lookup(bookmarkID, sourceURL string) (models.MediaAsset, bool) {
	s.mu.RLock()
	asset, ok := s.bySource[sourceKey(bookmarkID, sourceURL)]
	s.mu.RUnlock()
	if !ok {
		return models.MediaAsset{}, false
	}

	if _, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(asset.LocalPath))); err != nil {
		s.mu.Lock()
		delete(s.bySource, sourceKey(bookmarkID, sourceURL))
		s.mu.Unlock()
		return models.MediaAsset{}, false
	}
	return asset, true
}

// Save streams r into the media directory. The final name is
// <bookmarkID>_<fingerprint><ext>; when that file already exists the new
// bytes are discarded and the existing file is reused.
func (s *MediaStore) Save(bookmarkID, sourceURL, contentType string, r io.Reader) (models.MediaAsset, bool, error) {
	ext, kind, ok := ExtensionFor(contentType)
	if !ok {
		return models.MediaAsset{}, false, fmt.Errorf("unsupported content type %q", contentType)
	}

	dir := filepath.Join(s.root, s.dirName)
	tmp, err := os.CreateTemp(dir, ".download-*.tmp")
	if err != nil {
		return models.MediaAsset{}, false, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		cleanup()
		return models.MediaAsset{}, false, fmt.Errorf("failed to write media data: %w", err)
	}
	if err := tmp.Chmod(MediaFileMode); err != nil {
		cleanup()
		return models.MediaAsset{}, false, fmt.Errorf("failed to set media file mode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return models.MediaAsset{}, false, fmt.Errorf("failed to sync media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return models.MediaAsset{}, false, fmt.Errorf("failed to close media file: %w", err)
	}

	sum := hexSum(h)
	name := FileName(bookmarkID, sum, ext)
	asset := models.MediaAsset{
		SourceURL:   sourceURL,
		LocalPath:   path.Join(s.dirName, name),
		ContentHash: sum,
		MimeKind:    kind,
		ContentType: contentType,
		Size:        size,
	}

	final := filepath.Join(dir, name)
	reused := false
	if _, err := os.Stat(final); err == nil {
		os.Remove(tmpPath)
		reused = true
	} else if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return models.MediaAsset{}, false, fmt.Errorf("failed to move media file into place: %w", err)
	}

	if err := s.remember(bookmarkID, asset); err != nil {
		return models.MediaAsset{}, false, err
	}
	return asset, reused, nil
}

func (s *MediaStore) remember(bookmarkID string, asset models.MediaAsset) error {
	line, err := json.Marshal(indexRecord{BookmarkID: bookmarkID, MediaAsset: asset})
	if err != nil {
		return fmt.Errorf("failed to encode media index record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.index.Write(line); err != nil {
		return fmt.Errorf("failed to append media index: %w", err)
	}
	s.bySource[sourceKey(bookmarkID, asset.SourceURL)] = asset
	return nil
}

// Dir returns the absolute path of the media directory
func (s *MediaStore) Dir() string {
	return filepath.Join(s.root, s.dirName)
}

// Count returns the number of indexed source URLs
func (s *MediaStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySource)
}

func (s *MediaStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Sync(); err != nil {
		s.index.Close()
		return err
	}
	return s.index.Close()
}

// FileName builds the stored name for a media file
func FileName(bookmarkID, contentHash, ext string) string {
	fp := contentHash
	if len(fp) > FingerprintLen {
		fp = fp[:FingerprintLen]
	}
	return SafeID(bookmarkID) + "_" + fp + ext
}

// SafeID keeps ids usable as file name components
func SafeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}
