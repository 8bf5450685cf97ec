package viewer

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/manifest"
	"bookmarkvault/pkg/metadata"
	"bookmarkvault/pkg/models"
	"bookmarkvault/pkg/storage"
)

const snippetRunes = 140

// artifactPolicy keeps archived pages from loading anything remote
const artifactPolicy = "default-src 'none'; img-src 'self' data:; media-src 'self'; style-src 'unsafe-inline'"

type handlers struct {
	root     string
	mediaDir string
	store    manifest.Store
	logger   logger.Logger
	started  time.Time
}

type indexItem struct {
	ID         string
	Author     string
	Username   string
	Snippet    string
	MediaCount int
	ArchivedAt time.Time
}

type indexView struct {
	Count int
	Items []indexItem
}

var indexTmpl = template.Must(template.New("index").Parse(indexTemplate))

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	entries := slices.Collect(h.store.All())
	slices.SortStableFunc(entries, func(a, b models.ManifestEntry) int {
		return b.ArchivedAt.Compare(a.ArchivedAt)
	})

	view := indexView{Count: len(entries), Items: make([]indexItem, 0, len(entries))}
	for _, e := range entries {
		item := indexItem{ID: e.ID, ArchivedAt: e.ArchivedAt}
		if meta, err := metadata.Load(h.root, e.ID); err == nil {
			item.Author = meta.Author.Name
			item.Username = meta.Author.Username
			item.Snippet = meta.Snippet(snippetRunes)
			item.MediaCount = len(meta.Media)
		}
		view.Items = append(view.Items, item)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, view); err != nil {
		h.logger.WithError(err).Error("Failed to render archive index")
	}
}

func (h *handlers) bookmark(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || storage.SafeID(id) != id || !h.store.Contains(id) {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.root, models.ArtifactFileName(id))
	w.Header().Set("Content-Security-Policy", artifactPolicy)
	h.serveFile(w, r, path)
}

func (h *handlers) media(w http.ResponseWriter, r *http.Request) {
	name, ok := cleanMediaName(chi.URLParam(r, "file"))
	if !ok {
		h.logger.WarnWithFields("Rejected media path", map[string]interface{}{
			"path": r.URL.Path,
		})
		http.Error(w, "invalid media path", http.StatusBadRequest)
		return
	}

	h.serveFile(w, r, filepath.Join(h.mediaDir, name))
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         "ok",
		"archived":       h.store.Len(),
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

func (h *handlers) serveFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			h.logger.WithError(err).WarnWithFields("Failed to open archive file", map[string]interface{}{
				"path": path,
			})
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// cleanMediaName accepts only a plain file name inside the media directory
func cleanMediaName(raw string) (string, bool) {
	name, err := url.PathUnescape(raw)
	if err != nil || name == "" {
		return "", false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || strings.HasPrefix(name, ".") {
		return "", false
	}
	if filepath.Base(name) != name || name == storage.IndexFileName {
		return "", false
	}
	return name, true
}
