package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	errs "bookmarkvault/pkg/errors"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/metadata"
	"bookmarkvault/pkg/models"
	"bookmarkvault/pkg/storage"
)

var page = template.Must(template.New("bookmark").Parse(pageTemplate))

type mediaView struct {
	Path        string
	Video       bool
	ContentType string
}

type pageView struct {
	ID         string
	Name       string
	Username   string
	Avatar     string
	CreatedAt  time.Time
	Content    template.HTML
	Media      []mediaView
	Missing    []models.MissingMedia
	Metrics    models.Metrics
	Permalink  string
	ArchivedAt time.Time
}

// Renderer writes bookmark artifacts into an archive root
type Renderer struct {
	root      string
	sanitizer *Sanitizer
	now       func() time.Time
	logger    logger.Logger
}

// New creates a renderer writing into root
func New(root string, log logger.Logger) *Renderer {
	return &Renderer{
		root:      root,
		sanitizer: NewSanitizer(),
		now:       time.Now,
		logger:    log.WithField("component", "render"),
	}
}

// WithClock overrides the time stamped into artifacts
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	r.now = now
	return r
}

// Render writes bookmark_<id>.html and its metadata sidecar, and returns the
// artifact path relative to the archive root. assets must already be stored
// locally; an asset sourced from the author's profile image is used as the
// avatar. Nothing is written if the page would reference remote media.
func (r *Renderer) Render(ctx context.Context, record *models.BookmarkRecord, assets []models.MediaAsset, missing []models.MissingMedia) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if record == nil || record.ID == "" {
		return "", errs.NewRender("bookmark has no id", nil)
	}
	if storage.SafeID(record.ID) != record.ID {
		return "", errs.NewRender(fmt.Sprintf("bookmark id %q is not a valid file name", record.ID), nil)
	}

	meta := metadata.FromRecord(record, assets, missing, r.now().UTC())
	view := r.buildView(meta)

	var buf bytes.Buffer
	if err := page.Execute(&buf, view); err != nil {
		return "", errs.NewRender(fmt.Sprintf("failed to render bookmark %s", record.ID), err)
	}

	if err := checkLocalOnly(bytes.NewReader(buf.Bytes())); err != nil {
		return "", errs.NewRender(fmt.Sprintf("bookmark %s", record.ID), err)
	}

	if err := meta.Save(r.root); err != nil {
		return "", errs.NewRender(fmt.Sprintf("failed to write metadata for %s", record.ID), err)
	}

	rel := models.ArtifactFileName(record.ID)
	err := storage.WriteFileAtomic(filepath.Join(r.root, rel), 0644, func(w io.Writer) error {
		_, err := buf.WriteTo(w)
		return err
	})
	if err != nil {
		return "", errs.NewRender(fmt.Sprintf("failed to write artifact for %s", record.ID), err)
	}

	r.logger.DebugWithFields("Rendered bookmark", map[string]interface{}{
		"bookmark_id": record.ID,
		"path":        rel,
		"media":       len(view.Media),
		"missing":     len(missing),
	})
	return rel, nil
}

func (r *Renderer) buildView(meta *metadata.BookmarkMetadata) pageView {
	view := pageView{
		ID:         meta.ID,
		Name:       meta.Author.Name,
		Username:   meta.Author.Username,
		CreatedAt:  meta.CreatedAt,
		Content:    template.HTML(r.sanitizer.TextToHTML(meta.Text)),
		Missing:    meta.Missing,
		Metrics:    meta.Metrics,
		Permalink:  meta.Permalink,
		ArchivedAt: meta.ArchivedAt,
	}
	if meta.Avatar != nil {
		view.Avatar = meta.Avatar.LocalPath
	}
	for _, a := range meta.Media {
		view.Media = append(view.Media, mediaView{
			Path:        a.LocalPath,
			Video:       a.IsVideo(),
			ContentType: a.ContentType,
		})
	}
	return view
}

// checkLocalOnly fails if any embedded resource points off the archive
func checkLocalOnly(r io.Reader) error {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return fmt.Errorf("failed to parse rendered page: %w", err)
	}

	var bad []string
	doc.Find("[src], [poster], [srcset]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"src", "poster", "srcset"} {
			if v, ok := s.Attr(attr); ok && isRemote(v) {
				bad = append(bad, v)
			}
		}
	})
	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		if v, _ := s.Attr("href"); isRemote(v) {
			bad = append(bad, v)
		}
	})

	if len(bad) > 0 {
		return fmt.Errorf("page references remote resources: %s", strings.Join(bad, ", "))
	}
	return nil
}

func isRemote(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	if strings.HasPrefix(v, "//") {
		return true
	}
	if i := strings.Index(v, ":"); i > 0 {
		scheme := v[:i]
		return !strings.ContainsAny(scheme, "/?#") && scheme != "data"
	}
	return false
}

// VerifyArtifact checks that an archived page exists, is non-empty and
// embeds only local resources
func VerifyArtifact(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("artifact is empty")
	}

	return checkLocalOnly(f)
}
