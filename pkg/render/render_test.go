package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "bookmarkvault/pkg/errors"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/metadata"
	"bookmarkvault/pkg/models"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestRenderer(t *testing.T) (*Renderer, string) {
	t.Helper()
	root := t.TempDir()
	return New(root, logger.NewTestLogger()).WithClock(func() time.Time { return fixedNow }), root
}

func testRecord() *models.BookmarkRecord {
	return &models.BookmarkRecord{
		ID:        "1700000000000000001",
		Author:    models.Author{ID: "42", Name: "Grace", Username: "grace", ProfileImageURL: "https://pbs.twimg.com/profile_images/g.jpg"},
		Text:      "Read this https://example.com/post. <script>alert(1)</script>",
		CreatedAt: time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
		Metrics:   models.Metrics{Likes: 10, Reposts: 2, Replies: 1, Quotes: 0},
		MediaRefs: []models.MediaRef{{URL: "https://pbs.twimg.com/media/a.jpg"}, {URL: "https://video.twimg.com/v.mp4"}},
	}
}

func loadDoc(t *testing.T, path string) *goquery.Document {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc
}

func TestRender_WritesLocalOnlyArtifact(t *testing.T) {
	r, root := newTestRenderer(t)
	rec := testRecord()
	assets := []models.MediaAsset{
		{SourceURL: rec.MediaRefs[0].URL, LocalPath: "media/1700000000000000001_aaaaaaaaaaaa.jpg", MimeKind: models.MimeImage, ContentType: "image/jpeg"},
		{SourceURL: rec.MediaRefs[1].URL, LocalPath: "media/1700000000000000001_bbbbbbbbbbbb.mp4", MimeKind: models.MimeVideo, ContentType: "video/mp4"},
		{SourceURL: rec.Author.ProfileImageURL, LocalPath: "media/1700000000000000001_cccccccccccc.jpg", MimeKind: models.MimeImage, ContentType: "image/jpeg"},
	}

	rel, err := r.Render(context.Background(), rec, assets, nil)
	require.NoError(t, err)
	assert.Equal(t, "bookmark_1700000000000000001.html", rel)

	path := filepath.Join(root, rel)
	require.NoError(t, VerifyArtifact(path))

	doc := loadDoc(t, path)
	assert.Equal(t, "media/1700000000000000001_aaaaaaaaaaaa.jpg", doc.Find(".media img").AttrOr("src", ""))
	assert.Equal(t, "media/1700000000000000001_bbbbbbbbbbbb.mp4", doc.Find(".media video source").AttrOr("src", ""))
	assert.Equal(t, "media/1700000000000000001_cccccccccccc.jpg", doc.Find("img.avatar").AttrOr("src", ""))
	assert.Equal(t, "https://x.com/grace/status/1700000000000000001", doc.Find(".backup-info a").AttrOr("href", ""))
	assert.Contains(t, doc.Find(".backup-info").Text(), "2025-01-02 03:04:05")
	assert.Contains(t, doc.Find(".likes").Text(), "10")

	assert.True(t, metadata.Exists(root, rec.ID))
}

func TestRender_SanitizesAndLinkifiesText(t *testing.T) {
	r, root := newTestRenderer(t)

	rel, err := r.Render(context.Background(), testRecord(), nil, nil)
	require.NoError(t, err)

	doc := loadDoc(t, filepath.Join(root, rel))
	content := doc.Find(".content")
	assert.Equal(t, 0, doc.Find(".content script").Length())
	assert.Contains(t, content.Text(), "<script>alert(1)</script>")

	link := content.Find("a")
	require.Equal(t, 1, link.Length())
	assert.Equal(t, "https://example.com/post", link.AttrOr("href", ""))
	assert.Contains(t, link.AttrOr("rel", ""), "nofollow")
	assert.Equal(t, "_blank", link.AttrOr("target", ""))
}

func TestRender_NoAvatarWithoutLocalAsset(t *testing.T) {
	r, root := newTestRenderer(t)

	rel, err := r.Render(context.Background(), testRecord(), nil, []models.MissingMedia{
		{SourceURL: "https://pbs.twimg.com/media/a.jpg", Reason: "http 404"},
	})
	require.NoError(t, err)

	doc := loadDoc(t, filepath.Join(root, rel))
	assert.Equal(t, 0, doc.Find("img").Length())
	assert.Contains(t, doc.Find(".missing").Text(), "http 404")
}

func TestRender_RejectsRemoteMedia(t *testing.T) {
	r, root := newTestRenderer(t)
	rec := testRecord()
	assets := []models.MediaAsset{{SourceURL: rec.MediaRefs[0].URL, LocalPath: "https://pbs.twimg.com/media/a.jpg", MimeKind: models.MimeImage}}

	_, err := r.Render(context.Background(), rec, assets, nil)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeRender))

	_, statErr := os.Stat(filepath.Join(root, models.ArtifactFileName(rec.ID)))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRender_Overwrites(t *testing.T) {
	r, root := newTestRenderer(t)
	rec := testRecord()

	_, err := r.Render(context.Background(), rec, nil, nil)
	require.NoError(t, err)
	rec.Text = "second pass"
	_, err = r.Render(context.Background(), rec, nil, nil)
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(root, "bookmark_*.html"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "second pass")
}

func TestRender_CancelledContext(t *testing.T) {
	r, _ := newTestRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, testRecord(), nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRender_EmptyID(t *testing.T) {
	r, _ := newTestRenderer(t)
	_, err := r.Render(context.Background(), &models.BookmarkRecord{}, nil, nil)
	assert.True(t, errs.IsType(err, errs.ErrorTypeRender))
}

func TestRender_RejectsUnsafeID(t *testing.T) {
	r, root := newTestRenderer(t)

	for _, id := range []string{"x/../../escaped", "..", `a\b`, "a b"} {
		rec := testRecord()
		rec.ID = id
		rel, err := r.Render(context.Background(), rec, nil, nil)
		assert.True(t, errs.IsType(err, errs.ErrorTypeRender), id)
		assert.Empty(t, rel)
	}

	_, err := os.Stat(filepath.Join(filepath.Dir(root), "escaped.html"))
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVerifyArtifact(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.html")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	assert.Error(t, VerifyArtifact(empty))

	remote := filepath.Join(dir, "remote.html")
	require.NoError(t, os.WriteFile(remote, []byte(`<html><body><img src="//cdn.example/a.png"></body></html>`), 0644))
	assert.Error(t, VerifyArtifact(remote))

	local := filepath.Join(dir, "local.html")
	require.NoError(t, os.WriteFile(local, []byte(`<html><body><img src="media/a.png"><a href="https://x.com/">x</a></body></html>`), 0644))
	assert.NoError(t, VerifyArtifact(local))

	assert.Error(t, VerifyArtifact(filepath.Join(dir, "absent.html")))
}

func TestIsRemote(t *testing.T) {
	cases := map[string]bool{
		"media/a.jpg":             false,
		"./media/a.jpg":           false,
		"data:image/png;base64,x": false,
		"https://a/b.jpg":         true,
		"HTTP://a/b.jpg":          true,
		"//cdn/b.jpg":             true,
		"media/a.jpg?x=http://y":  false,
	}
	for in, want := range cases {
		assert.Equal(t, want, isRemote(in), in)
	}
}

func TestLinkify(t *testing.T) {
	out := linkify("see (https://a.example/x), & more")
	assert.True(t, strings.Contains(out, `<a href="https://a.example/x">https://a.example/x</a>),`), out)
	assert.Contains(t, out, "&amp; more")
}
