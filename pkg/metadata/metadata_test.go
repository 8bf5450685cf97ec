package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmarkvault/pkg/models"
)

func sampleRecord() *models.BookmarkRecord {
	return &models.BookmarkRecord{
		ID:        "1001",
		Author:    models.Author{ID: "9", Name: "Ada", Username: "ada", ProfileImageURL: "https://pbs.example/ada.jpg"},
		Text:      "hello\nworld",
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Metrics:   models.Metrics{Likes: 3},
	}
}

func TestFromRecord_SeparatesAvatar(t *testing.T) {
	rec := sampleRecord()
	assets := []models.MediaAsset{
		{SourceURL: "https://pbs.example/1.jpg", LocalPath: "media/1001_aaa.jpg"},
		{SourceURL: rec.Author.ProfileImageURL, LocalPath: "media/1001_bbb.jpg"},
	}

	meta := FromRecord(rec, assets, nil, time.Now())

	require.NotNil(t, meta.Avatar)
	assert.Equal(t, "media/1001_bbb.jpg", meta.Avatar.LocalPath)
	require.Len(t, meta.Media, 1)
	assert.Equal(t, "media/1001_aaa.jpg", meta.Media[0].LocalPath)
	assert.Equal(t, "https://x.com/ada/status/1001", meta.Permalink)
}

func TestSaveAndLoad(t *testing.T) {
	root := t.TempDir()
	archivedAt := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	meta := FromRecord(sampleRecord(), nil, []models.MissingMedia{{SourceURL: "https://x/y.jpg", Reason: "404"}}, archivedAt)

	require.NoError(t, meta.Save(root))
	assert.True(t, Exists(root, "1001"))
	assert.False(t, Exists(root, "1002"))

	loaded, err := Load(root, "1001")
	require.NoError(t, err)
	assert.Equal(t, meta.Text, loaded.Text)
	assert.True(t, archivedAt.Equal(loaded.ArchivedAt))
	require.Len(t, loaded.Missing, 1)
	assert.Equal(t, "404", loaded.Missing[0].Reason)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir(), "nope")
	assert.Error(t, err)
}

func TestSnippet(t *testing.T) {
	meta := &BookmarkMetadata{Text: "one\ntwo   three"}
	assert.Equal(t, "one two three", meta.Snippet(50))
	assert.Equal(t, "one t...", meta.Snippet(8))

	meta.Text = "日本語のテキスト"
	assert.Equal(t, "日本...", meta.Snippet(5))

	assert.Equal(t, "", (&BookmarkMetadata{}).Snippet(10))
}

func TestCleanOrphaned(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bookmark_1.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bookmark_1.html"), []byte("<html></html>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bookmark_2.json"), []byte("{}"), 0644))

	removed, err := CleanOrphaned(root)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.True(t, Exists(root, "1"))
	assert.False(t, Exists(root, "2"))
}
