package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/models"
)

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		ext         string
		kind        models.MimeKind
		ok          bool
	}{
		{"image/jpeg", ".jpg", models.MimeImage, true},
		{"image/png; charset=binary", ".png", models.MimeImage, true},
		{"video/mp4", ".mp4", models.MimeVideo, true},
		{"VIDEO/QUICKTIME", ".mov", models.MimeVideo, true},
		{"text/html", "", models.MimeOther, false},
		{"", "", models.MimeOther, false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			ext, kind, ok := ExtensionFor(tt.contentType)
			assert.Equal(t, tt.ext, ext)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "1789_0123456789ab.jpg", FileName("1789", "0123456789abcdef", ".jpg"))
	assert.Equal(t, "a_b_c_abc.png", FileName("a/b.c", "abc", ".png"))
}

func TestMediaStoreSaveAndLookup(t *testing.T) {
	root := t.TempDir()
	store, err := NewMediaStore(root, "media", logger.NewNopLogger())
	require.NoError(t, err)

	asset, reused, err := store.Save("42", "https://pbs.twimg.com/media/a.jpg", "image/jpeg", strings.NewReader("jpeg bytes"))
	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, models.MimeImage, asset.MimeKind)
	assert.Equal(t, int64(len("jpeg bytes")), asset.Size)
	assert.True(t, strings.HasPrefix(asset.LocalPath, "media/42_"))
	assert.True(t, strings.HasSuffix(asset.LocalPath, ".jpg"))
	assert.Len(t, asset.ContentHash, 64)

	data, err := os.ReadFile(filepath.Join(root, asset.LocalPath))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	got, ok := store.Lookup("42", "https://pbs.twimg.com/media/a.jpg")
	require.True(t, ok)
	assert.Equal(t, asset, got)

	_, ok = store.Lookup("43", "https://pbs.twimg.com/media/a.jpg")
	assert.False(t, ok, "lookups are scoped to the owning bookmark")

	t.Run("same content is reused", func(t *testing.T) {
		again, reused, err := store.Save("42", "https://pbs.twimg.com/media/a.jpg?name=orig", "image/jpeg", strings.NewReader("jpeg bytes"))
		require.NoError(t, err)
		assert.True(t, reused)
		assert.Equal(t, asset.LocalPath, again.LocalPath)
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		entries, err := os.ReadDir(store.Dir())
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
		}
	})

	require.NoError(t, store.Close())

	t.Run("index survives restart", func(t *testing.T) {
		reopened, err := NewMediaStore(root, "media", logger.NewNopLogger())
		require.NoError(t, err)
		defer reopened.Close()

		got, ok := reopened.Lookup("42", "https://pbs.twimg.com/media/a.jpg")
		require.True(t, ok)
		assert.Equal(t, asset.ContentHash, got.ContentHash)
		assert.Equal(t, 2, reopened.Count())
	})
}

func TestMediaStoreFilesAreWorldReadable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	root := t.TempDir()
	store, err := NewMediaStore(root, "media", logger.NewNopLogger())
	require.NoError(t, err)
	defer store.Close()

	asset, _, err := store.Save("42", "https://pbs.twimg.com/media/p.png", "image/png", strings.NewReader("png bytes"))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(root, asset.LocalPath))
	require.NoError(t, err)
	assert.Equal(t, MediaFileMode, info.Mode().Perm())
}

func TestMediaStoreForgetsDeletedFiles(t *testing.T) {
	root := t.TempDir()
	store, err := NewMediaStore(root, "media", logger.NewNopLogger())
	require.NoError(t, err)
	defer store.Close()

	asset, _, err := store.Save("7", "https://video.twimg.com/v.mp4", "video/mp4", strings.NewReader("mp4"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, asset.LocalPath)))

	_, ok := store.Lookup("7", "https://video.twimg.com/v.mp4")
	assert.False(t, ok)
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) { return 0, errors.New("connection reset") }

func TestMediaStoreSaveErrors(t *testing.T) {
	root := t.TempDir()
	store, err := NewMediaStore(root, "media", logger.NewNopLogger())
	require.NoError(t, err)
	defer store.Close()

	_, _, err = store.Save("1", "https://example.com/page", "text/html", strings.NewReader("<html>"))
	assert.ErrorContains(t, err, "unsupported content type")

	_, _, err = store.Save("1", "https://example.com/a.png", "image/png", io.MultiReader(strings.NewReader("partial"), failingReader{}))
	assert.ErrorContains(t, err, "connection reset")

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, IndexFileName, e.Name(), "only the index should remain")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bookmark_1.html")

	require.NoError(t, WriteFileAtomic(path, 0644, func(w io.Writer) error {
		_, err := io.WriteString(w, "<html>ok</html>")
		return err
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(data))

	err = WriteFileAtomic(path, 0644, func(w io.Writer) error {
		_, _ = io.WriteString(w, "<html>half")
		return errors.New("template exploded")
	})
	require.Error(t, err)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(data), "failed write must not clobber the previous file")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
