package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmarkvault/pkg/logger"
)

func TestVerify(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := OpenFileStore(filepath.Join(root, "manifest.jsonl"), logger.NewNopLogger())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, os.WriteFile(filepath.Join(root, "bookmark_ok.html"), []byte("<html></html>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bookmark_empty.html"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bookmark_remote.html"), []byte("<img src=x>"), 0644))

	for _, id := range []string{"ok", "empty", "gone", "remote"} {
		require.NoError(t, s.Record(ctx, entry(id)))
	}

	check := func(path string) error {
		if filepath.Base(path) == "bookmark_remote.html" {
			return errors.New("references remote media")
		}
		return nil
	}

	problems := Verify(s, root, check)
	require.Len(t, problems, 3)

	reasons := map[string]string{}
	for _, p := range problems {
		reasons[p.ID] = p.Reason
	}
	assert.Equal(t, "artifact empty", reasons["empty"])
	assert.Equal(t, "artifact missing", reasons["gone"])
	assert.Equal(t, "references remote media", reasons["remote"])
}

func TestImportLegacy(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := OpenFileStore(filepath.Join(root, "manifest.jsonl"), logger.NewNopLogger())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Record(ctx, entry("already")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bookmark_legacy.html"), []byte("<html></html>"), 0644))

	idsFile := filepath.Join(root, "saved_bookmarks.json")
	require.NoError(t, os.WriteFile(idsFile, []byte(`["already","legacy","never-rendered"]`), 0644))

	res, err := ImportLegacy(ctx, s, root, idsFile)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Present)
	assert.Equal(t, []string{"never-rendered"}, res.Missing)
	assert.True(t, s.Contains("legacy"))
	assert.False(t, s.Contains("never-rendered"))
}
