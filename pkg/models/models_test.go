package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermalink(t *testing.T) {
	r := BookmarkRecord{ID: "1789", Author: Author{Username: "gopher"}}
	assert.Equal(t, "https://x.com/gopher/status/1789", r.Permalink())

	anon := BookmarkRecord{ID: "1789"}
	assert.Equal(t, "https://x.com/i/web/status/1789", anon.Permalink())
}

func TestMediaAssetHelpers(t *testing.T) {
	a := MediaAsset{LocalPath: "media/1789_abcdef012345.mp4", MimeKind: MimeVideo}
	assert.True(t, a.IsVideo())
	assert.Equal(t, "1789_abcdef012345.mp4", a.FileName())

	b := MediaAsset{LocalPath: "flat.jpg", MimeKind: MimeImage}
	assert.False(t, b.IsVideo())
	assert.Equal(t, "flat.jpg", b.FileName())
}
