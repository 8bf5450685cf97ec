package xapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/models"
)

func TestBestVideoURL(t *testing.T) {
	variants := []Variant{
		{ContentType: "application/x-mpegURL", URL: "https://v/playlist.m3u8"},
		{BitRate: 256000, ContentType: "video/mp4", URL: "https://v/low.mp4"},
		{BitRate: 2176000, ContentType: "video/mp4", URL: "https://v/high.mp4"},
		{BitRate: 832000, ContentType: "video/mp4", URL: "https://v/mid.mp4"},
	}
	assert.Equal(t, "https://v/high.mp4", BestVideoURL(variants))
	assert.Equal(t, "", BestVideoURL(variants[:1]))
	assert.Equal(t, "", BestVideoURL(nil))
}

func TestToRecords(t *testing.T) {
	log := logger.NewTestLogger()
	resp := &BookmarksResponse{
		Data: []Tweet{
			{ID: "1", Text: "a", AuthorID: "u1", Attachments: &Attachments{MediaKeys: []string{"m1", "m2", "missing"}}},
			{ID: "", Text: "no id", AuthorID: "u1"},
			{ID: "3", Text: "ghost", AuthorID: "u404"},
			{ID: "4", Text: "gif", AuthorID: "u1", Attachments: &Attachments{MediaKeys: []string{"m3"}}},
		},
		Includes: Includes{
			Users: []User{{ID: "u1", Name: "U", Username: "u"}},
			Media: []Media{
				{MediaKey: "m1", Type: "photo", URL: "https://p/1.jpg"},
				{MediaKey: "m2", Type: "video", PreviewImageURL: "https://p/2.jpg"},
				{MediaKey: "m3", Type: "animated_gif", Variants: []Variant{{ContentType: "video/mp4", URL: "https://v/3.mp4"}}},
			},
		},
	}

	records := ToRecords(resp, log)
	require.Len(t, records, 2)

	assert.Equal(t, "1", records[0].ID)
	require.Len(t, records[0].MediaRefs, 2)
	assert.Equal(t, "https://p/2.jpg", records[0].MediaRefs[1].URL, "video without variants falls back to the preview")

	assert.Equal(t, models.MediaAnimatedGIF, records[1].MediaRefs[0].Kind)
	assert.Equal(t, "https://v/3.mp4", records[1].MediaRefs[0].URL)

	assert.True(t, log.HasMessage("Dropping bookmark without id"))
	assert.True(t, log.HasMessage("Dropping bookmark with unknown author"))
}

func TestToRecords_DropsMalformedIDs(t *testing.T) {
	log := logger.NewTestLogger()
	resp := &BookmarksResponse{
		Data: []Tweet{
			{ID: "x/../../escaped", AuthorID: "u1"},
			{ID: "..", AuthorID: "u1"},
			{ID: "12a", AuthorID: "u1"},
			{ID: "123456789012345678901", AuthorID: "u1"},
			{ID: "1700000000000000001", AuthorID: "u1"},
		},
		Includes: Includes{Users: []User{{ID: "u1", Username: "u"}}},
	}

	records := ToRecords(resp, log)
	require.Len(t, records, 1)
	assert.Equal(t, "1700000000000000001", records[0].ID)
	assert.True(t, log.HasMessage("Dropping bookmark with malformed id"))
}

func TestValidID(t *testing.T) {
	assert.True(t, validID("1"))
	assert.True(t, validID("18446744073709551615"))
	assert.False(t, validID(""))
	assert.False(t, validID("-1"))
	assert.False(t, validID("1/2"))
	assert.False(t, validID("１２"))
}

func TestBookmarksURL(t *testing.T) {
	u := BookmarksURL("https://api.x.com/", "42", "abc", 500)
	assert.Contains(t, u, "https://api.x.com/2/users/42/bookmarks?")
	assert.Contains(t, u, "max_results=100")
	assert.Contains(t, u, "pagination_token=abc")
	assert.Contains(t, u, "expansions=author_id%2Cattachments.media_keys")

	assert.NotContains(t, BookmarksURL(BaseURL, "42", "", 10), "pagination_token")
}

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, 100, ClampPageSize(0))
	assert.Equal(t, 1, ClampPageSize(1))
	assert.Equal(t, 100, ClampPageSize(101))
	assert.Equal(t, 37, ClampPageSize(37))
}
