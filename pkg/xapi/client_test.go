package xapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmarkvault/internal/xapitest"
	"bookmarkvault/pkg/config"
	errs "bookmarkvault/pkg/errors"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/models"
	"bookmarkvault/pkg/xapi"
)

func newClient(t *testing.T, baseURL, token string) *xapi.Client {
	t.Helper()
	cfg := config.DefaultConfig().X
	cfg.APIBaseURL = baseURL
	cfg.RequestsPerMin = 0
	return xapi.NewClient(&cfg, token, logger.NewTestLogger())
}

func TestListBookmarks_MapsPage(t *testing.T) {
	srv := xapitest.NewServer()
	defer srv.Close()

	author := xapitest.Author("10", "ada")
	author.ProfileImageURL = "https://pbs.example/ada.jpg"
	srv.SetPages([]xapitest.Post{{
		ID:     "500",
		Text:   "look",
		Author: author,
		Likes:  7,
		Media: []xapi.Media{
			xapitest.Photo("3_1", "https://pbs.example/1.jpg"),
			xapitest.Video("7_2", "https://video.example/2.mp4", "https://pbs.example/2.jpg"),
		},
	}}, xapitest.Posts(600, 2, author))

	c := newClient(t, srv.URL(), xapitest.Token)
	page, err := c.ListBookmarks(context.Background(), "", 50)
	require.NoError(t, err)

	assert.Equal(t, "page-1", page.NextCursor)
	require.Len(t, page.Items, 1)
	rec := page.Items[0]
	assert.Equal(t, "500", rec.ID)
	assert.Equal(t, "ada", rec.Author.Username)
	assert.Equal(t, "https://pbs.example/ada.jpg", rec.Author.ProfileImageURL)
	assert.Equal(t, 7, rec.Metrics.Likes)
	require.Len(t, rec.MediaRefs, 2)
	assert.Equal(t, models.MediaRef{URL: "https://pbs.example/1.jpg", Key: "3_1", Kind: models.MediaPhoto}, rec.MediaRefs[0])
	assert.Equal(t, "https://video.example/2.mp4", rec.MediaRefs[1].URL)

	page, err = c.ListBookmarks(context.Background(), page.NextCursor, 50)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Empty(t, page.NextCursor)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "", reqs[0].Cursor)
	assert.Equal(t, "page-1", reqs[1].Cursor)
	assert.Equal(t, 50, reqs[0].MaxResults)
}

func TestListBookmarks_CountsDroppedItems(t *testing.T) {
	srv := xapitest.NewServer()
	defer srv.Close()
	srv.SetPages(
		xapitest.Withheld(xapitest.Posts(1, 3, xapitest.Author("13", "gone"))),
		xapitest.Posts(10, 1, xapitest.Author("42", "grace")),
	)

	c := newClient(t, srv.URL(), xapitest.Token)
	page, err := c.ListBookmarks(context.Background(), "", 50)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 3, page.Received)
	assert.Equal(t, "page-1", page.NextCursor)
}

func TestListBookmarks_Unauthorized(t *testing.T) {
	srv := xapitest.NewServer()
	defer srv.Close()

	c := newClient(t, srv.URL(), "wrong")
	_, err := c.ListBookmarks(context.Background(), "", 10)
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
}

func TestListBookmarks_RateLimited(t *testing.T) {
	srv := xapitest.NewServer()
	defer srv.Close()
	srv.SetPages(xapitest.Posts(1, 1, xapitest.Author("1", "bob")))
	srv.RateLimitNext(5 * time.Second)

	c := newClient(t, srv.URL(), xapitest.Token)
	_, err := c.ListBookmarks(context.Background(), "", 10)
	require.Error(t, err)

	wait, ok := errs.RetryAfterOf(err)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, wait)
}

func TestListBookmarks_ServerErrorIsTransient(t *testing.T) {
	srv := xapitest.NewServer()
	defer srv.Close()
	srv.FailNext(http.StatusServiceUnavailable)

	c := newClient(t, srv.URL(), xapitest.Token)
	_, err := c.ListBookmarks(context.Background(), "", 10)
	assert.True(t, errs.IsType(err, errs.ErrorTypeTransientNetwork))
}

func TestListBookmarks_RateLimitResetHeader(t *testing.T) {
	reset := time.Now().Add(90 * time.Second).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig().X
	cfg.APIBaseURL = srv.URL
	cfg.UserID = "1"
	cfg.RequestsPerMin = 0
	c := xapi.NewClient(&cfg, "t", logger.NewTestLogger())

	_, err := c.ListBookmarks(context.Background(), "", 10)
	wait, ok := errs.RetryAfterOf(err)
	require.True(t, ok)
	assert.InDelta(t, 90, wait.Seconds(), 2)
}

func TestListBookmarks_RateLimitDefaultWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig().X
	cfg.APIBaseURL = srv.URL
	cfg.UserID = "1"
	c := xapi.NewClient(&cfg, "t", logger.NewTestLogger())

	_, err := c.ListBookmarks(context.Background(), "", 10)
	wait, ok := errs.RetryAfterOf(err)
	require.True(t, ok)
	assert.Equal(t, xapi.DefaultRetryAfter, wait)
}

func TestListBookmarks_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	cfg := config.DefaultConfig().X
	cfg.APIBaseURL = url
	cfg.UserID = "1"
	c := xapi.NewClient(&cfg, "t", logger.NewTestLogger())

	_, err := c.ListBookmarks(context.Background(), "", 10)
	assert.True(t, errs.IsType(err, errs.ErrorTypeTransientNetwork))
}

func TestMe(t *testing.T) {
	srv := xapitest.NewServer()
	defer srv.Close()

	c := newClient(t, srv.URL(), xapitest.Token)
	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, xapitest.UserID, me.ID)

	id, err := c.UserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, xapitest.UserID, id)
}

func TestRefreshToken(t *testing.T) {
	srv := xapitest.NewServer()
	defer srv.Close()

	tok, err := xapi.RefreshToken(context.Background(), nil, srv.URL(), "client", xapitest.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-"+xapitest.Token, tok.AccessToken)
	assert.Equal(t, 7200, tok.ExpiresIn)

	_, err = xapi.RefreshToken(context.Background(), nil, srv.URL(), "client", "stale")
	assert.True(t, errs.IsFatal(err))
}
