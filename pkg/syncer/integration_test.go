package syncer_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmarkvault/internal/xapitest"
	"bookmarkvault/pkg/config"
	errs "bookmarkvault/pkg/errors"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/manifest"
	"bookmarkvault/pkg/media"
	"bookmarkvault/pkg/models"
	"bookmarkvault/pkg/render"
	"bookmarkvault/pkg/retry"
	"bookmarkvault/pkg/storage"
	"bookmarkvault/pkg/syncer"
	"bookmarkvault/pkg/xapi"
)

var jpegBytes = []byte("\xff\xd8\xff\xe0fake-jpeg-data")

type stack struct {
	cfg    *config.Config
	server *xapitest.Server
	store  manifest.Store
	media  *storage.MediaStore
}

func newStack(t *testing.T) *stack {
	t.Helper()
	srv := xapitest.NewServer()
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Archive.RootDir = t.TempDir()
	cfg.X.APIBaseURL = srv.URL()
	cfg.X.RequestsPerMin = 0
	cfg.X.Timeout = 5 * time.Second
	cfg.Media.Timeout = 5 * time.Second

	log := logger.NewTestLogger()
	store, err := manifest.OpenFileStore(cfg.ManifestPath(), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ms, err := storage.NewMediaStore(cfg.Archive.RootDir, cfg.Archive.MediaDirName, log)
	require.NoError(t, err)
	t.Cleanup(func() { ms.Close() })

	return &stack{cfg: cfg, server: srv, store: store, media: ms}
}

func (s *stack) run(t *testing.T) (*syncer.Summary, error) {
	t.Helper()
	log := logger.NewTestLogger()
	noWait := func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	policy := retry.DefaultPolicy()
	policy.Sleep = noWait

	engine, err := syncer.New(syncer.Options{
		Config:   s.cfg,
		Logger:   log,
		Source:   xapi.NewClient(&s.cfg.X, xapitest.Token, log),
		Store:    s.store,
		Fetcher:  media.NewFetcher(&s.cfg.Media, s.media, policy, log),
		Renderer: render.New(s.cfg.Archive.RootDir, log),
		Retry:    policy,
		Sleep:    noWait,
	})
	require.NoError(t, err)
	return engine.Run(context.Background())
}

func TestSync_EndToEnd(t *testing.T) {
	s := newStack(t)
	author := xapitest.Author("42", "grace")
	photo := s.server.AddMedia("a.jpg", "image/jpeg", jpegBytes)

	first := xapitest.Posts(100, 2, author)
	first[0].Media = []xapi.Media{
		xapitest.Photo("3_1", photo),
		xapitest.Photo("3_2", s.server.MediaURL("missing.jpg")),
	}
	s.server.SetPages(first, xapitest.Posts(200, 1, author), nil)

	summary, err := s.run(t)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Committed)
	assert.Equal(t, 1, summary.MediaFetched)
	assert.Equal(t, 1, summary.MediaMissing)
	assert.Len(t, s.server.Requests(), 3)

	artifact := filepath.Join(s.cfg.Archive.RootDir, models.ArtifactFileName("100"))
	require.FileExists(t, artifact)
	assert.NoError(t, render.VerifyArtifact(artifact))
	assert.Equal(t, 1, s.server.MediaHits("a.jpg"))
	assert.Equal(t, 1, s.media.Count())

	problems := manifest.Verify(s.store, s.cfg.Archive.RootDir, render.VerifyArtifact)
	assert.Empty(t, problems)
}

func TestSync_SecondRunIsNoop(t *testing.T) {
	s := newStack(t)
	author := xapitest.Author("42", "grace")
	posts := xapitest.Posts(1, 3, author)
	posts[1].Media = []xapi.Media{xapitest.Photo("k", s.server.AddMedia("b.jpg", "image/jpeg", jpegBytes))}
	s.server.SetPages(posts)

	_, err := s.run(t)
	require.NoError(t, err)

	again, err := s.run(t)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Committed)
	assert.Equal(t, 3, again.Skipped)
	assert.Equal(t, 3, s.store.Len())
	assert.Equal(t, 1, s.server.MediaHits("b.jpg"))
}

func TestSync_RateLimitedThenResumes(t *testing.T) {
	s := newStack(t)
	s.server.SetPages(xapitest.Posts(1, 2, xapitest.Author("42", "grace")))
	s.server.RateLimitNext(2 * time.Second)

	summary, err := s.run(t)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RateLimitPauses)
	assert.Equal(t, 2, summary.Committed)

	reqs := s.server.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.StatusTooManyRequests, reqs[0].Status)
	assert.Equal(t, reqs[0].Cursor, reqs[1].Cursor)
}

func TestSync_RevokedTokenIsFatal(t *testing.T) {
	s := newStack(t)
	s.server.SetPages(xapitest.Posts(1, 2, xapitest.Author("42", "grace")))
	s.server.RevokeToken()

	summary, err := s.run(t)
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	assert.Equal(t, 0, summary.Committed)
	assert.Equal(t, 0, s.store.Len())
}

func TestSync_PageWithOnlyWithheldAuthorsContinues(t *testing.T) {
	s := newStack(t)
	s.server.SetPages(
		xapitest.Withheld(xapitest.Posts(1, 2, xapitest.Author("13", "suspended"))),
		xapitest.Posts(10, 2, xapitest.Author("42", "grace")),
	)

	summary, err := s.run(t)
	require.NoError(t, err)
	assert.Len(t, s.server.Requests(), 2)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, 2, summary.Committed)
	assert.True(t, summary.Complete)
	assert.False(t, s.store.Contains("1"))
	assert.True(t, s.store.Contains("10"))
}
