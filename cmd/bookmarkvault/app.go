package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bookmarkvault/pkg/auth"
	"bookmarkvault/pkg/checkpoint"
	"bookmarkvault/pkg/config"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/manifest"
	"bookmarkvault/pkg/media"
	"bookmarkvault/pkg/render"
	"bookmarkvault/pkg/retry"
	"bookmarkvault/pkg/storage"
	"bookmarkvault/pkg/syncer"
	"bookmarkvault/pkg/ui"
	"bookmarkvault/pkg/xapi"
)

// app wires the sync pipeline for one archive
type app struct {
	cfg        *config.Config
	log        logger.Logger
	store      manifest.Store
	media      *storage.MediaStore
	client     *xapi.Client
	credential *auth.Credential
	creds      *auth.Manager
	engine     *syncer.Engine
	notifier   *ui.Notifier
}

// openStore opens only the manifest, for commands that do not sync
func openStore(cfg *config.Config, log logger.Logger) (manifest.Store, error) {
	store, err := manifest.Open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	return store, nil
}

// newApp opens the archive and builds the engine. A nil store opens a new one.
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger, store manifest.Store, onProgress func(syncer.Summary)) (*app, error) {
	a := &app{cfg: cfg, log: log, notifier: ui.NewNotifier(&cfg.Notifications)}

	creds, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	a.creds = creds

	cred, err := creds.RetrieveDefault(cfg.X.DefaultAccount)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return nil, fmt.Errorf("no X access token found; run `bookmarkvault auth login` or set %s", auth.EnvAccessToken)
		}
		return nil, err
	}
	a.credential = cred

	if store == nil {
		if store, err = openStore(cfg, log); err != nil {
			return nil, err
		}
	}
	a.store = store

	a.media, err = storage.NewMediaStore(cfg.Archive.RootDir, cfg.Archive.MediaDirName, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open media store: %w", err)
	}

	a.client = xapi.NewClient(&cfg.X, cred.AccessToken, log)
	if err := a.refreshToken(ctx); err != nil {
		a.Close()
		return nil, err
	}

	cp, err := checkpoint.NewManager(cfg.Archive.RootDir, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	policy := retry.NewPolicy(&cfg.Retry, log)
	a.engine, err = syncer.New(syncer.Options{
		Config:     cfg,
		Logger:     log,
		Source:     a.client,
		Store:      a.store,
		Fetcher:    media.NewFetcher(&cfg.Media, a.media, policy, log),
		Renderer:   render.New(cfg.Archive.RootDir, log),
		Retry:      policy,
		Checkpoint: cp,
		OnProgress: onProgress,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// refreshToken renews an expiring access token and hands it to the client
func (a *app) refreshToken(ctx context.Context) error {
	hc := &http.Client{Timeout: a.cfg.X.Timeout}
	refresh := func(ctx context.Context, clientID, refreshToken string) (string, string, time.Duration, error) {
		tok, err := xapi.RefreshToken(ctx, hc, a.cfg.X.APIBaseURL, clientID, refreshToken)
		if err != nil {
			return "", "", 0, err
		}
		return tok.AccessToken, tok.RefreshToken, time.Duration(tok.ExpiresIn) * time.Second, nil
	}

	cred, err := a.creds.EnsureFresh(ctx, a.credential, refresh)
	if cred == nil {
		return err
	}
	if err != nil {
		a.log.WithError(err).Warn("Using refreshed token that could not be stored")
	}
	if cred.AccessToken != a.credential.AccessToken {
		a.log.WithField("account", cred.Name).Info("Access token refreshed")
	}
	a.credential = cred
	a.client.SetToken(cred.AccessToken)
	return nil
}

// sync runs the engine once, refreshing the token first
func (a *app) sync(ctx context.Context) (*syncer.Summary, error) {
	if err := a.refreshToken(ctx); err != nil {
		return &syncer.Summary{}, err
	}
	return a.engine.Run(ctx)
}

// Close releases the archive. The manifest is closed too.
func (a *app) Close() {
	if a.media != nil {
		if err := a.media.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close media store")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close manifest")
		}
	}
}
