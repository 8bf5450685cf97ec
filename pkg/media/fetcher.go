package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bookmarkvault/pkg/config"
	errs "bookmarkvault/pkg/errors"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/metrics"
	"bookmarkvault/pkg/models"
	"bookmarkvault/pkg/ratelimit"
	"bookmarkvault/pkg/retry"
	"bookmarkvault/pkg/storage"
)

var errTooLarge = errors.New("media exceeds size limit")

// Fetcher downloads media into a MediaStore
type Fetcher struct {
	client   *http.Client
	store    *storage.MediaStore
	limiter  *ratelimit.HostLimiter
	policy   *retry.Policy
	timeout  time.Duration
	maxBytes int64
	logger   logger.Logger
}

// NewFetcher builds a fetcher. policy is the shared retry policy; the attempt
// bound from cfg is applied on top of it.
func NewFetcher(cfg *config.MediaConfig, store *storage.MediaStore, policy *retry.Policy, log logger.Logger) *Fetcher {
	return &Fetcher{
		client:   &http.Client{},
		store:    store,
		limiter:  ratelimit.NewHostLimiter(cfg.PerHostRPS, 2),
		policy:   policy.WithMaxAttempts(cfg.MaxAttempts).WithRetryIf(retry.DefaultRetryIf),
		timeout:  cfg.Timeout,
		maxBytes: cfg.MaxBytes,
		logger:   log.WithField("component", "media"),
	}
}

// WithHTTPClient replaces the HTTP client, mostly for tests
func (f *Fetcher) WithHTTPClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

// Fetch resolves ref to a stored asset. Every failure that is returned,
// other than context cancellation, is a permanent media error: transient
// errors are retried and escalated once the attempts run out.
func (f *Fetcher) Fetch(ctx context.Context, bookmarkID string, ref models.MediaRef) (models.MediaAsset, error) {
	if err := validateURL(ref.URL); err != nil {
		return f.fail(bookmarkID, ref, errs.NewPermanentMedia(0, "invalid media url", err))
	}

	if asset, ok := f.store.Lookup(bookmarkID, ref.URL); ok {
		logger.LogMediaFetch(f.logger, bookmarkID, ref.URL, asset.LocalPath, true, nil)
		metrics.RecordMedia("reused", 0)
		return asset, nil
	}

	var (
		asset  models.MediaAsset
		reused bool
	)
	err := f.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		asset, reused, err = f.download(ctx, bookmarkID, ref)
		return err
	})

	switch {
	case err == nil:
		logger.LogMediaFetch(f.logger, bookmarkID, ref.URL, asset.LocalPath, reused, nil)
		metrics.RecordMedia("downloaded", asset.Size)
		return asset, nil
	case ctx.Err() != nil:
		return models.MediaAsset{}, ctx.Err()
	case retry.IsExhausted(err):
		return f.fail(bookmarkID, ref, errs.NewPermanentMedia(0,
			fmt.Sprintf("gave up after %d attempts", f.policy.MaxAttempts), err))
	case errs.IsType(err, errs.ErrorTypePermanentMedia):
		return f.fail(bookmarkID, ref, err)
	default:
		return f.fail(bookmarkID, ref, errs.NewPermanentMedia(0, "media fetch failed", err))
	}
}

func (f *Fetcher) fail(bookmarkID string, ref models.MediaRef, err error) (models.MediaAsset, error) {
	logger.LogMediaFetch(f.logger, bookmarkID, ref.URL, "", false, err)
	metrics.RecordMedia("missing", 0)
	return models.MediaAsset{}, err
}

// download performs a single attempt and classifies its failure
func (f *Fetcher) download(ctx context.Context, bookmarkID string, ref models.MediaRef) (models.MediaAsset, bool, error) {
	if err := f.limiter.WaitForHost(ctx, ref.URL); err != nil {
		return models.MediaAsset{}, false, err
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return models.MediaAsset{}, false, errs.NewPermanentMedia(0, "failed to build request", err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		logger.LogRequest(f.logger, req.Method, ref.URL, 0, time.Since(start))
		return models.MediaAsset{}, false, errs.NewTransient(0, "media request failed", err)
	}
	defer resp.Body.Close()
	logger.LogRequest(f.logger, req.Method, ref.URL, resp.StatusCode, time.Since(start))

	if err := classifyStatus(resp); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return models.MediaAsset{}, false, err
	}

	contentType := resp.Header.Get("Content-Type")
	if _, _, ok := storage.ExtensionFor(contentType); !ok {
		return models.MediaAsset{}, false, errs.NewPermanentMedia(resp.StatusCode,
			fmt.Sprintf("unsupported content type %q", contentType), nil)
	}

	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return models.MediaAsset{}, false, errs.NewPermanentMedia(resp.StatusCode,
			fmt.Sprintf("media is %d bytes, limit is %d", resp.ContentLength, f.maxBytes), errTooLarge)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = &capReader{r: resp.Body, remaining: f.maxBytes}
	}

	asset, reused, err := f.store.Save(bookmarkID, ref.URL, contentType, body)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return models.MediaAsset{}, false, errs.NewPermanentMedia(resp.StatusCode, "media exceeds size limit", err)
		}
		if ctx.Err() != nil {
			return models.MediaAsset{}, false, errs.NewTransient(0, "media download timed out", err)
		}
		return models.MediaAsset{}, false, errs.NewTransient(resp.StatusCode, "media body interrupted", err)
	}
	return asset, reused, nil
}

func classifyStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return errs.NewRateLimited(parseRetryAfter(resp.Header.Get("Retry-After")), "media host rate limited")
	case errs.IsRetryableStatusCode(code):
		return errs.NewTransient(code, http.StatusText(code), nil)
	default:
		return errs.NewPermanentMedia(code, http.StatusText(code), nil)
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// capReader fails once more than remaining bytes have been read
type capReader struct {
	r         io.Reader
	remaining int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, errTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, errTooLarge
	}
	return n, err
}
