package xapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"bookmarkvault/pkg/config"
	errs "bookmarkvault/pkg/errors"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/models"
	"bookmarkvault/pkg/ratelimit"
)

// DefaultRetryAfter is used when a 429 carries no usable reset header
const DefaultRetryAfter = 60 * time.Second

// Client reads bookmarks from the X API v2. Each call is a single attempt;
// retrying and rate-limit pauses are left to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    ratelimit.Limiter
	logger     logger.Logger
	now        func() time.Time

	mu     sync.Mutex
	userID string
}

// NewClient creates a client authenticated with an OAuth2 user access token
func NewClient(cfg *config.XConfig, accessToken string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}

	var limiter ratelimit.Limiter
	if cfg.RequestsPerMin > 0 {
		limiter = ratelimit.NewTokenBucket(cfg.RequestsPerMin, time.Minute)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		token:      accessToken,
		limiter:    limiter,
		logger:     log.WithField("component", "xapi"),
		now:        time.Now,
		userID:     cfg.UserID,
	}
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// SetToken swaps the access token, e.g. after a refresh
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Me returns the authenticated user
func (c *Client) Me(ctx context.Context) (*User, error) {
	var resp MeResponse
	if err := c.getJSON(ctx, MeURL(c.baseURL), &resp); err != nil {
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, &errs.Error{Type: errs.ErrorTypeParsing, Message: "users/me returned no id"}
	}
	return &resp.Data, nil
}

// UserID returns the configured user id, resolving it through Me once
func (c *Client) UserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	id := c.userID
	c.mu.Unlock()
	if id != "" {
		return id, nil
	}

	me, err := c.Me(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.userID = me.ID
	c.mu.Unlock()

	c.logger.DebugWithFields("Resolved authenticated user", map[string]interface{}{
		"user_id":  me.ID,
		"username": me.Username,
	})
	return me.ID, nil
}

// ListBookmarks fetches one page of bookmarks. An empty cursor starts at the newest.
func (c *Client) ListBookmarks(ctx context.Context, cursor string, pageSize int) (*models.Page, error) {
	userID, err := c.UserID(ctx)
	if err != nil {
		return nil, err
	}

	var resp BookmarksResponse
	if err := c.getJSON(ctx, BookmarksURL(c.baseURL, userID, cursor, pageSize), &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 && len(resp.Errors) > 0 {
		e := resp.Errors[0]
		return nil, &errs.Error{Type: errs.ErrorTypeParsing, Code: e.Status, Message: fmt.Sprintf("%s: %s", e.Title, e.Detail)}
	}

	page := &models.Page{
		Items:      ToRecords(&resp, c.logger),
		NextCursor: resp.Meta.NextToken,
		Received:   len(resp.Data),
	}

	c.logger.DebugWithFields("Fetched bookmark page", map[string]interface{}{
		"cursor":      cursor,
		"items":       len(page.Items),
		"received":    page.Received,
		"next_cursor": page.NextCursor,
	})
	return page, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, target interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &errs.Error{Type: errs.ErrorTypeUnknown, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken())
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.LogRequest(c.logger, req.Method, redact(rawURL), 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.NewTransient(0, "request to X API failed", err)
	}
	defer resp.Body.Close()
	logger.LogRequest(c.logger, req.Method, redact(rawURL), resp.StatusCode, time.Since(start))

	if err := c.checkResponseStatus(resp); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.NewTransient(resp.StatusCode, "failed to read response body", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.ErrorWithFields("Failed to parse JSON response", map[string]interface{}{
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{Type: errs.ErrorTypeParsing, Code: resp.StatusCode, Message: "failed to parse JSON", Err: err}
	}

	return nil
}

// checkResponseStatus maps HTTP status codes onto the error taxonomy
func (c *Client) checkResponseStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errs.NewAuth(code, "X API rejected the access token; run `bookmarkvault auth login`")
	case code == http.StatusTooManyRequests:
		wait := c.retryAfter(resp.Header)
		logger.LogRateLimit(c.logger, resp.Request.URL.Path, wait, resp.Request.URL.Query().Get("pagination_token"))
		return errs.NewRateLimited(wait, "X API rate limit exceeded")
	case code == http.StatusNotFound:
		return &errs.Error{Type: errs.ErrorTypeNotFound, Code: code, Message: "resource not found"}
	case errs.IsRetryableStatusCode(code):
		return errs.NewTransient(code, "X API unavailable", nil)
	default:
		return &errs.Error{Type: errs.ErrorTypeUnknown, Code: code, Message: fmt.Sprintf("unexpected status code: %d", code)}
	}
}

// retryAfter reads x-rate-limit-reset (epoch seconds) or Retry-After
func (c *Client) retryAfter(h http.Header) time.Duration {
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(epoch, 0).Sub(c.now()); d > 0 {
				return d
			}
			return 0
		}
	}
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			if d := t.Sub(c.now()); d > 0 {
				return d
			}
			return 0
		}
	}
	return DefaultRetryAfter
}

// redact drops the query string, which carries the pagination token
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	return u.String()
}

// RefreshToken exchanges a refresh token for a new access token
func RefreshToken(ctx context.Context, hc *http.Client, baseURL, clientID, refreshToken string) (*TokenResponse, error) {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", clientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, TokenURL(baseURL), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, errs.NewTransient(0, "token refresh failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return nil, errs.NewAuth(resp.StatusCode, "refresh token rejected; run `bookmarkvault auth login`")
	case resp.StatusCode != http.StatusOK:
		return nil, errs.NewTransient(resp.StatusCode, "token endpoint unavailable", nil)
	}

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeParsing, Message: "failed to decode token response", Err: err}
	}
	if tok.AccessToken == "" {
		return nil, errs.NewAuth(resp.StatusCode, "token response has no access token")
	}
	return &tok, nil
}
