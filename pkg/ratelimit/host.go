package ratelimit

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter paces requests independently per remote host
type HostLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	limit    rate.Limit
	burst    int
}

// NewHostLimiter allows rps requests per second to each host. rps <= 0 disables pacing.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// WaitForHost blocks until a request to the host of rawURL is allowed
func (h *HostLimiter) WaitForHost(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if parsed.Host == "" {
		return &url.Error{Op: "parse", URL: rawURL, Err: errors.New("missing host in URL")}
	}

	return h.limiterFor(parsed.Host).Wait(ctx)
}

// Hosts returns the number of hosts seen so far
func (h *HostLimiter) Hosts() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.limiters)
}

func (h *HostLimiter) limiterFor(host string) *rate.Limiter {
	h.mu.RLock()
	limiter, ok := h.limiters[host]
	h.mu.RUnlock()
	if ok {
		return limiter
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if limiter, ok := h.limiters[host]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(h.limit, h.burst)
	h.limiters[host] = limiter
	return limiter
}
