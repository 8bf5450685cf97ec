// Package ratelimit paces outbound requests on the client side.
//
// TokenBucket models the X API's "N requests per window" budget for the
// bookmark source. HostLimiter keeps a golang.org/x/time/rate limiter per
// media host so parallel downloads stay polite to each CDN.
package ratelimit
