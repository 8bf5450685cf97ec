package xapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// BaseURL is the base URL for the X API
	BaseURL = "https://api.x.com"

	// MeEndpoint returns the authenticated user
	MeEndpoint = "/2/users/me"

	// BookmarksEndpoint is the endpoint pattern for a user's bookmarks
	BookmarksEndpoint = "/2/users/%s/bookmarks"

	// TokenEndpoint is the OAuth2 token endpoint
	TokenEndpoint = "/2/oauth2/token"

	// MinPageSize and MaxPageSize bound max_results on the bookmarks endpoint
	MinPageSize = 1
	MaxPageSize = 100
)

var (
	tweetFields = []string{"id", "text", "created_at", "author_id", "public_metrics", "attachments"}
	userFields  = []string{"id", "name", "username", "profile_image_url"}
	mediaFields = []string{"media_key", "type", "url", "preview_image_url", "variants"}
	expansions  = []string{"author_id", "attachments.media_keys"}
)

// ClampPageSize keeps a requested page size inside what the API accepts
func ClampPageSize(n int) int {
	switch {
	case n < MinPageSize:
		return MaxPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}

// BookmarksURL builds the bookmarks request for one page
func BookmarksURL(baseURL, userID, cursor string, pageSize int) string {
	params := url.Values{}
	params.Set("max_results", strconv.Itoa(ClampPageSize(pageSize)))
	params.Set("tweet.fields", strings.Join(tweetFields, ","))
	params.Set("user.fields", strings.Join(userFields, ","))
	params.Set("media.fields", strings.Join(mediaFields, ","))
	params.Set("expansions", strings.Join(expansions, ","))
	if cursor != "" {
		params.Set("pagination_token", cursor)
	}

	return strings.TrimRight(baseURL, "/") + fmt.Sprintf(BookmarksEndpoint, url.PathEscape(userID)) + "?" + params.Encode()
}

// MeURL builds the authenticated-user lookup request
func MeURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + MeEndpoint
}

// TokenURL builds the OAuth2 token endpoint URL
func TokenURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + TokenEndpoint
}
