package auth

import (
	"fmt"
	"io"
	"strings"
)

// RequiredScopes are the OAuth2 scopes the bookmarks endpoint needs
var RequiredScopes = []string{"bookmark.read", "tweet.read", "users.read", "offline.access"}

// ShowTokenGuide explains how to obtain an OAuth2 user token for the X API
func ShowTokenGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "X API ACCESS TOKEN")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The bookmarks endpoint only accepts an OAuth 2.0 user context token.")
	fmt.Fprintln(w, "App-only bearer tokens are rejected.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Create a project and app at https://developer.x.com")
	fmt.Fprintln(w, "2. Enable OAuth 2.0 (type: native app / public client)")
	fmt.Fprintf(w, "3. Authorize with the scopes: %s\n", strings.Join(RequiredScopes, " "))
	fmt.Fprintln(w, "4. Exchange the authorization code for a token pair")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Paste the access token below. If you also provide the refresh token and")
	fmt.Fprintln(w, "client id, expired tokens are refreshed automatically before each sync.")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "For unattended runs set %s (and optionally %s, %s).\n", EnvAccessToken, EnvRefreshToken, EnvClientID)
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
