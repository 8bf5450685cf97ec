// Package xapitest provides a scripted X API server for tests.
package xapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"bookmarkvault/pkg/xapi"
)

const (
	// Token is the access token the server accepts
	Token = "test-access-token"
	// RefreshToken is the refresh token the token endpoint accepts
	RefreshToken = "test-refresh-token"
	// UserID is the id returned by /2/users/me
	UserID = "2244994945"
)

// Post describes one bookmarked post
type Post struct {
	ID      string
	Text    string
	Author  xapi.User
	Media   []xapi.Media
	Created time.Time
	Likes   int
	Reposts int
	// Withheld leaves the author out of includes, as the API does for
	// suspended accounts
	Withheld bool
}

// Request records one call to the bookmarks endpoint
type Request struct {
	Cursor     string
	MaxResults int
	Status     int
}

type scripted struct {
	status     int
	retryAfter string
}

type mediaFile struct {
	contentType string
	data        []byte
}

// Server is an httptest server speaking enough of the X API v2 for the sync engine
type Server struct {
	server *httptest.Server

	mu       sync.Mutex
	pages    [][]Post
	script   []scripted
	requests []Request
	media    map[string]mediaFile
	hits     map[string]int
	token    string
}

// NewServer starts a server with no bookmarks
func NewServer() *Server {
	s := &Server{
		media: make(map[string]mediaFile),
		hits:  make(map[string]int),
		token: Token,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/me", s.handleMe)
	mux.HandleFunc("/2/users/", s.handleBookmarks)
	mux.HandleFunc("/2/oauth2/token", s.handleToken)
	mux.HandleFunc("/media/", s.handleMedia)

	s.server = httptest.NewServer(mux)
	return s
}

// URL returns the base URL of the server
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the server down
func (s *Server) Close() {
	s.server.Close()
}

// SetPages replaces the bookmark feed. Each slice is served as one page and
// every page but the last carries a next_token.
func (s *Server) SetPages(pages ...[]Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = pages
}

// FailNext makes the next bookmarks call answer with status
func (s *Server) FailNext(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, scripted{status: status})
}

// RateLimitNext makes the next bookmarks call answer 429 with Retry-After
func (s *Server) RateLimitNext(retryAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, scripted{
		status:     http.StatusTooManyRequests,
		retryAfter: strconv.Itoa(int(retryAfter / time.Second)),
	})
}

// RevokeToken makes every later call fail with 401
func (s *Server) RevokeToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// Requests returns the bookmarks calls seen so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// AddMedia serves data under /media/<name> and returns its URL
func (s *Server) AddMedia(name, contentType string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media[name] = mediaFile{contentType: contentType, data: data}
	return s.server.URL + "/media/" + name
}

// MediaURL returns the URL a media name would be served under, registered or not
func (s *Server) MediaURL(name string) string {
	return s.server.URL + "/media/" + name
}

// MediaHits returns how many times a media name was requested
func (s *Server) MediaHits(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[name]
}

func (s *Server) authorized(r *http.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && r.Header.Get("Authorization") == "Bearer "+s.token
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, xapi.MeResponse{Data: xapi.User{ID: UserID, Name: "Test User", Username: "tester"}})
}

func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/bookmarks") {
		http.NotFound(w, r)
		return
	}
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cursor := r.URL.Query().Get("pagination_token")
	maxResults, _ := strconv.Atoi(r.URL.Query().Get("max_results"))

	s.mu.Lock()
	if len(s.script) > 0 {
		next := s.script[0]
		s.script = s.script[1:]
		s.requests = append(s.requests, Request{Cursor: cursor, MaxResults: maxResults, Status: next.status})
		s.mu.Unlock()

		if next.retryAfter != "" {
			w.Header().Set("Retry-After", next.retryAfter)
		}
		writeError(w, next.status, http.StatusText(next.status))
		return
	}

	index := 0
	if cursor != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(cursor, "page-"))
		if err != nil || n < 0 || n >= len(s.pages) {
			s.requests = append(s.requests, Request{Cursor: cursor, MaxResults: maxResults, Status: http.StatusBadRequest})
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, "invalid pagination_token")
			return
		}
		index = n
	}

	var posts []Post
	if index < len(s.pages) {
		posts = s.pages[index]
	}
	resp := buildResponse(posts)
	if index+1 < len(s.pages) {
		resp.Meta.NextToken = fmt.Sprintf("page-%d", index+1)
	}
	s.requests = append(s.requests, Request{Cursor: cursor, MaxResults: maxResults, Status: http.StatusOK})
	s.mu.Unlock()

	writeJSON(w, resp)
}

func buildResponse(posts []Post) xapi.BookmarksResponse {
	var resp xapi.BookmarksResponse
	seenUsers := make(map[string]bool)

	for _, p := range posts {
		tw := xapi.Tweet{
			ID:            p.ID,
			Text:          p.Text,
			CreatedAt:     p.Created,
			AuthorID:      p.Author.ID,
			PublicMetrics: &xapi.PublicMetrics{LikeCount: p.Likes, RetweetCount: p.Reposts},
		}
		if len(p.Media) > 0 {
			tw.Attachments = &xapi.Attachments{}
			for _, m := range p.Media {
				tw.Attachments.MediaKeys = append(tw.Attachments.MediaKeys, m.MediaKey)
				resp.Includes.Media = append(resp.Includes.Media, m)
			}
		}
		resp.Data = append(resp.Data, tw)

		if p.Author.ID != "" && !p.Withheld && !seenUsers[p.Author.ID] {
			seenUsers[p.Author.ID] = true
			resp.Includes.Users = append(resp.Includes.Users, p.Author)
		}
	}
	resp.Meta.ResultCount = len(resp.Data)
	return resp
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" ||
		r.PostForm.Get("refresh_token") != RefreshToken {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	s.mu.Lock()
	s.token = "refreshed-" + Token
	s.mu.Unlock()

	writeJSON(w, xapi.TokenResponse{
		TokenType:    "bearer",
		AccessToken:  "refreshed-" + Token,
		RefreshToken: RefreshToken,
		ExpiresIn:    7200,
		Scope:        "bookmark.read tweet.read users.read offline.access",
	})
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/media/")

	s.mu.Lock()
	s.hits[name]++
	f, ok := s.media[name]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", f.contentType)
	w.Write(f.data)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, title string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"title":  title,
		"status": status,
	})
}

// Photo builds a photo media object
func Photo(key, url string) xapi.Media {
	return xapi.Media{MediaKey: key, Type: "photo", URL: url}
}

// Video builds a video media object with a single mp4 variant
func Video(key, url, preview string) xapi.Media {
	return xapi.Media{
		MediaKey:        key,
		Type:            "video",
		PreviewImageURL: preview,
		Variants:        []xapi.Variant{{BitRate: 832000, ContentType: "video/mp4", URL: url}},
	}
}

// Withheld marks every post as coming from an author missing from includes
func Withheld(posts []Post) []Post {
	for i := range posts {
		posts[i].Withheld = true
	}
	return posts
}

// Author builds a user
func Author(id, username string) xapi.User {
	return xapi.User{ID: id, Name: strings.ToUpper(username[:1]) + username[1:], Username: username}
}

// Posts builds n text-only posts with ids start, start+1, ...
func Posts(start, n int, author xapi.User) []Post {
	posts := make([]Post, n)
	for i := range posts {
		id := strconv.Itoa(start + i)
		posts[i] = Post{
			ID:      id,
			Text:    "bookmark " + id,
			Author:  author,
			Created: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(start+i) * time.Minute),
		}
	}
	return posts
}
