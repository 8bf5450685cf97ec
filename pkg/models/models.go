package models

import (
	"strings"
	"time"
)

// MediaKind is the remote media type reported by the source
type MediaKind string

const (
	MediaPhoto       MediaKind = "photo"
	MediaVideo       MediaKind = "video"
	MediaAnimatedGIF MediaKind = "animated_gif"
)

// MimeKind is the broad class of a downloaded file
type MimeKind string

const (
	MimeImage MimeKind = "image"
	MimeVideo MimeKind = "video"
	MimeOther MimeKind = "other"
)

// Author is the account that posted a bookmarked item
type Author struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// Metrics is an engagement snapshot taken when the bookmark was fetched
type Metrics struct {
	Likes   int `json:"likes"`
	Reposts int `json:"reposts"`
	Replies int `json:"replies"`
	Quotes  int `json:"quotes"`
}

// MediaRef points at one remote media object attached to a bookmark
type MediaRef struct {
	URL  string    `json:"url"`
	Key  string    `json:"key,omitempty"`
	Kind MediaKind `json:"kind,omitempty"`
}

// BookmarkRecord is one remote bookmarked post. It only lives for one sync pass.
type BookmarkRecord struct {
	ID        string     `json:"id"`
	Author    Author     `json:"author"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"created_at"`
	Metrics   Metrics    `json:"metrics"`
	MediaRefs []MediaRef `json:"media_refs"`
}

// Permalink returns the canonical web URL of the post
func (r *BookmarkRecord) Permalink() string {
	user := r.Author.Username
	if user == "" {
		user = "i/web"
	}
	return "https://x.com/" + user + "/status/" + r.ID
}

// MediaAsset is a media object stored in the archive
type MediaAsset struct {
	SourceURL   string   `json:"source_url"`
	LocalPath   string   `json:"local_path"`
	ContentHash string   `json:"content_hash"`
	MimeKind    MimeKind `json:"mime_kind"`
	ContentType string   `json:"content_type,omitempty"`
	Size        int64    `json:"size"`
}

// IsVideo reports whether the asset should be rendered as a video element
func (a MediaAsset) IsVideo() bool {
	return a.MimeKind == MimeVideo
}

// FileName returns the base name of LocalPath
func (a MediaAsset) FileName() string {
	if i := strings.LastIndexByte(a.LocalPath, '/'); i >= 0 {
		return a.LocalPath[i+1:]
	}
	return a.LocalPath
}

// MissingMedia records a media reference that permanently failed
type MissingMedia struct {
	SourceURL string `json:"source_url"`
	Reason    string `json:"reason"`
}

// ManifestEntry is the durable proof that a bookmark was archived
type ManifestEntry struct {
	ID           string    `json:"id"`
	ArchivedAt   time.Time `json:"archived_at"`
	ArtifactPath string    `json:"artifact_path"`
}

// Page is one response from the bookmark source. An empty NextCursor ends discovery.
type Page struct {
	Items      []BookmarkRecord
	NextCursor string
	// Received counts the items the source returned, including malformed
	// ones dropped before they reached Items.
	Received int
}

// ArtifactFileName is the archive-relative file name of a bookmark's rendered page
func ArtifactFileName(id string) string {
	return "bookmark_" + id + ".html"
}
