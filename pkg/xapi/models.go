package xapi

import "time"

// BookmarksResponse is the payload of GET /2/users/:id/bookmarks
type BookmarksResponse struct {
	Data     []Tweet    `json:"data"`
	Includes Includes   `json:"includes"`
	Meta     Meta       `json:"meta"`
	Errors   []APIError `json:"errors,omitempty"`
}

// Includes carries the expanded objects referenced by the tweets
type Includes struct {
	Users []User  `json:"users"`
	Media []Media `json:"media"`
}

// Meta contains pagination information
type Meta struct {
	ResultCount int    `json:"result_count"`
	NextToken   string `json:"next_token"`
}

// Tweet is a single bookmarked post
type Tweet struct {
	ID            string         `json:"id"`
	Text          string         `json:"text"`
	CreatedAt     time.Time      `json:"created_at"`
	AuthorID      string         `json:"author_id"`
	PublicMetrics *PublicMetrics `json:"public_metrics,omitempty"`
	Attachments   *Attachments   `json:"attachments,omitempty"`
}

// PublicMetrics is the engagement snapshot of a tweet
type PublicMetrics struct {
	LikeCount    int `json:"like_count"`
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	QuoteCount   int `json:"quote_count"`
}

// Attachments lists the media keys of a tweet
type Attachments struct {
	MediaKeys []string `json:"media_keys"`
}

// User is an expanded author
type User struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
}

// Media is an expanded media object
type Media struct {
	MediaKey        string    `json:"media_key"`
	Type            string    `json:"type"`
	URL             string    `json:"url"`
	PreviewImageURL string    `json:"preview_image_url"`
	Variants        []Variant `json:"variants"`
}

// Variant is one encoding of a video or animated gif
type Variant struct {
	BitRate     int    `json:"bit_rate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// APIError is an entry of the errors array the API returns alongside partial data
type APIError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
	Status int    `json:"status,omitempty"`
}

// MeResponse is the payload of GET /2/users/me
type MeResponse struct {
	Data User `json:"data"`
}

// TokenResponse is the payload of POST /2/oauth2/token
type TokenResponse struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}
