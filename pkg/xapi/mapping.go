package xapi

import (
	"strings"

	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/models"
)

// ToRecords maps a bookmarks payload into typed records. Tweets without a
// numeric id or whose author is not in the includes are logged and dropped.
func ToRecords(resp *BookmarksResponse, log logger.Logger) []models.BookmarkRecord {
	users := make(map[string]User, len(resp.Includes.Users))
	for _, u := range resp.Includes.Users {
		users[u.ID] = u
	}
	media := make(map[string]Media, len(resp.Includes.Media))
	for _, m := range resp.Includes.Media {
		media[m.MediaKey] = m
	}

	records := make([]models.BookmarkRecord, 0, len(resp.Data))
	for _, tw := range resp.Data {
		if tw.ID == "" {
			log.Warn("Dropping bookmark without id")
			continue
		}
		if !validID(tw.ID) {
			log.WarnWithFields("Dropping bookmark with malformed id", map[string]interface{}{
				"bookmark_id": tw.ID,
			})
			continue
		}
		author, ok := users[tw.AuthorID]
		if !ok {
			log.WarnWithFields("Dropping bookmark with unknown author", map[string]interface{}{
				"bookmark_id": tw.ID,
				"author_id":   tw.AuthorID,
			})
			continue
		}

		rec := models.BookmarkRecord{
			ID: tw.ID,
			Author: models.Author{
				ID:              author.ID,
				Name:            author.Name,
				Username:        author.Username,
				ProfileImageURL: author.ProfileImageURL,
			},
			Text:      tw.Text,
			CreatedAt: tw.CreatedAt,
		}
		if pm := tw.PublicMetrics; pm != nil {
			rec.Metrics = models.Metrics{
				Likes:   pm.LikeCount,
				Reposts: pm.RetweetCount,
				Replies: pm.ReplyCount,
				Quotes:  pm.QuoteCount,
			}
		}
		if tw.Attachments != nil {
			for _, key := range tw.Attachments.MediaKeys {
				m, ok := media[key]
				if !ok {
					continue
				}
				ref, ok := mediaRef(m)
				if !ok {
					log.DebugWithFields("Media without downloadable url", map[string]interface{}{
						"bookmark_id": tw.ID,
						"media_key":   key,
					})
					continue
				}
				rec.MediaRefs = append(rec.MediaRefs, ref)
			}
		}

		records = append(records, rec)
	}
	return records
}

func mediaRef(m Media) (models.MediaRef, bool) {
	ref := models.MediaRef{Key: m.MediaKey, Kind: models.MediaKind(m.Type)}

	switch ref.Kind {
	case models.MediaVideo, models.MediaAnimatedGIF:
		ref.URL = BestVideoURL(m.Variants)
		if ref.URL == "" {
			ref.URL = m.PreviewImageURL
		}
	default:
		ref.URL = m.URL
		if ref.URL == "" {
			ref.URL = m.PreviewImageURL
		}
	}

	return ref, ref.URL != ""
}

// BestVideoURL returns the highest bitrate video/* variant, or "" if none
func BestVideoURL(variants []Variant) string {
	best := -1
	for i, v := range variants {
		if !strings.HasPrefix(v.ContentType, "video/") || v.URL == "" {
			continue
		}
		if best < 0 || v.BitRate > variants[best].BitRate {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return variants[best].URL
}

// validID reports whether id is a decimal snowflake id
func validID(id string) bool {
	if id == "" || len(id) > 20 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}
