package model

import (
	"strings"
	"time"
)

// zonelessLayout covers started_at values sent without an offset.
const zonelessLayout = "2006-01-02T15:04:05"

// StreamNotification is the body the hub posts to a webhook callback.
// An empty Data slice means the stream went offline.
type StreamNotification struct {
	Data []StreamData `json:"data"`
}

// IsLive reports whether the notification carries stream metadata.
func (n StreamNotification) IsLive() bool {
	return len(n.Data) > 0
}

// Stream returns the first stream entry, or false when offline.
func (n StreamNotification) Stream() (StreamData, bool) {
	if len(n.Data) == 0 {
		return StreamData{}, false
	}
	return n.Data[0], true
}

// StreamData is one stream entry of a notification.
type StreamData struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	UserName     string `json:"user_name"`
	GameID       string `json:"game_id"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	ViewerCount  int    `json:"viewer_count"`
	StartedAt    string `json:"started_at"`
	Language     string `json:"language"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// StartedAtTime parses StartedAt as ISO-8601. Values without an offset are UTC.
func (d StreamData) StartedAtTime() (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, d.StartedAt)
	if err == nil {
		return ts.UTC(), nil
	}
	ts, zerr := time.ParseInLocation(zonelessLayout, d.StartedAt, time.UTC)
	if zerr != nil {
		return time.Time{}, err
	}
	return ts, nil
}

// Thumbnail returns ThumbnailURL with its {width}/{height} placeholders filled.
func (d StreamData) Thumbnail(width, height string) string {
	return strings.NewReplacer("{width}", width, "{height}", height).Replace(d.ThumbnailURL)
}
