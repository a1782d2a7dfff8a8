package model

import "time"

// Message is a rendered chat message: plain content plus an optional rich embed.
type Message struct {
	Content string `json:"content"`
	Embed   *Embed `json:"embed,omitempty"`
}

// Embed is the rich card attached to a "went live" message.
type Embed struct {
	Title        string       `json:"title"`
	URL          string       `json:"url"`
	Timestamp    time.Time    `json:"timestamp"`
	ImageURL     string       `json:"imageURL"`
	ThumbnailURL string       `json:"thumbnailURL"`
	Author       EmbedAuthor  `json:"author"`
	Fields       []EmbedField `json:"fields"`
}

// EmbedAuthor is the author line of an embed.
type EmbedAuthor struct {
	Name    string `json:"name"`
	IconURL string `json:"iconURL"`
}

// EmbedField is a name/value row of an embed.
type EmbedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DeliveryTarget is one channel that should receive a rendered message.
type DeliveryTarget struct {
	ServerID  string  `json:"serverID"`
	ChannelID string  `json:"channelID"`
	Message   Message `json:"message"`
}

// DeliveryResult records the outcome of sending to one target.
type DeliveryResult struct {
	Target DeliveryTarget
	Err    error
}

// Delivered reports whether the send succeeded.
func (r DeliveryResult) Delivered() bool {
	return r.Err == nil
}
