package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/coregx/livehook/model"
)

// maxContentLength is Discord's message content limit.
const maxContentLength = 2000

// Sender posts rendered notifications. It implements livehook.Sender.
type Sender struct {
	api MessageAPI
}

// NewSender creates a Sender on a session (or any MessageAPI).
func NewSender(api MessageAPI) *Sender {
	return &Sender{api: api}
}

// Send posts msg to channelID.
func (s *Sender) Send(ctx context.Context, channelID string, msg model.Message) error {
	if _, err := s.api.ChannelMessageSendComplex(channelID, toMessageSend(msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send to channel %s: %w", channelID, err)
	}
	return nil
}

func toMessageSend(msg model.Message) *discordgo.MessageSend {
	send := &discordgo.MessageSend{Content: truncate(msg.Content)}
	if msg.Embed == nil {
		return send
	}

	e := msg.Embed
	embed := &discordgo.MessageEmbed{
		Title: e.Title,
		URL:   e.URL,
	}
	if !e.Timestamp.IsZero() {
		embed.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	if e.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	if e.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.ThumbnailURL}
	}
	if e.Author.Name != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{Name: e.Author.Name, IconURL: e.Author.IconURL}
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
	}

	send.Embeds = []*discordgo.MessageEmbed{embed}
	return send
}

func truncate(content string) string {
	r := []rune(content)
	if len(r) <= maxContentLength {
		return content
	}
	return string(r[:maxContentLength-3]) + "..."
}
