package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/coregx/livehook"
)

// DefaultCommandTimeout bounds the handling of one command.
const DefaultCommandTimeout = 30 * time.Second

// Bot connects Commands to a discordgo session.
type Bot struct {
	session  *discordgo.Session
	api      MessageAPI
	commands *Commands
	logger   livehook.Logger
	timeout  time.Duration
}

// NewSession creates a discordgo session for a bot token with the intents
// needed to read guild messages.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, livehook.NewErrorWithCause(livehook.ErrCodeConfiguration, "failed to create discord session", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	return session, nil
}

// NewBot creates a Bot. Call Open to start receiving messages.
func NewBot(session *discordgo.Session, commands *Commands, logger livehook.Logger) *Bot {
	if logger == nil {
		logger = &livehook.NoopLogger{}
	}
	return &Bot{
		session:  session,
		api:      session,
		commands: commands,
		logger:   logger.With("component", "discord"),
		timeout:  DefaultCommandTimeout,
	}
}

// Open registers the message handler and connects the gateway.
func (b *Bot) Open() error {
	b.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.onMessage(m)
	})
	if err := b.session.Open(); err != nil {
		return livehook.NewErrorWithCause(livehook.ErrCodeConfiguration, "failed to open discord gateway", err)
	}
	b.logger.Info("Discord gateway connected")
	return nil
}

// Close disconnects the gateway.
func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) onMessage(m *discordgo.MessageCreate) {
	req, ok := requestFrom(m)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	reply := b.commands.Handle(ctx, req)
	if reply == "" {
		return
	}
	if _, err := b.api.ChannelMessageSend(req.ChannelID, truncate(reply), discordgo.WithContext(ctx)); err != nil {
		b.logger.Errorf("Reply failed: server=%s, channel=%s, error=%v", req.ServerID, req.ChannelID, err)
	}
}

// requestFrom extracts a command request. Messages from bots and direct
// messages are ignored.
func requestFrom(m *discordgo.MessageCreate) (Request, bool) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return Request{}, false
	}
	return Request{
		ServerID:  m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		Content:   m.Content,
	}, true
}
