// Package discord is the chat side of livehook: it turns server messages
// into lease operations and posts rendered notifications back to channels.
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/coregx/livehook"
	"github.com/coregx/livehook/model"
)

const (
	cmdAdd        = "/add"
	cmdRemove     = "/remove"
	cmdListUsers  = "/list_users"
	cmdSetChannel = "/set_channel"
)

// Request is one chat message addressed to the bot.
type Request struct {
	ServerID  string
	ChannelID string
	AuthorID  string
	Content   string
}

// Commands maps chat commands to LeaseService calls and renders the replies.
type Commands struct {
	service      LeaseService
	leaseSeconds int
	logger       livehook.Logger
}

// NewCommands creates the command handler. leaseSeconds is requested for every /add.
func NewCommands(service LeaseService, leaseSeconds int, logger livehook.Logger) (*Commands, error) {
	if service == nil {
		return nil, livehook.NewError(livehook.ErrCodeConfiguration, "LeaseService is required")
	}
	if leaseSeconds <= 0 || leaseSeconds > model.MaxLeaseSeconds {
		return nil, livehook.NewError(livehook.ErrCodeConfiguration,
			fmt.Sprintf("lease seconds must be in 1..%d, got %d", model.MaxLeaseSeconds, leaseSeconds))
	}
	if logger == nil {
		logger = &livehook.NoopLogger{}
	}
	return &Commands{
		service:      service,
		leaseSeconds: leaseSeconds,
		logger:       logger.With("component", "commands"),
	}, nil
}

// Handle runs the command in req.Content and returns the reply.
// An empty reply means the message was not a command.
func (c *Commands) Handle(ctx context.Context, req Request) string {
	args := strings.Fields(req.Content)
	if len(args) == 0 {
		return ""
	}

	switch args[0] {
	case cmdAdd:
		if len(args) != 2 {
			return "Format: /add <twitch_username>"
		}
		return c.add(ctx, req.ServerID, args[1])
	case cmdRemove:
		if len(args) != 2 {
			return "Format: /remove <twitch_username>"
		}
		return c.remove(ctx, req.ServerID, args[1])
	case cmdListUsers:
		if len(args) != 1 {
			return "Format: /list_users"
		}
		return c.list(ctx, req.ServerID)
	case cmdSetChannel:
		if len(args) != 1 {
			return "Format: /set_channel"
		}
		return c.setChannel(ctx, req.ServerID, req.ChannelID)
	default:
		return ""
	}
}

func (c *Commands) add(ctx context.Context, serverID, name string) string {
	userID, err := c.service.ResolveUser(ctx, name)
	if err != nil {
		if livehook.IsNotFound(err) {
			return "No such Twitch user: " + name
		}
		c.logger.Errorf("Add failed: name=%s, server=%s, error=%v", name, serverID, err)
		return "Add failed, please try again later."
	}

	_, err = c.service.Subscribe(ctx, livehook.SubscribeRequest{
		ExternalUserID: userID,
		DisplayName:    name,
		ServerID:       serverID,
		LeaseSeconds:   c.leaseSeconds,
	})
	if err != nil {
		if livehook.IsUpstreamRejected(err) {
			return "Add failed: the hub rejected the subscription."
		}
		c.logger.Errorf("Add failed: name=%s, server=%s, error=%v", name, serverID, err)
		return "Add failed, please try again later."
	}
	return fmt.Sprintf("Added %s.", name)
}

func (c *Commands) remove(ctx context.Context, serverID, name string) string {
	subs, err := c.service.ListForServer(ctx, serverID)
	if err != nil {
		c.logger.Errorf("Remove failed: name=%s, server=%s, error=%v", name, serverID, err)
		return "Remove failed, please try again later."
	}

	var target *model.Subscriber
	for i := range subs {
		if strings.EqualFold(subs[i].DisplayName, name) {
			target = &subs[i]
			break
		}
	}
	if target == nil {
		return fmt.Sprintf("%s is not registered on this server.", name)
	}

	res, err := c.service.Unsubscribe(ctx, target.ExternalUserID, serverID)
	if err != nil {
		if livehook.IsNotFound(err) {
			return fmt.Sprintf("%s is not registered on this server.", name)
		}
		c.logger.Errorf("Remove failed: name=%s, server=%s, error=%v", name, serverID, err)
		return "Remove failed, please try again later."
	}
	if res.UpstreamErr != nil {
		c.logger.Warnf("Removed locally, hub unsubscribe failed: name=%s, error=%v", name, res.UpstreamErr)
	}
	return fmt.Sprintf("Removed %s.", target.DisplayName)
}

func (c *Commands) list(ctx context.Context, serverID string) string {
	subs, err := c.service.ListForServer(ctx, serverID)
	if err != nil {
		c.logger.Errorf("List failed: server=%s, error=%v", serverID, err)
		return "List failed, please try again later."
	}
	if len(subs) == 0 {
		return "No users registered."
	}

	lines := make([]string, 0, len(subs))
	for _, sub := range subs {
		lines = append(lines, sub.String())
	}
	return strings.Join(lines, "\n")
}

func (c *Commands) setChannel(ctx context.Context, serverID, channelID string) string {
	if _, err := c.service.BindChannel(ctx, serverID, channelID); err != nil {
		c.logger.Errorf("Set channel failed: server=%s, channel=%s, error=%v", serverID, channelID, err)
		return "Set channel failed, please try again later."
	}
	return "Notifications will be posted to this channel."
}
