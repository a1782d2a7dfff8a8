//go:generate mockgen -destination=mock_contract_test.go -package=${GOPACKAGE} -source=contract.go
package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/coregx/livehook"
	"github.com/coregx/livehook/model"
)

// LeaseService is the part of livehook.LeaseManager the commands drive.
type LeaseService interface {
	ResolveUser(ctx context.Context, name string) (string, error)
	Subscribe(ctx context.Context, req livehook.SubscribeRequest) (*livehook.SubscribeResult, error)
	Unsubscribe(ctx context.Context, externalUserID, serverID string) (*livehook.UnsubscribeResult, error)
	ListForServer(ctx context.Context, serverID string) ([]model.Subscriber, error)
	BindChannel(ctx context.Context, serverID, channelID string) (model.ChannelBinding, error)
}

// MessageAPI is the discordgo session surface used to post messages.
type MessageAPI interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}
