package model

import (
	"fmt"
	"time"
)

// ChannelBinding is the single chat channel a server has designated for
// stream notifications. Re-binding overwrites it; it is never removed automatically.
type ChannelBinding struct {
	ID        int64     `json:"id" db:"id"`
	ServerID  string    `json:"serverID" db:"server_id"`
	ChannelID string    `json:"channelID" db:"channel_id"`
	BoundAt   time.Time `json:"boundAt" db:"bound_at"`
}

// TableName returns the database table name for ChannelBinding.
func (b ChannelBinding) TableName() string {
	return tablePrefix + "channel_binding"
}

// NewChannelBinding creates a binding stamped with the given time.
func NewChannelBinding(serverID, channelID string, now time.Time) ChannelBinding {
	return ChannelBinding{
		ServerID:  serverID,
		ChannelID: channelID,
		BoundAt:   now.UTC(),
	}
}

func (b ChannelBinding) String() string {
	return fmt.Sprintf("Guild: %s, Channel: %s, Set at %s", b.ServerID, b.ChannelID, b.BoundAt.Format(listTimeLayout))
}
