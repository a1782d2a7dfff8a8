// Package model contains the entities tracked by livehook: who is watched,
// where notifications go, and the upstream leases that keep them flowing.
package model

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// tablePrefix is the default prefix for every livehook table.
const tablePrefix = "livehook_"

// listTimeLayout renders timestamps in command replies.
const listTimeLayout = "2006/01/02 15:04:05"

// Subscriber identifies one streaming account watched on behalf of one chat server.
// The same account may be watched independently by many servers; the pair
// (ExternalUserID, ServerID) is unique.
type Subscriber struct {
	ID             int64     `json:"id" db:"id"`
	ExternalUserID string    `json:"externalUserID" db:"external_user_id"` // Streaming platform account ID
	DisplayName    string    `json:"displayName" db:"display_name"`        // Login name shown in messages
	ServerID       string    `json:"serverID" db:"server_id"`              // Owning chat server
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`            // Last subscribe or refresh
}

// TableName returns the database table name for Subscriber.
func (s Subscriber) TableName() string {
	return tablePrefix + "subscriber"
}

// NewSubscriber creates a subscriber stamped with the given time.
func NewSubscriber(externalUserID, displayName, serverID string, now time.Time) Subscriber {
	return Subscriber{
		ExternalUserID: externalUserID,
		DisplayName:    displayName,
		ServerID:       serverID,
		UpdatedAt:      now.UTC(),
	}
}

// Validate checks that the identifying fields are present.
func (s Subscriber) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ExternalUserID, validation.Required, validation.Length(1, 256)),
		validation.Field(&s.DisplayName, validation.Required, validation.Length(1, 256)),
		validation.Field(&s.ServerID, validation.Required, validation.Length(1, 256)),
	)
}

// String renders the subscriber the way /list_users shows it.
func (s Subscriber) String() string {
	return fmt.Sprintf("User: %s, Added on %s", s.DisplayName, s.UpdatedAt.Format(listTimeLayout))
}
