package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// HubMode is the hub.mode value of a hub request.
type HubMode string

const (
	HubModeSubscribe   HubMode = "subscribe"
	HubModeUnsubscribe HubMode = "unsubscribe"
)

// MaxLeaseSeconds is the longest lease the hub grants (10 days).
const MaxLeaseSeconds = 864000

// HubRequest is the body posted to the WebSub hub.
type HubRequest struct {
	Callback     string  `json:"hub.callback"`
	Mode         HubMode `json:"hub.mode"`
	Topic        string  `json:"hub.topic"`
	LeaseSeconds int     `json:"hub.lease_seconds"`
	Secret       string  `json:"hub.secret,omitempty"`
}

// Validate checks the request before it leaves the process.
func (r HubRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Callback, validation.Required, is.URL),
		validation.Field(&r.Mode, validation.Required, validation.In(HubModeSubscribe, HubModeUnsubscribe)),
		validation.Field(&r.Topic, validation.Required, is.URL),
		validation.Field(&r.LeaseSeconds, validation.Required, validation.Min(1), validation.Max(MaxLeaseSeconds)),
		validation.Field(&r.Secret, validation.Length(0, 200)),
	)
}
