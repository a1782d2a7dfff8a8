package model

import (
	"fmt"
	"time"
)

// LeaseState is the lifecycle state of a Lease at a given instant.
type LeaseState string

const (
	// LeaseStateActive means the upstream hub still delivers to the callback.
	LeaseStateActive LeaseState = "active"

	// LeaseStateExpired means the lease ran out and must be renewed.
	LeaseStateExpired LeaseState = "expired"
)

// Lease tracks one upstream hub subscription for a subject.
// At most one lease exists per SubjectID; it is shared by every Subscriber
// watching that subject.
//
// Lifecycle:
//  1. Created alongside the first Subscriber for the subject
//  2. Active until IssuedAt + LeaseSeconds
//  3. Expired until renewed (IssuedAt advanced in place)
//  4. Removed together with the last Subscriber for the subject
type Lease struct {
	ID           int64     `json:"id" db:"id"`
	SubjectID    string    `json:"subjectID" db:"subject_id"`
	CallbackURL  string    `json:"callbackURL" db:"callback_url"`
	TopicURL     string    `json:"topicURL" db:"topic_url"`
	LeaseSeconds int       `json:"leaseSeconds" db:"lease_seconds"`
	IssuedAt     time.Time `json:"issuedAt" db:"issued_at"`
}

// TableName returns the database table name for Lease.
func (l Lease) TableName() string {
	return tablePrefix + "lease"
}

// NewLease creates a lease issued at now.
func NewLease(subjectID, callbackURL, topicURL string, leaseSeconds int, now time.Time) Lease {
	return Lease{
		SubjectID:    subjectID,
		CallbackURL:  callbackURL,
		TopicURL:     topicURL,
		LeaseSeconds: leaseSeconds,
		IssuedAt:     now.UTC(),
	}
}

// ExpiresAt returns IssuedAt + LeaseSeconds.
func (l Lease) ExpiresAt() time.Time {
	return l.IssuedAt.Add(time.Duration(l.LeaseSeconds) * time.Second)
}

// IsExpired reports whether now has reached the expiry instant.
func (l Lease) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt())
}

// State returns the lease state at now.
func (l Lease) State(now time.Time) LeaseState {
	if l.IsExpired(now) {
		return LeaseStateExpired
	}
	return LeaseStateActive
}

// Renewed returns a copy of the lease re-issued at now.
func (l Lease) Renewed(now time.Time) Lease {
	l.IssuedAt = now.UTC()
	return l
}

// SubscribeRequest builds the hub body that (re)registers this lease.
func (l Lease) SubscribeRequest() HubRequest {
	return l.hubRequest(HubModeSubscribe)
}

// UnsubscribeRequest builds the hub body that cancels this lease.
func (l Lease) UnsubscribeRequest() HubRequest {
	return l.hubRequest(HubModeUnsubscribe)
}

func (l Lease) hubRequest(mode HubMode) HubRequest {
	return HubRequest{
		Callback:     l.CallbackURL,
		Mode:         mode,
		Topic:        l.TopicURL,
		LeaseSeconds: l.LeaseSeconds,
	}
}

func (l Lease) String() string {
	return fmt.Sprintf("Subject: %s, CallbackURL: %s, Topic: %s, Updated at %s, Expires at %s",
		l.SubjectID, l.CallbackURL, l.TopicURL,
		l.IssuedAt.Format(listTimeLayout), l.ExpiresAt().Format(listTimeLayout))
}
