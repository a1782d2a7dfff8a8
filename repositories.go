package livehook

import (
	"context"
	"time"

	"github.com/coregx/livehook/model"
)

// SubscriberRepository defines read access to subscribers.
// Writes go through SubscriptionStore so a subscriber never exists without its lease.
type SubscriberRepository interface {
	// Find retrieves the subscriber for an (external user, server) pair.
	// Returns ErrNoData if not found.
	Find(ctx context.Context, externalUserID, serverID string) (model.Subscriber, error)

	// FindByServer retrieves all subscribers owned by a server.
	// Returns ErrNoData if none found.
	FindByServer(ctx context.Context, serverID string) ([]model.Subscriber, error)

	// FindByExternalUser retrieves every server's subscriber for an external user.
	// Returns ErrNoData if none found.
	FindByExternalUser(ctx context.Context, externalUserID string) ([]model.Subscriber, error)
}

// ChannelBindingRepository defines the persistence interface for channel bindings.
type ChannelBindingRepository interface {
	// FindByServer retrieves the binding of a server.
	// Returns ErrNoData if the server never bound a channel.
	FindByServer(ctx context.Context, serverID string) (model.ChannelBinding, error)

	// Save upserts by server ID in one step: it creates the server's binding
	// or overwrites the existing one, keeping its ID. m.ID is ignored.
	Save(ctx context.Context, m model.ChannelBinding) (model.ChannelBinding, error)
}

// LeaseRepository defines access to lease records outside the paired writes.
type LeaseRepository interface {
	// Load retrieves the lease of a subject.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, subjectID string) (model.Lease, error)

	// FindAll retrieves every lease.
	// Returns ErrNoData if none exist.
	FindAll(ctx context.Context) ([]model.Lease, error)

	// Touch advances the lease's issued_at in place.
	// Returns ErrNoData if the lease no longer exists.
	Touch(ctx context.Context, subjectID string, issuedAt time.Time) error
}

// SubscriptionStore performs the paired subscriber/lease writes.
// Each method is one atomic unit: on any failure nothing is written.
// Implementations must serialize conflicting writes.
type SubscriptionStore interface {
	// SavePair upserts the subscriber (by external user and server) and the
	// lease (by subject) together.
	SavePair(ctx context.Context, sub model.Subscriber, lease model.Lease) error

	// DeletePair removes the subscriber of an (external user, server) pair.
	// The subject's lease is removed too when no other subscriber still references it;
	// released reports whether that happened.
	// Returns ErrNoData if the subscriber does not exist.
	DeletePair(ctx context.Context, externalUserID, serverID string) (lease model.Lease, released bool, err error)
}
