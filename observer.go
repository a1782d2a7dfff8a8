package livehook

import (
	"context"

	"github.com/coregx/livehook/model"
)

// LeaseObserver is an optional hook for lease lifecycle events
// (alerting, audit trails, dashboards).
// Errors returned by an observer are logged and never fail the operation.
type LeaseObserver interface {
	// LeaseCreated is called after a subscribe stored the first lease of a
	// subject, i.e. no server watched it before.
	LeaseCreated(ctx context.Context, sub model.Subscriber, lease model.Lease) error

	// LeaseRefreshed is called after a subscribe reset the issued_at of a
	// subject's existing lease, whether or not sub is a new server.
	LeaseRefreshed(ctx context.Context, sub model.Subscriber, lease model.Lease) error

	// LeaseRenewed is called after the hub accepted a renewal.
	LeaseRenewed(ctx context.Context, lease model.Lease) error

	// LeaseRenewalFailed is called when a renewal was rejected or could not be stored.
	LeaseRenewalFailed(ctx context.Context, subjectID string, err error) error

	// LeaseReleased is called after the last subscriber of a subject was removed.
	LeaseReleased(ctx context.Context, lease model.Lease) error
}

// NoOpLeaseObserver ignores every event.
type NoOpLeaseObserver struct{}

func (n *NoOpLeaseObserver) LeaseCreated(_ context.Context, _ model.Subscriber, _ model.Lease) error {
	return nil
}

func (n *NoOpLeaseObserver) LeaseRefreshed(_ context.Context, _ model.Subscriber, _ model.Lease) error {
	return nil
}

func (n *NoOpLeaseObserver) LeaseRenewed(_ context.Context, _ model.Lease) error {
	return nil
}

func (n *NoOpLeaseObserver) LeaseRenewalFailed(_ context.Context, _ string, _ error) error {
	return nil
}

func (n *NoOpLeaseObserver) LeaseReleased(_ context.Context, _ model.Lease) error {
	return nil
}

// LoggingLeaseObserver writes every event to a Logger.
type LoggingLeaseObserver struct {
	logger Logger
}

// NewLoggingLeaseObserver creates a new LoggingLeaseObserver.
func NewLoggingLeaseObserver(logger Logger) *LoggingLeaseObserver {
	return &LoggingLeaseObserver{logger: logger.With("component", "lease-events")}
}

// LeaseCreated logs the first lease of a subject.
func (o *LoggingLeaseObserver) LeaseCreated(_ context.Context, sub model.Subscriber, lease model.Lease) error {
	o.logger.Infof("Lease created: subject=%s, server=%s, name=%s, expires_at=%s",
		lease.SubjectID, sub.ServerID, sub.DisplayName, lease.ExpiresAt().Format(timeLogLayout))
	return nil
}

// LeaseRefreshed logs a subscribe that reset an existing lease.
func (o *LoggingLeaseObserver) LeaseRefreshed(_ context.Context, sub model.Subscriber, lease model.Lease) error {
	o.logger.Infof("Lease refreshed: subject=%s, server=%s, name=%s, expires_at=%s",
		lease.SubjectID, sub.ServerID, sub.DisplayName, lease.ExpiresAt().Format(timeLogLayout))
	return nil
}

// LeaseRenewed logs a successful renewal.
func (o *LoggingLeaseObserver) LeaseRenewed(_ context.Context, lease model.Lease) error {
	o.logger.Infof("Lease renewed: subject=%s, expires_at=%s", lease.SubjectID, lease.ExpiresAt().Format(timeLogLayout))
	return nil
}

// LeaseRenewalFailed logs a failed renewal.
func (o *LoggingLeaseObserver) LeaseRenewalFailed(_ context.Context, subjectID string, err error) error {
	o.logger.Warnf("Lease renewal failed: subject=%s, error=%v", subjectID, err)
	return nil
}

// LeaseReleased logs a released lease.
func (o *LoggingLeaseObserver) LeaseReleased(_ context.Context, lease model.Lease) error {
	o.logger.Infof("Lease released: subject=%s, topic=%s", lease.SubjectID, lease.TopicURL)
	return nil
}
