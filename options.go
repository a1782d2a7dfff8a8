package livehook

import (
	"fmt"

	"github.com/jonboulle/clockwork"
)

// SchedulerOption is a function that configures a RenewalScheduler.
//
// Example:
//
//	scheduler, err := livehook.NewRenewalScheduler(
//	    livehook.WithSchedulerLeases(repos.Lease),
//	    livehook.WithSchedulerRenewer(manager),
//	    livehook.WithSchedulerLogger(logger),
//	    livehook.WithSchedulerConcurrency(4), // optional
//	)
type SchedulerOption func(*RenewalScheduler) error

// WithSchedulerLeases sets the repository scanned on every run.
//
// This is a required option for NewRenewalScheduler.
func WithSchedulerLeases(leaseRepo LeaseRepository) SchedulerOption {
	return func(s *RenewalScheduler) error {
		if leaseRepo == nil {
			return fmt.Errorf("leaseRepo cannot be nil")
		}
		s.leaseRepo = leaseRepo
		return nil
	}
}

// WithSchedulerRenewer sets what renews an expired lease, normally the LeaseManager.
//
// This is a required option for NewRenewalScheduler.
func WithSchedulerRenewer(renewer Renewer) SchedulerOption {
	return func(s *RenewalScheduler) error {
		if renewer == nil {
			return fmt.Errorf("renewer cannot be nil")
		}
		s.renewer = renewer
		return nil
	}
}

// WithSchedulerLogger sets the logger instance for the scheduler.
//
// This is a required option for NewRenewalScheduler.
func WithSchedulerLogger(logger Logger) SchedulerOption {
	return func(s *RenewalScheduler) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithSchedulerClock sets the clock that decides which leases are expired.
// Defaults to the real clock.
func WithSchedulerClock(clock clockwork.Clock) SchedulerOption {
	return func(s *RenewalScheduler) error {
		if clock == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		s.clock = clock
		return nil
	}
}

// WithSchedulerConcurrency caps how many renewals of one scan run at once.
// Default is DefaultRenewalConcurrency.
func WithSchedulerConcurrency(n int) SchedulerOption {
	return func(s *RenewalScheduler) error {
		if n <= 0 {
			return fmt.Errorf("concurrency must be > 0, got %d", n)
		}
		s.concurrency = n
		return nil
	}
}
