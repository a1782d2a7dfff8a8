package livehook

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/coregx/livehook/model"
)

// DefaultRenewalConcurrency caps parallel renewals within one scan.
const DefaultRenewalConcurrency = 8

// Renewer renews one lease. LeaseManager implements it.
type Renewer interface {
	Renew(ctx context.Context, subjectID string) (*model.Lease, error)
}

// RenewalScheduler scans all leases and renews the expired ones.
//
// Each expired lease is renewed in its own goroutine; the scan waits for all
// of them before returning. A failed renewal never cancels the others and is
// not retried until the next scan, which is the only retry mechanism.
//
// Thread safety: RunOnce may be called concurrently, though overlapping scans
// may renew the same lease twice.
type RenewalScheduler struct {
	leaseRepo   LeaseRepository
	renewer     Renewer
	clock       clockwork.Clock
	logger      Logger
	concurrency int
}

// ScanResult summarizes one RunOnce.
type ScanResult struct {
	Scanned  int
	Expired  int
	Renewed  int
	Failed   int
	Failures map[string]error // keyed by subject ID
}

// NewRenewalScheduler creates a new scheduler with the provided options.
//
// Required options:
//   - WithSchedulerLeases: lease repository
//   - WithSchedulerRenewer: lease renewer
//   - WithSchedulerLogger: logger instance
//
// Optional options:
//   - WithSchedulerClock (default: real clock)
//   - WithSchedulerConcurrency (default: DefaultRenewalConcurrency)
func NewRenewalScheduler(opts ...SchedulerOption) (*RenewalScheduler, error) {
	s := &RenewalScheduler{
		clock:       clockwork.NewRealClock(),
		concurrency: DefaultRenewalConcurrency,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply scheduler option", err)
		}
	}

	if s.leaseRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "LeaseRepository is required (use WithSchedulerLeases)")
	}
	if s.renewer == nil {
		return nil, NewError(ErrCodeConfiguration, "Renewer is required (use WithSchedulerRenewer)")
	}
	if s.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithSchedulerLogger)")
	}

	s.logger = s.logger.With("component", "renewal")
	return s, nil
}

// RunOnce performs one scan. Only a failure to list leases is returned;
// per-lease failures are reported in the result.
func (s *RenewalScheduler) RunOnce(ctx context.Context) (ScanResult, error) {
	result := ScanResult{Failures: make(map[string]error)}

	leases, err := s.leaseRepo.FindAll(ctx)
	if err != nil {
		if IsNoData(err) {
			s.logger.Info("Nothing to renew: no leases stored")
			return result, nil
		}
		return result, NewErrorWithCause(ErrCodeDatabase, "failed to list leases", err)
	}

	expired, active := PartitionLeases(leases, s.clock.Now())
	result.Scanned = len(leases)
	result.Expired = len(expired)

	if len(expired) == 0 {
		s.logger.Infof("Nothing to renew: %d active leases", len(active))
		return result, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, lease := range expired {
		g.Go(func() error {
			renewed, err := s.renewer.Renew(ctx, lease.SubjectID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Failures[lease.SubjectID] = err
				s.logger.Errorf("Lease renewal failed: subject=%s, expired_at=%s, error=%v",
					lease.SubjectID, lease.ExpiresAt().Format(timeLogLayout), err)
				return nil
			}
			result.Renewed++
			s.logger.Infof("Lease renewed: subject=%s, expires_at=%s",
				renewed.SubjectID, renewed.ExpiresAt().Format(timeLogLayout))
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Infof("Renewal scan complete: scanned=%d, expired=%d, renewed=%d, failed=%d",
		result.Scanned, result.Expired, result.Renewed, result.Failed)
	return result, nil
}

// Run scans every interval until ctx is cancelled. It is the trigger for
// processes that embed livehook without a scheduler of their own; the
// livehook server drives RunOnce from cron instead.
func (s *RenewalScheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Renewal scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Renewal scheduler stopped")
			return
		case <-ticker.Chan():
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Errorf("Renewal scan failed: %v", err)
			}
		}
	}
}

// PartitionLeases splits leases into those expired at now and those still active.
func PartitionLeases(leases []model.Lease, now time.Time) (expired, active []model.Lease) {
	for _, lease := range leases {
		if lease.IsExpired(now) {
			expired = append(expired, lease)
		} else {
			active = append(active, lease)
		}
	}
	return expired, active
}
