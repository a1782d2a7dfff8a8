package relica

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/coregx/livehook"
	"github.com/coregx/livehook/model"
)

// SubscriptionStore implements livehook.SubscriptionStore.
// Every method runs in a single database/sql transaction and rolls back on
// any failure.
//
// Both methods touch the subject's lease row before the subscriber rows, so
// concurrent writes for one subject serialize on that row: the upsert in
// SavePair and the SELECT ... FOR UPDATE in DeletePair wait for each other.
type SubscriptionStore struct {
	db          *sql.DB
	driverName  string
	sb          sq.StatementBuilderType
	tablePrefix string
}

// NewSubscriptionStore creates a new SubscriptionStore with default table prefix.
func NewSubscriptionStore(sqlDB *sql.DB, driverName string) *SubscriptionStore {
	return NewSubscriptionStoreWithPrefix(sqlDB, driverName, DefaultTablePrefix)
}

// NewSubscriptionStoreWithPrefix creates a new SubscriptionStore with custom table prefix.
func NewSubscriptionStoreWithPrefix(sqlDB *sql.DB, driverName, prefix string) *SubscriptionStore {
	return &SubscriptionStore{
		db:          sqlDB,
		driverName:  driverName,
		sb:          sq.StatementBuilder.PlaceholderFormat(placeholderFormat(driverName)),
		tablePrefix: prefix,
	}
}

func (s *SubscriptionStore) subscriberTable() string {
	return s.tablePrefix + "subscriber"
}

func (s *SubscriptionStore) leaseTable() string {
	return s.tablePrefix + "lease"
}

// SavePair upserts the subject's lease and then the subscriber.
func (s *SubscriptionStore) SavePair(ctx context.Context, sub model.Subscriber, lease model.Lease) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.upsertLease(ctx, tx, lease); err != nil {
			return err
		}
		return s.upsertSubscriber(ctx, tx, sub)
	})
}

// DeletePair removes the subscriber and, if it was the subject's last one, the lease.
func (s *SubscriptionStore) DeletePair(ctx context.Context, externalUserID, serverID string) (model.Lease, bool, error) {
	var (
		lease    model.Lease
		released bool
	)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		// Lock first: the remaining-subscriber count below must not race a
		// concurrent DeletePair or SavePair for the same subject.
		var err error
		lease, err = s.loadLease(ctx, tx, externalUserID, true)
		leaseFound := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to lock lease", err)
		}

		res, err := s.sb.Delete(s.subscriberTable()).
			Where(sq.Eq{"external_user_id": externalUserID, "server_id": serverID}).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to delete subscriber", err)
		}
		deleted, err := res.RowsAffected()
		if err != nil {
			return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to delete subscriber", err)
		}
		if deleted == 0 {
			return livehook.ErrNoData
		}

		remaining, err := s.count(ctx, tx, s.subscriberTable(), sq.Eq{"external_user_id": externalUserID})
		if err != nil {
			return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to count subscribers", err)
		}
		if remaining > 0 || !leaseFound {
			return nil
		}

		if _, err := s.sb.Delete(s.leaseTable()).
			Where(sq.Eq{"subject_id": externalUserID}).
			RunWith(tx).ExecContext(ctx); err != nil {
			return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to delete lease", err)
		}
		released = true
		return nil
	})
	if err != nil {
		return model.Lease{}, false, err
	}
	return lease, released, nil
}

func (s *SubscriptionStore) upsertSubscriber(ctx context.Context, tx *sql.Tx, sub model.Subscriber) error {
	_, err := s.sb.Insert(s.subscriberTable()).
		Columns("external_user_id", "display_name", "server_id", "updated_at").
		Values(sub.ExternalUserID, sub.DisplayName, sub.ServerID, sub.UpdatedAt.UTC()).
		Suffix(upsertSuffix(s.driverName, []string{"external_user_id", "server_id"}, "display_name", "updated_at")).
		RunWith(tx).ExecContext(ctx)
	if err != nil {
		return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to save subscriber", err)
	}
	return nil
}

// upsertLease inserts or overwrites the lease in one statement, so a lease
// deleted by a concurrent release is re-created rather than silently missed.
func (s *SubscriptionStore) upsertLease(ctx context.Context, tx *sql.Tx, lease model.Lease) error {
	_, err := s.sb.Insert(s.leaseTable()).
		Columns("subject_id", "callback_url", "topic_url", "lease_seconds", "issued_at").
		Values(lease.SubjectID, lease.CallbackURL, lease.TopicURL, lease.LeaseSeconds, lease.IssuedAt.UTC()).
		Suffix(upsertSuffix(s.driverName, []string{"subject_id"}, "callback_url", "topic_url", "lease_seconds", "issued_at")).
		RunWith(tx).ExecContext(ctx)
	if err != nil {
		return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to save lease", err)
	}
	return nil
}

func (s *SubscriptionStore) loadLease(ctx context.Context, tx *sql.Tx, subjectID string, lock bool) (model.Lease, error) {
	q := s.sb.Select("id", "subject_id", "callback_url", "topic_url", "lease_seconds", "issued_at").
		From(s.leaseTable()).
		Where(sq.Eq{"subject_id": subjectID})
	if suffix := lockSuffix(s.driverName); lock && suffix != "" {
		q = q.Suffix(suffix)
	}

	var lease model.Lease
	err := q.RunWith(tx).
		QueryRowContext(ctx).
		Scan(&lease.ID, &lease.SubjectID, &lease.CallbackURL, &lease.TopicURL, &lease.LeaseSeconds, &lease.IssuedAt)
	return lease, err
}

func (s *SubscriptionStore) count(ctx context.Context, tx *sql.Tx, table string, where sq.Eq) (int, error) {
	var n int
	err := s.sb.Select("COUNT(*)").From(table).Where(where).RunWith(tx).QueryRowContext(ctx).Scan(&n)
	return n, err
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *SubscriptionStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to commit transaction", err)
	}
	return nil
}
