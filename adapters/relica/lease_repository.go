package relica

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/relica"

	"github.com/coregx/livehook"
	"github.com/coregx/livehook/model"
)

// LeaseRepository implements livehook.LeaseRepository using Relica.
type LeaseRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewLeaseRepository creates a new LeaseRepository with default table prefix.
func NewLeaseRepository(sqlDB *sql.DB, driverName string) *LeaseRepository {
	return NewLeaseRepositoryWithPrefix(sqlDB, driverName, DefaultTablePrefix)
}

// NewLeaseRepositoryWithPrefix creates a new LeaseRepository with custom table prefix.
func NewLeaseRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *LeaseRepository {
	return &LeaseRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *LeaseRepository) tableName() string {
	return r.tablePrefix + "lease"
}

// Load retrieves the lease of a subject.
func (r *LeaseRepository) Load(ctx context.Context, subjectID string) (model.Lease, error) {
	var lease model.Lease
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("subject_id = ?", subjectID).One(&lease)
	if errors.Is(err, sql.ErrNoRows) {
		return lease, livehook.ErrNoData
	}
	if err != nil {
		return lease, livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to load lease", err)
	}
	return lease, nil
}

// FindAll retrieves every lease, oldest issue first.
func (r *LeaseRepository) FindAll(ctx context.Context) ([]model.Lease, error) {
	var leases []model.Lease
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		OrderBy("issued_at ASC").
		WithContext(ctx).
		All(&leases)
	if err != nil {
		return nil, livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to list leases", err)
	}
	if len(leases) == 0 {
		return nil, livehook.ErrNoData
	}
	return leases, nil
}

// Touch advances issued_at of a subject's lease.
func (r *LeaseRepository) Touch(ctx context.Context, subjectID string, issuedAt time.Time) error {
	var count int64
	err := r.db.WithContext(ctx).Select("COUNT(*)").From(r.tableName()).Where("subject_id = ?", subjectID).One(&count)
	if err != nil {
		return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to check lease", err)
	}
	if count == 0 {
		return livehook.ErrNoData
	}

	_, err = r.db.WithContext(ctx).Update(r.tableName()).
		Set(map[string]interface{}{
			"issued_at": issuedAt.UTC(),
		}).
		Where("subject_id = ?", subjectID).
		WithContext(ctx).
		Execute()
	if err != nil {
		return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to touch lease", err)
	}
	return nil
}
