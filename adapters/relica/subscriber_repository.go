package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/relica"

	"github.com/coregx/livehook"
	"github.com/coregx/livehook/model"
)

// SubscriberRepository implements livehook.SubscriberRepository using Relica.
type SubscriberRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewSubscriberRepository creates a new SubscriberRepository with default table prefix.
func NewSubscriberRepository(sqlDB *sql.DB, driverName string) *SubscriberRepository {
	return NewSubscriberRepositoryWithPrefix(sqlDB, driverName, DefaultTablePrefix)
}

// NewSubscriberRepositoryWithPrefix creates a new SubscriberRepository with custom table prefix.
func NewSubscriberRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *SubscriberRepository {
	return &SubscriberRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *SubscriberRepository) tableName() string {
	return r.tablePrefix + "subscriber"
}

// Find retrieves the subscriber of an (external user, server) pair.
func (r *SubscriberRepository) Find(ctx context.Context, externalUserID, serverID string) (model.Subscriber, error) {
	var sub model.Subscriber
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("external_user_id = ? AND server_id = ?", externalUserID, serverID).
		One(&sub)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, livehook.ErrNoData
	}
	if err != nil {
		return sub, livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to load subscriber", err)
	}
	return sub, nil
}

// FindByServer retrieves all subscribers of a server, oldest first.
func (r *SubscriberRepository) FindByServer(ctx context.Context, serverID string) ([]model.Subscriber, error) {
	var subs []model.Subscriber
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("server_id = ?", serverID).
		OrderBy("id ASC").
		WithContext(ctx).
		All(&subs)
	if err != nil {
		return nil, livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to find subscribers by server", err)
	}
	if len(subs) == 0 {
		return nil, livehook.ErrNoData
	}
	return subs, nil
}

// FindByExternalUser retrieves every server's subscriber for an external user.
func (r *SubscriberRepository) FindByExternalUser(ctx context.Context, externalUserID string) ([]model.Subscriber, error) {
	var subs []model.Subscriber
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("external_user_id = ?", externalUserID).
		OrderBy("id ASC").
		WithContext(ctx).
		All(&subs)
	if err != nil {
		return nil, livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to find subscribers by user", err)
	}
	if len(subs) == 0 {
		return nil, livehook.ErrNoData
	}
	return subs, nil
}
