package relica

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/coregx/relica"

	"github.com/coregx/livehook"
	"github.com/coregx/livehook/model"
)

// ChannelBindingRepository implements livehook.ChannelBindingRepository using Relica.
type ChannelBindingRepository struct {
	db          *relica.DB
	sqlDB       *sql.DB
	driverName  string
	sb          sq.StatementBuilderType
	tablePrefix string
}

// NewChannelBindingRepository creates a new ChannelBindingRepository with default table prefix.
func NewChannelBindingRepository(sqlDB *sql.DB, driverName string) *ChannelBindingRepository {
	return NewChannelBindingRepositoryWithPrefix(sqlDB, driverName, DefaultTablePrefix)
}

// NewChannelBindingRepositoryWithPrefix creates a new ChannelBindingRepository with custom table prefix.
func NewChannelBindingRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *ChannelBindingRepository {
	return &ChannelBindingRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		sqlDB:       sqlDB,
		driverName:  driverName,
		sb:          sq.StatementBuilder.PlaceholderFormat(placeholderFormat(driverName)),
		tablePrefix: prefix,
	}
}

func (r *ChannelBindingRepository) tableName() string {
	return r.tablePrefix + "channel_binding"
}

// FindByServer retrieves the binding of a server.
func (r *ChannelBindingRepository) FindByServer(ctx context.Context, serverID string) (model.ChannelBinding, error) {
	var binding model.ChannelBinding
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("server_id = ?", serverID).One(&binding)
	if errors.Is(err, sql.ErrNoRows) {
		return binding, livehook.ErrNoData
	}
	if err != nil {
		return binding, livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to load channel binding", err)
	}
	return binding, nil
}

// Save creates the server's binding or overwrites the existing one in a
// single upsert on server_id; m.ID is ignored.
func (r *ChannelBindingRepository) Save(ctx context.Context, m model.ChannelBinding) (model.ChannelBinding, error) {
	_, err := r.sb.Insert(r.tableName()).
		Columns("server_id", "channel_id", "bound_at").
		Values(m.ServerID, m.ChannelID, m.BoundAt.UTC()).
		Suffix(upsertSuffix(r.driverName, []string{"server_id"}, "channel_id", "bound_at")).
		RunWith(r.sqlDB).ExecContext(ctx)
	if err != nil {
		return m, livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to save channel binding", err)
	}
	return r.FindByServer(ctx, m.ServerID)
}
