package relica

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/coregx/livehook"
)

// migrateLogger adapts livehook.Logger to migrate.Logger.
type migrateLogger struct {
	logger livehook.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Infof(format, v...)
}

func (l migrateLogger) Verbose() bool {
	return false
}

// Migrate applies all pending up-migrations for driverName ("sqlite3",
// "postgres" or "mysql") on a dedicated connection opened from dsn.
// MySQL DSNs need multiStatements=true.
func Migrate(driverName, dsn string, logger livehook.Logger) error {
	if logger == nil {
		logger = &livehook.NoopLogger{}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to open migration connection", err)
	}

	driver, err := migrationDriver(driverName, db)
	if err != nil {
		_ = db.Close()
		return err
	}

	src, err := iofs.New(livehook.MigrationFiles, "migrations/"+driverName)
	if err != nil {
		_ = db.Close()
		return livehook.NewErrorWithCause(livehook.ErrCodeConfiguration, "failed to load embedded migrations", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		_ = db.Close()
		return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to create migrator", err)
	}
	// Closing the migrator also closes db.
	defer m.Close()
	m.Log = migrateLogger{logger: logger}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to apply migrations", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to read migration version", err)
	}
	logger.Infof("Migrations applied: driver=%s, version=%d, dirty=%t", driverName, version, dirty)
	return nil
}

func migrationDriver(driverName string, db *sql.DB) (database.Driver, error) {
	var (
		driver database.Driver
		err    error
	)
	switch driverName {
	case "sqlite3":
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case "postgres":
		driver, err = migratepostgres.WithInstance(db, &migratepostgres.Config{})
	case "mysql":
		driver, err = migratemysql.WithInstance(db, &migratemysql.Config{})
	default:
		return nil, livehook.NewError(livehook.ErrCodeConfiguration, fmt.Sprintf("unsupported migration driver %q", driverName))
	}
	if err != nil {
		return nil, livehook.NewErrorWithCause(livehook.ErrCodeDatabase, "failed to prepare migration driver", err)
	}
	return driver, nil
}
