package relica

import (
	"database/sql"

	"github.com/coregx/livehook"
)

// DefaultTablePrefix matches the table names created by the bundled migrations.
const DefaultTablePrefix = "livehook_"

// Repositories holds all repository implementations.
type Repositories struct {
	Subscriber livehook.SubscriberRepository
	Binding    livehook.ChannelBindingRepository
	Lease      livehook.LeaseRepository
	Store      livehook.SubscriptionStore
}

// NewRepositories creates all repository implementations.
//
// The db parameter should be an *sql.DB connected to MySQL, PostgreSQL, or SQLite.
// The driverName should be "mysql", "postgres", or "sqlite3".
func NewRepositories(db *sql.DB, driverName string) *Repositories {
	return NewRepositoriesWithPrefix(db, driverName, DefaultTablePrefix)
}

// NewRepositoriesWithPrefix creates all repository implementations with a custom table prefix.
func NewRepositoriesWithPrefix(db *sql.DB, driverName, prefix string) *Repositories {
	return &Repositories{
		Subscriber: NewSubscriberRepositoryWithPrefix(db, driverName, prefix),
		Binding:    NewChannelBindingRepositoryWithPrefix(db, driverName, prefix),
		Lease:      NewLeaseRepositoryWithPrefix(db, driverName, prefix),
		Store:      NewSubscriptionStoreWithPrefix(db, driverName, prefix),
	}
}
