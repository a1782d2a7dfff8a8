package relica

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

func placeholderFormat(driverName string) sq.PlaceholderFormat {
	if driverName == "postgres" {
		return sq.Dollar
	}
	return sq.Question
}

// upsertSuffix turns an INSERT into an insert-or-update on the unique key.
// sqlite3 (>= 3.24) shares the postgres ON CONFLICT syntax.
func upsertSuffix(driverName string, key []string, update ...string) string {
	sets := make([]string, len(update))
	if driverName == "mysql" {
		for i, col := range update {
			sets[i] = col + " = VALUES(" + col + ")"
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	for i, col := range update {
		sets[i] = col + " = excluded." + col
	}
	return "ON CONFLICT (" + strings.Join(key, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

// lockSuffix makes a SELECT take row locks. SQLite has no row locks; its
// writers are serialized by the database lock instead.
func lockSuffix(driverName string) string {
	if driverName == "postgres" || driverName == "mysql" {
		return "FOR UPDATE"
	}
	return ""
}
