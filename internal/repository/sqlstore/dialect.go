package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Driver names accepted by Open
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// writerLockKey is the advisory lock every nodeclass writer shares
const writerLockKey int64 = 0x6e6f6465636c // "nodecl"

// dialect isolates the SQL differences between SQLite and PostgreSQL
type dialect interface {
	name() string
	schema() string
	rebind(query string) string
	readTxOptions() *sql.TxOptions
	// writerLock is run first in every write transaction to serialize
	// writers across processes; empty when the database already does
	writerLock() string
	isUniqueViolation(err error) bool
	isForeignKeyViolation(err error) bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, "":
		return sqliteDialect{}, nil
	case DriverPostgres:
		return postgresDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

// ============================================================================
// SQLite (modernc.org/sqlite)
// ============================================================================

type sqliteDialect struct{}

func (sqliteDialect) name() string { return DriverSQLite }

func (sqliteDialect) schema() string {
	return `
	CREATE TABLE IF NOT EXISTS nodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS node_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS node_classes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS node_group_memberships (
		node_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		node_group_id INTEGER NOT NULL REFERENCES node_groups(id) ON DELETE CASCADE,
		UNIQUE (node_id, node_group_id)
	);

	CREATE TABLE IF NOT EXISTS node_group_edges (
		from_id INTEGER NOT NULL REFERENCES node_groups(id) ON DELETE CASCADE,
		to_id INTEGER NOT NULL REFERENCES node_groups(id) ON DELETE CASCADE,
		UNIQUE (from_id, to_id),
		CHECK (from_id <> to_id)
	);

	CREATE TABLE IF NOT EXISTS node_group_class_memberships (
		node_group_id INTEGER NOT NULL REFERENCES node_groups(id) ON DELETE CASCADE,
		node_class_id INTEGER NOT NULL REFERENCES node_classes(id) ON DELETE CASCADE,
		UNIQUE (node_group_id, node_class_id)
	);

	CREATE TABLE IF NOT EXISTS parameters (
		owner_type TEXT NOT NULL,
		owner_id INTEGER NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		UNIQUE (owner_type, owner_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_memberships_group ON node_group_memberships(node_group_id);
	CREATE INDEX IF NOT EXISTS idx_edges_to ON node_group_edges(to_id);
	CREATE INDEX IF NOT EXISTS idx_class_memberships_class ON node_group_class_memberships(node_class_id);
	`
}

func (sqliteDialect) rebind(query string) string { return query }

// SQLite has a single writer and WAL readers already see a snapshot
func (sqliteDialect) readTxOptions() *sql.TxOptions { return nil }

// SQLite admits one writer per database file
func (sqliteDialect) writerLock() string { return "" }

func (sqliteDialect) isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func (sqliteDialect) isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// sqliteDSN appends the pragmas every connection needs
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !strings.Contains(dsn, ":memory:") {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	return dsn + sep + pragmas
}

// ============================================================================
// PostgreSQL (github.com/lib/pq)
// ============================================================================

type postgresDialect struct{}

func (postgresDialect) name() string { return DriverPostgres }

func (postgresDialect) schema() string {
	return `
	CREATE TABLE IF NOT EXISTS nodes (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS node_groups (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS node_classes (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS node_group_memberships (
		node_id BIGINT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		node_group_id BIGINT NOT NULL REFERENCES node_groups(id) ON DELETE CASCADE,
		UNIQUE (node_id, node_group_id)
	);

	CREATE TABLE IF NOT EXISTS node_group_edges (
		from_id BIGINT NOT NULL REFERENCES node_groups(id) ON DELETE CASCADE,
		to_id BIGINT NOT NULL REFERENCES node_groups(id) ON DELETE CASCADE,
		UNIQUE (from_id, to_id),
		CHECK (from_id <> to_id)
	);

	CREATE TABLE IF NOT EXISTS node_group_class_memberships (
		node_group_id BIGINT NOT NULL REFERENCES node_groups(id) ON DELETE CASCADE,
		node_class_id BIGINT NOT NULL REFERENCES node_classes(id) ON DELETE CASCADE,
		UNIQUE (node_group_id, node_class_id)
	);

	CREATE TABLE IF NOT EXISTS parameters (
		owner_type TEXT NOT NULL,
		owner_id BIGINT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		UNIQUE (owner_type, owner_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_memberships_group ON node_group_memberships(node_group_id);
	CREATE INDEX IF NOT EXISTS idx_edges_to ON node_group_edges(to_id);
	CREATE INDEX IF NOT EXISTS idx_class_memberships_class ON node_group_class_memberships(node_class_id);
	`
}

// rebind rewrites ? placeholders to $1, $2, ...
func (postgresDialect) rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Repeatable read gives each resolution a single consistent snapshot
func (postgresDialect) readTxOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}

// The transaction-scoped advisory lock is released on commit or rollback
func (postgresDialect) writerLock() string {
	return "SELECT pg_advisory_xact_lock(" + strconv.FormatInt(writerLockKey, 10) + ")"
}

func (postgresDialect) isUniqueViolation(err error) bool {
	var pe *pq.Error
	return errors.As(err, &pe) && pe.Code == "23505"
}

func (postgresDialect) isForeignKeyViolation(err error) bool {
	var pe *pq.Error
	return errors.As(err, &pe) && pe.Code == "23503"
}
