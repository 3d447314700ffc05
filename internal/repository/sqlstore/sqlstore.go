package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nodeclass/internal/domain"
	"nodeclass/internal/repository"

	"github.com/sirupsen/logrus"
)

// DefaultLockTimeout bounds how long Update waits for the writer lock
const DefaultLockTimeout = 5 * time.Second

// Options configures a Store
type Options struct {
	Driver      string
	DSN         string
	LockTimeout time.Duration
	Logger      logrus.FieldLogger
}

// Store implements repository.Repository on database/sql
type Store struct {
	db          *sql.DB
	dialect     dialect
	lockTimeout time.Duration
	log         logrus.FieldLogger

	// writer serializes every read-check-write unit in this process;
	// acquire honours the caller's deadline and lockTimeout. Across
	// processes the dialect's writerLock does the same.
	writer chan struct{}
}

var _ repository.Repository = (*Store)(nil)

// Open connects to the database and migrates the schema
func Open(opts Options) (*Store, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	dsn := opts.DSN
	if d.name() == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(d.name(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if d.name() == DriverSQLite {
		// One connection keeps :memory: databases shared and matches
		// SQLite's single-writer model.
		db.SetMaxOpenConns(1)
	}

	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	s := &Store{
		db:          db,
		dialect:     d,
		lockTimeout: opts.LockTimeout,
		log:         opts.Logger.WithField("component", "store"),
		writer:      make(chan struct{}, 1),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s.log.WithField("driver", d.name()).Debug("store opened")
	return s, nil
}

// OpenMemory opens an in-memory SQLite store, mostly for tests and dry runs
func OpenMemory() (*Store, error) {
	return Open(Options{Driver: DriverSQLite, DSN: ":memory:"})
}

func (s *Store) migrate() error {
	if s.dialect.name() == DriverSQLite {
		if _, err := s.db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			return err
		}
	}
	_, err := s.db.Exec(s.dialect.schema())
	return err
}

// View runs fn inside a read transaction
func (s *Store) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, s.dialect.readTxOptions())
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", mapContextErr(err))
	}
	defer sqlTx.Rollback()

	return fn(&tx{tx: sqlTx, d: s.dialect})
}

// Update takes the writer lock and runs fn inside a transaction. The
// transaction commits only if fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapContextErr(err))
	}
	defer sqlTx.Rollback()

	if err := s.lockWriters(ctx, sqlTx); err != nil {
		return err
	}

	if err := fn(&tx{tx: sqlTx, d: s.dialect}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadGraph reads every entity and relation in one read transaction
func (s *Store) LoadGraph(ctx context.Context) (*domain.GraphData, error) {
	var graph *domain.GraphData
	err := s.View(ctx, func(t repository.Tx) error {
		var err error
		graph, err = t.LoadGraph(ctx)
		return err
	})
	return graph, err
}

func (s *Store) acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	select {
	case s.writer <- struct{}{}:
		return nil
	case <-waitCtx.Done():
		s.log.WithField("timeout", s.lockTimeout).Warn("timed out waiting for writer lock")
		return fmt.Errorf("acquire writer lock: %w", domain.ErrTimeout)
	}
}

func (s *Store) release() {
	<-s.writer
}

// lockWriters takes the database-wide writer lock so other processes
// sharing the database wait for this transaction to finish
func (s *Store) lockWriters(ctx context.Context, sqlTx *sql.Tx) error {
	query := s.dialect.writerLock()
	if query == "" {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	if _, err := sqlTx.ExecContext(waitCtx, query); err != nil {
		if waitCtx.Err() != nil {
			s.log.WithField("timeout", s.lockTimeout).Warn("timed out waiting for database writer lock")
			return fmt.Errorf("acquire database writer lock: %w", domain.ErrTimeout)
		}
		return fmt.Errorf("acquire database writer lock: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func mapContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return err
}
