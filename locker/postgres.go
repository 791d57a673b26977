package locker

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultKeyNamespace = "mountflow"

// PostgresLocker uses transaction-scoped advisory locks so that
// gates are shared between every API replica pointing at the
// same database.
type PostgresLocker struct {
	db              *sqlx.DB
	namespace       string
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	connMaxIdleTime time.Duration
}

type postgresLock struct {
	key string
	tx  *sqlx.Tx
}

type LockerOption func(*PostgresLocker)

func WithMaxOpenConns(n int) LockerOption {
	return func(l *PostgresLocker) {
		l.maxOpenConns = n
	}
}

func WithMaxIdleConns(n int) LockerOption {
	return func(l *PostgresLocker) {
		l.maxIdleConns = n
	}
}

func WithConnMaxLifetime(d time.Duration) LockerOption {
	return func(l *PostgresLocker) {
		l.connMaxLifetime = d
	}
}

func WithConnMaxIdleTime(d time.Duration) LockerOption {
	return func(l *PostgresLocker) {
		l.connMaxIdleTime = d
	}
}

// WithKeyNamespace prefixes every key before hashing, so that
// several deployments can share a database without colliding.
func WithKeyNamespace(ns string) LockerOption {
	return func(l *PostgresLocker) {
		l.namespace = ns
	}
}

func (l *postgresLock) ReleaseLock(ctx context.Context) error {
	if err := l.tx.Rollback(); err != nil {
		return errors.Wrapf(err, "failed to release lock for key '%s'", l.key)
	}
	return nil
}

func NewPostgresLocker(dsn string, opts ...LockerOption) (*PostgresLocker, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to postgres")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrapf(err, "failed to ping database")
	}
	locker := &PostgresLocker{db: db, namespace: defaultKeyNamespace}
	for _, opt := range opts {
		opt(locker)
	}
	if locker.maxOpenConns > 0 {
		db.SetMaxOpenConns(locker.maxOpenConns)
	}
	if locker.maxIdleConns > 0 {
		db.SetMaxIdleConns(locker.maxIdleConns)
	}
	if locker.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(locker.connMaxLifetime)
	}
	if locker.connMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(locker.connMaxIdleTime)
	}
	return locker, nil
}

func (p *PostgresLocker) AcquireLock(ctx context.Context, key string) (Lock, error) {
	keyHash := hashKey(p.namespace + ":" + key)
	tx, err := p.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to begin lock transaction")
	}
	var locked bool
	if err := tx.GetContext(ctx, &locked, "SELECT pg_try_advisory_xact_lock($1)", keyHash); err != nil {
		_ = tx.Rollback()
		return nil, errors.Wrapf(err, "failed to acquire lock for key '%s'", key)
	}
	if !locked {
		_ = tx.Rollback()
		return nil, errors.Wrapf(ErrLockNotAcquired, "key '%s'", key)
	}
	log.Debug().Str("key", key).Msg("acquired advisory lock")
	return &postgresLock{key: key, tx: tx}, nil
}

func (p *PostgresLocker) Close() error {
	return p.db.Close()
}

func hashKey(key string) int64 {
	hash := sha256.Sum256([]byte(key))
	unsigned := binary.BigEndian.Uint64(hash[:8])
	return int64(unsigned)
}
