package state

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/talentsync/talentsync/pkg/config"
	"github.com/talentsync/talentsync/pkg/errors"
	"github.com/talentsync/talentsync/pkg/logger"
)

const createStateTable = `
CREATE TABLE IF NOT EXISTS engine_state (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ
)`

// PostgresStore persists engine state in a single engine_state table.
// Expiry is enforced lazily on read and by a periodic cleanup.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	stop      chan struct{}
	closeOnce sync.Once
}

// NewPostgresStore connects, ensures the engine_state table exists and
// starts the cleanup loop.
func NewPostgresStore(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse state store DSN")
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create state store pool")
	}

	s := &PostgresStore{
		pool:   pool,
		logger: logger.Get().With(zap.String("component", "postgres_state_store")),
		stop:   make(chan struct{}),
	}

	if _, err := pool.Exec(ctx, createStateTable); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create engine_state table")
	}

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go s.cleanupLoop(interval)

	s.logger.Info("postgres state store ready",
		zap.Int32("max_conns", poolConfig.MaxConns),
		zap.Duration("cleanup_interval", interval))
	return s, nil
}

// Get returns the value for key, deleting it on the spot when expired.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt *time.Time

	row := s.pool.QueryRow(ctx, `SELECT value, expires_at FROM engine_state WHERE key = $1`, key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.Newf(errors.ErrorTypeNotFound, "state key %s not found", key)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "state read failed")
	}

	if expiresAt != nil && time.Now().After(*expiresAt) {
		if _, err := s.pool.Exec(ctx, `DELETE FROM engine_state WHERE key = $1`, key); err != nil {
			s.logger.Warn("failed to reap expired key", zap.String("key", key), zap.Error(err))
		}
		return nil, errors.Newf(errors.ErrorTypeNotFound, "state key %s not found", key)
	}

	return value, nil
}

// Set upserts value under key. A positive ttl bounds its lifetime.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO engine_state (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expiresAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "state write failed")
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM engine_state WHERE key = $1`, key); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "state delete failed")
	}
	return nil
}

// Keys returns the live keys with the given prefix, sorted.
func (s *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key FROM engine_state
		WHERE key LIKE $1 AND (expires_at IS NULL OR expires_at > now())
		ORDER BY key`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "state scan failed")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "state scan failed")
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "state scan failed")
	}
	return keys, nil
}

// Close stops the cleanup loop and releases the pool.
func (s *PostgresStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.pool.Close()
	})
	return nil
}

func (s *PostgresStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			tag, err := s.pool.Exec(ctx, `DELETE FROM engine_state WHERE expires_at IS NOT NULL AND expires_at < now()`)
			cancel()
			if err != nil {
				s.logger.Warn("state cleanup failed", zap.Error(err))
				continue
			}
			if tag.RowsAffected() > 0 {
				s.logger.Debug("state cleanup removed expired keys", zap.Int64("removed", tag.RowsAffected()))
			}
		}
	}
}

// escapeLike neutralizes LIKE metacharacters so prefixes match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
