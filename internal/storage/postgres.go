package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const notifyChannel = "console_storage"

// PostgresStore persists keys in the console_storage table and fans
// changes out with LISTEN/NOTIFY.
type PostgresStore struct {
	pool   *pgxpool.Pool
	id     string
	logger *zap.Logger
}

var _ Storage = (*PostgresStore)(nil)

// NewPostgresStore wraps an open pool. The table comes from persistence.RunMigrations.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{pool: pool, id: uuid.NewString(), logger: logger}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var val string
	err := s.pool.QueryRow(ctx, `SELECT value FROM console_storage WHERE key = $1`, key).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		old, existed, err := lockedValue(ctx, tx, key)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO console_storage (key, value, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
		if err != nil {
			return err
		}
		if existed && old == value {
			return nil
		}
		return s.notify(ctx, tx, Event{Key: key, OldValue: old, NewValue: value})
	})
}

func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		old, existed, err := lockedValue(ctx, tx, key)
		if err != nil || !existed {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM console_storage WHERE key = $1`, key); err != nil {
			return err
		}
		return s.notify(ctx, tx, Event{Key: key, OldValue: old})
	})
}

func lockedValue(ctx context.Context, tx pgx.Tx, key string) (string, bool, error) {
	var val string
	err := tx.QueryRow(ctx, `SELECT value FROM console_storage WHERE key = $1 FOR UPDATE`, key).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// notify is transactional: listeners only hear about committed writes.
func (s *PostgresStore) notify(ctx context.Context, tx pgx.Tx, event Event) error {
	event.Source = s.id
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload))
	return err
}

// Watch holds one pooled connection for LISTEN until ctx is done.
func (s *PostgresStore) Watch(ctx context.Context, handler Handler) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		defer conn.Release()
		for {
			notification, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("storage listen stopped", zap.Error(err))
				}
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(notification.Payload), &event); err != nil {
				s.logger.Warn("invalid storage event", zap.Error(err))
				continue
			}
			if event.Source == s.id {
				continue
			}
			handler(event)
		}
	}()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool is owned by persistence.Postgres.
func (s *PostgresStore) Close() error {
	return nil
}
