// Package postgres persists sessions in PostgreSQL, one JSONB document per
// session. Change notifications are process-local; multi-process setups that
// need them should use the NATS-backed store instead.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/turnwire/turnwire/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// Querier abstracts the pgx methods the store needs. Both *pgxpool.Pool and
// pgx.Tx satisfy it, and tests can inject a fake.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements session.Store on PostgreSQL.
type Store struct {
	db   Querier
	pool *pgxpool.Pool // set when the store owns the pool

	mu          sync.Mutex
	subscribers map[string]map[int]func(*session.Session)
	nextSub     int
}

// Open connects to the database at dsn, migrates the schema and returns a
// store owning the pool.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	st, err := NewWithQuerier(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	st.pool = pool
	return st, nil
}

// NewWithQuerier builds a store over an existing executor and migrates the
// schema. The caller keeps ownership of the connection.
func NewWithQuerier(ctx context.Context, db Querier) (*Store, error) {
	if _, err := db.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return &Store{
		db:          db,
		subscribers: make(map[string]map[int]func(*session.Session)),
	}, nil
}

// Close releases the pool when the store owns one.
func (st *Store) Close() {
	if st.pool != nil {
		st.pool.Close()
	}
}

func (st *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	var data []byte
	err := st.db.QueryRow(ctx, `SELECT data FROM sessions WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %s: %w", id, err)
	}

	s := &session.Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("postgres: decode %s: %w", id, err)
	}
	return s, nil
}

func (st *Store) Put(ctx context.Context, s *session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("postgres: encode %s: %w", s.ID, err)
	}

	const query = `
INSERT INTO sessions (id, data, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	if _, err := st.db.Exec(ctx, query, s.ID, data, s.UpdatedAt); err != nil {
		return fmt.Errorf("postgres: put %s: %w", s.ID, err)
	}

	st.notify(s)
	return nil
}

func (st *Store) Delete(ctx context.Context, id string) error {
	if _, err := st.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete %s: %w", id, err)
	}
	return nil
}

func (st *Store) Subscribe(id string, fn func(*session.Session)) (cancel func()) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.subscribers[id] == nil {
		st.subscribers[id] = make(map[int]func(*session.Session))
	}
	token := st.nextSub
	st.nextSub++
	st.subscribers[id][token] = fn

	return func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		delete(st.subscribers[id], token)
		if len(st.subscribers[id]) == 0 {
			delete(st.subscribers, id)
		}
	}
}

func (st *Store) notify(s *session.Session) {
	st.mu.Lock()
	listeners := make([]func(*session.Session), 0, len(st.subscribers[s.ID]))
	for _, fn := range st.subscribers[s.ID] {
		listeners = append(listeners, fn)
	}
	st.mu.Unlock()

	for _, fn := range listeners {
		if snapshot, err := session.Clone(s); err == nil {
			fn(snapshot)
		}
	}
}
