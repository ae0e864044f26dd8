// Package sqlite persists sessions in a single SQLite file, one JSON blob
// per session. Suitable for local and single-node deployments; change
// notifications are process-local.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/turnwire/turnwire/session"
	_ "modernc.org/sqlite"
)

const (
	driver = "sqlite"
	dsnOpt = "?_pragma=busy_timeout(3000)&_pragma=journal_mode(WAL)"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store implements session.Store on a SQLite database. Subscriptions fire
// for writes through this store instance only; SQLite has no cross-process
// change feed.
type Store struct {
	db *sql.DB

	mu          sync.Mutex
	subscribers map[string]map[int]func(*session.Session)
	nextSub     int
}

// Open creates or opens the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	db, err := sql.Open(driver, path+dsnOpt)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	return &Store{
		db:          db,
		subscribers: make(map[string]map[int]func(*session.Session)),
	}, nil
}

// Close closes the underlying database.
func (st *Store) Close() error {
	return st.db.Close()
}

func (st *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	var data string
	err := st.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", id, err)
	}

	s := &session.Session{}
	if err := json.Unmarshal([]byte(data), s); err != nil {
		return nil, fmt.Errorf("sqlite: decode %s: %w", id, err)
	}
	return s, nil
}

func (st *Store) Put(ctx context.Context, s *session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("sqlite: encode %s: %w", s.ID, err)
	}

	const query = `
INSERT INTO sessions (id, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`
	if _, err := st.db.ExecContext(ctx, query, s.ID, string(data), s.UpdatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("sqlite: put %s: %w", s.ID, err)
	}

	st.notify(s)
	return nil
}

func (st *Store) Delete(ctx context.Context, id string) error {
	if _, err := st.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", id, err)
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
