// Package memory is the in-process session store: a map guarded by a
// RWMutex with per-session subscriber fan-out. It backs tests and
// single-process deployments; everything durable lives in the sibling
// packages.
package memory

import (
	"context"
	"sync"

	"github.com/turnwire/turnwire/session"
)

// Store implements session.Store in memory. Sessions are deep-copied on the
// way in and out, so callers never share mutable state with the stored
// snapshot.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*session.Session
	subscribers map[string]map[int]func(*session.Session)
	nextSub     int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		sessions:    make(map[string]*session.Session),
		subscribers: make(map[string]map[int]func(*session.Session)),
	}
}

func (st *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	st.mu.RLock()
	stored, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, session.ErrNotFound
	}
	return session.Clone(stored)
}

func (st *Store) Put(ctx context.Context, s *session.Session) error {
	stored, err := session.Clone(s)
	if err != nil {
		return err
	}

	st.mu.Lock()
	st.sessions[s.ID] = stored
	listeners := make([]func(*session.Session), 0, len(st.subscribers[s.ID]))
	for _, fn := range st.subscribers[s.ID] {
		listeners = append(listeners, fn)
	}
	st.mu.Unlock()

	// Each subscriber gets its own copy; callbacks run on the writer's
	// goroutine, same as a synchronous store trigger would.
	for _, fn := range listeners {
		snapshot, err := session.Clone(stored)
		if err != nil {
			return err
		}
		fn(snapshot)
	}
	return nil
}

func (st *Store) Delete(ctx context.Context, id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
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
