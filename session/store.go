package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store.Get when no session exists for the id.
var ErrNotFound = errors.New("session: not found")

// Store is the persistence collaborator. Implementations are key/value with
// no locking discipline: every Put is a full-session write, last write wins.
// A single session must not be driven by two concurrent streaming cycles.
type Store interface {
	// Get returns the session for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Put durably writes the full session snapshot and notifies
	// subscribers registered for its id.
	Put(ctx context.Context, s *Session) error

	// Delete removes the session. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// Subscribe registers a change callback for one session id and
	// returns a cancel function. Callbacks receive the written snapshot.
	Subscribe(id string, fn func(*Session)) (cancel func())
}

// Clone deep-copies a session via its JSON form. Stores use this so callers
// never share mutable state with the persisted snapshot; the JSON round trip
// also guarantees the copy carries exactly the persisted shape.
func Clone(s *Session) (*Session, error) {
	if s == nil {
		return nil, fmt.Errorf("session: clone of nil session")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("session: clone marshal: %w", err)
	}
	copied := &Session{}
	if err := json.Unmarshal(data, copied); err != nil {
		return nil, fmt.Errorf("session: clone unmarshal: %w", err)
	}
	return copied, nil
}
