// Package natskv persists sessions in a NATS JetStream key/value bucket.
// Unlike the SQL stores its subscriptions ride on JetStream watchers, so
// change notifications reach every process connected to the same server.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/turnwire/turnwire/session"
)

// DefaultBucket is the bucket name used by New.
const DefaultBucket = "turnwire_sessions"

// Store implements session.Store on a JetStream KV bucket.
type Store struct {
	kv nats.KeyValue
}

// New binds to the bucket, creating it when absent.
func New(js nats.JetStreamContext, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "turnwire sessions",
		})
	}
	if err != nil {
		return nil, fmt.Errorf("natskv: bind bucket %s: %w", bucket, err)
	}
	return &Store{kv: kv}, nil
}

func (st *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	entry, err := st.kv.Get(id)
	if errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("natskv: get %s: %w", id, err)
	}

	s := &session.Session{}
	if err := json.Unmarshal(entry.Value(), s); err != nil {
		return nil, fmt.Errorf("natskv: decode %s: %w", id, err)
	}
	return s, nil
}

func (st *Store) Put(ctx context.Context, s *session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("natskv: encode %s: %w", s.ID, err)
	}
	if _, err := st.kv.Put(s.ID, data); err != nil {
		return fmt.Errorf("natskv: put %s: %w", s.ID, err)
	}
	return nil
}

func (st *Store) Delete(ctx context.Context, id string) error {
	err := st.kv.Delete(id)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("natskv: delete %s: %w", id, err)
	}
	return nil
}

// Subscribe watches the key through JetStream. The watcher replays the
// current value before streaming changes; the replay is swallowed so the
// callback only sees writes that happen after subscribing.
func (st *Store) Subscribe(id string, fn func(*session.Session)) (cancel func()) {
	watcher, err := st.kv.Watch(id, nats.IgnoreDeletes())
	if err != nil {
		log.Error().Err(err).Str("session", id).Msg("natskv: watch failed")
		return func() {}
	}

	go func() {
		caughtUp := false
		for entry := range watcher.Updates() {
			if entry == nil {
				// Nil marks the end of the initial replay.
				caughtUp = true
				continue
			}
			if !caughtUp {
				continue
			}
			s := &session.Session{}
			if err := json.Unmarshal(entry.Value(), s); err != nil {
				log.Warn().Err(err).Str("session", id).Msg("natskv: skipping undecodable update")
				continue
			}
			fn(s)
		}
	}()

	return func() {
		if err := watcher.Stop(); err != nil {
			log.Debug().Err(err).Str("session", id).Msg("natskv: stop watcher")
		}
	}
}
