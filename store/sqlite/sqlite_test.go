package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/turnwire/turnwire/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestPutGetRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	s := session.New("s1")
	s.Provider = "anthropic"
	s.Turns = append(s.Turns, session.NewRequestTurn([]session.RequestContent{session.TextContent("hi")}))

	response := session.NewResponseTurn()
	response.Message = []*session.MessageResult{
		{Type: session.BlockStart},
		{Type: session.BlockText, Text: "hello"},
	}
	response.Close(session.LogStop("Assistant has finished its turn."))
	s.Turns = append(s.Turns, response)

	if err := st.Put(ctx, s); err != nil {
		t.Fatal(err)
	}

	loaded, err := st.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Provider != "anthropic" || len(loaded.Turns) != 2 {
		t.Errorf("loaded = %+v", loaded)
	}
	reloaded, ok := loaded.Turns[1].(*session.ResponseTurn)
	if !ok || reloaded.Message[1].Text != "hello" || !reloaded.Closed() {
		t.Errorf("response turn = %+v", loaded.Turns[1])
	}
}

func TestPutOverwrites(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	s := session.New("s1")
	if err := st.Put(ctx, s); err != nil {
		t.Fatal(err)
	}
	s.Turns = append(s.Turns, session.NewRequestTurn(nil))
	s.Touch()
	if err := st.Put(ctx, s); err != nil {
		t.Fatal(err)
	}

	loaded, err := st.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Turns) != 1 {
		t.Errorf("turns = %d after overwrite", len(loaded.Turns))
	}
}

func TestGetUnknownID(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.Get(context.Background(), "missing"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.Put(ctx, session.New("s1")); err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Get(ctx, "s1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound after delete", err)
	}
}

func TestSubscribeNotifiesOnPut(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	var notified int
	cancel := st.Subscribe("s1", func(*session.Session) { notified++ })

	if err := st.Put(ctx, session.New("s1")); err != nil {
		t.Fatal(err)
	}
	if notified != 1 {
		t.Fatalf("notified = %d, want 1", notified)
	}

	cancel()
	if err := st.Put(ctx, session.New("s1")); err != nil {
		t.Fatal(err)
	}
	if notified != 1 {
		t.Error("canceled subscriber still notified")
	}
}
