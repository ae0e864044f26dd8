package provider

import (
	"testing"

	"github.com/turnwire/turnwire/session"
)

func TestApplyOps_AppendThenMerge(t *testing.T) {
	turn := session.NewResponseTurn()

	err := ApplyOps(turn, []DeltaOp{
		Append(session.MessageResult{Type: session.BlockStart}),
		Append(session.MessageResult{Type: session.BlockText}),
		MergeAt(1, Patch{Text: "Hel"}),
		MergeAt(1, Patch{Text: "lo"}),
	})
	if err != nil {
		t.Fatalf("ApplyOps: %v", err)
	}

	if len(turn.Message) != 2 {
		t.Fatalf("arena size: got %d", len(turn.Message))
	}
	if turn.Message[0].Type != session.BlockStart {
		t.Errorf("block 0: got %q", turn.Message[0].Type)
	}
	if turn.Message[1].Text != "Hello" {
		t.Errorf("accumulated text: got %q", turn.Message[1].Text)
	}
}

func TestApplyOps_MergeOutOfRange(t *testing.T) {
	turn := session.NewResponseTurn()

	if err := ApplyOps(turn, []DeltaOp{MergeAt(0, Patch{Text: "x"})}); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestApplyOps_NotIdempotent(t *testing.T) {
	turn := session.NewResponseTurn()
	if err := ApplyOps(turn, []DeltaOp{Append(session.MessageResult{Type: session.BlockText})}); err != nil {
		t.Fatalf("ApplyOps: %v", err)
	}

	patch := MergeAt(0, Patch{Text: "ab"})
	if err := ApplyOps(turn, []DeltaOp{patch, patch}); err != nil {
		t.Fatalf("ApplyOps: %v", err)
	}

	// Deltas are stream-ordered, not idempotent: replaying doubles content.
	if turn.Message[0].Text != "abab" {
		t.Errorf("got %q", turn.Message[0].Text)
	}
}

func TestBlockMap_InterleavedBlocks(t *testing.T) {
	blocks := NewBlockMap()

	if offset := blocks.Append(); offset != 0 {
		t.Fatalf("start offset: got %d", offset)
	}

	// Provider reports reasoning block as index 0 and text block as
	// index 1, but opens the text block first.
	text := blocks.Open("1")
	reasoning := blocks.Open("0")
	if text != 1 || reasoning != 2 {
		t.Fatalf("offsets: text=%d reasoning=%d", text, reasoning)
	}

	// Positions stay stable across the blocks' lifetime and distinct.
	for i := 0; i < 3; i++ {
		if got, ok := blocks.Resolve("1"); !ok || got != 1 {
			t.Fatalf("resolve 1: got %d ok=%v", got, ok)
		}
		if got, ok := blocks.Resolve("0"); !ok || got != 2 {
			t.Fatalf("resolve 0: got %d ok=%v", got, ok)
		}
	}
}

func TestBlockMap_UnknownIndex(t *testing.T) {
	blocks := NewBlockMap()
	if _, ok := blocks.Resolve("7"); ok {
		t.Fatal("expected miss for unopened index")
	}
}
