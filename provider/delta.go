package provider

import (
	"fmt"

	"github.com/turnwire/turnwire/session"
)

// OpKind discriminates delta operations.
type OpKind string

const (
	// OpAppend appends a new (usually empty-content) block to the arena.
	OpAppend OpKind = "append"
	// OpMerge folds a patch into the block at a fixed arena offset.
	OpMerge OpKind = "merge"
)

// Patch carries incremental content for one block. Every field is appended
// to the corresponding accumulator; empty fields are no-ops. Deltas are
// stream-ordered and not idempotent: applying the same patch twice doubles
// the content.
type Patch struct {
	Text      string
	Thinking  string
	Signature string
	Input     string
	Refusal   string
}

// DeltaOp is one explicit mutation command against the open response turn's
// block arena. Translators emit these instead of provider events so the
// reconciler never sees vendor vocabulary.
type DeltaOp struct {
	Kind   OpKind
	Block  *session.MessageResult // OpAppend
	Offset int                    // OpMerge
	Patch  Patch                  // OpMerge
}

// Append builds an append operation. The block is copied so translators can
// reuse buffers.
func Append(block session.MessageResult) DeltaOp {
	copied := block
	return DeltaOp{Kind: OpAppend, Block: &copied}
}

// MergeAt builds a merge operation against an arena offset.
func MergeAt(offset int, patch Patch) DeltaOp {
	return DeltaOp{Kind: OpMerge, Offset: offset, Patch: patch}
}

// ApplyOps applies operations to the open response turn, in order. A merge
// against an offset outside the arena is a translator bug and returns an
// error without applying the remaining operations.
func ApplyOps(turn *session.ResponseTurn, ops []DeltaOp) error {
	for _, op := range ops {
		switch op.Kind {
		case OpAppend:
			turn.Message = append(turn.Message, op.Block)

		case OpMerge:
			if op.Offset < 0 || op.Offset >= len(turn.Message) {
				return fmt.Errorf("provider: merge offset %d out of range (arena size %d)", op.Offset, len(turn.Message))
			}
			block := turn.Message[op.Offset]
			block.Text += op.Patch.Text
			block.Thinking += op.Patch.Thinking
			block.Signature += op.Patch.Signature
			block.Input += op.Patch.Input
			block.Refusal += op.Patch.Refusal

		default:
			return fmt.Errorf("provider: unknown delta op kind %q", op.Kind)
		}
	}
	return nil
}
