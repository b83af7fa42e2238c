package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/flowgraph-go/flow/store"
)

// ErrHistoryGap reports a checkpoint history whose step indices are not
// contiguous. A gap means at least one checkpoint write was lost, so the
// reconstructed state cannot be trusted.
var ErrHistoryGap = errors.New("checkpoint history has a step gap")

// Replay loads a thread's full checkpoint history, verifies it, and
// returns the state at the latest step. Verification covers:
//
//   - step indices strictly increasing by one from the first record
//   - the message log never shrinks except across a compaction, which
//     shows as a single-step decrease
//
// Replay is read-only; it is safe to call on a live thread between runs.
func Replay(ctx context.Context, st store.Store[State], threadID string) (State, error) {
	recs, err := st.History(ctx, threadID)
	if err != nil {
		return State{}, fmt.Errorf("load history: %w", err)
	}
	if len(recs) == 0 {
		return State{}, fmt.Errorf("%w: %s", ErrUnknownThread, threadID)
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Step != recs[i-1].Step+1 {
			return State{}, fmt.Errorf("%w: step %d follows step %d",
				ErrHistoryGap, recs[i].Step, recs[i-1].Step)
		}
		prev, cur := len(recs[i-1].State.Messages), len(recs[i].State.Messages)
		// Each applied delta appends at most one message; a shrink is a
		// compaction, which may itself carry the one appended message.
		if cur > prev+1 {
			return State{}, fmt.Errorf("message log grew by %d at step %d, expected at most 1",
				cur-prev, recs[i].Step)
		}
	}
	return recs[len(recs)-1].State, nil
}
