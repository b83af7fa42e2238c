package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newSQLite(t *testing.T) *SQLiteStore[testState] {
	t.Helper()
	st, err := NewSQLiteStore[testState](filepath.Join(t.TempDir(), "flow.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)

	if err := st.SaveStep(ctx, "t1", 0, "__start__", testState{}); err != nil {
		t.Fatalf("SaveStep(0) error = %v", err)
	}
	want := testState{Counter: 7, Log: []string{"x", "y"}}
	if err := st.SaveStep(ctx, "t1", 1, "Coder", want); err != nil {
		t.Fatalf("SaveStep(1) error = %v", err)
	}

	rec, err := st.LoadLatest(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if rec.Step != 1 || rec.NodeID != "Coder" {
		t.Errorf("LoadLatest() = %+v", rec)
	}
	if rec.State.Counter != want.Counter || len(rec.State.Log) != 2 {
		t.Errorf("state = %+v, want %+v", rec.State, want)
	}
}

func TestSQLiteNotFound(t *testing.T) {
	st := newSQLite(t)
	_, err := st.LoadLatest(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadLatest() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStepConflict(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)

	if err := st.SaveStep(ctx, "t1", 0, "n", testState{}); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveStep(ctx, "t1", 0, "n", testState{}); !errors.Is(err, ErrStepConflict) {
		t.Errorf("reused step error = %v, want ErrStepConflict", err)
	}
	if err := st.SaveStep(ctx, "t1", 5, "n", testState{}); !errors.Is(err, ErrStepConflict) {
		t.Errorf("skipped step error = %v, want ErrStepConflict", err)
	}
	if err := st.SaveStep(ctx, "t1", 1, "n", testState{}); err != nil {
		t.Errorf("contiguous step error = %v", err)
	}
}

func TestSQLiteHistory(t *testing.T) {
	ctx := context.Background()
	st := newSQLite(t)
	for i := 0; i < 4; i++ {
		if err := st.SaveStep(ctx, "t1", i, "n", testState{Counter: i}); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := st.History(ctx, "t1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("history length = %d, want 4", len(recs))
	}
	for i, rec := range recs {
		if rec.Step != i || rec.State.Counter != i {
			t.Errorf("record %d = %+v", i, rec)
		}
	}

	empty, err := st.History(ctx, "ghost")
	if err != nil || len(empty) != 0 {
		t.Errorf("History(ghost) = %v, %v; want empty", empty, err)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flow.db")

	st, err := NewSQLiteStore[testState](path)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.SaveStep(ctx, "t1", 0, "n", testState{Counter: 42}); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st2, err := NewSQLiteStore[testState](path)
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()
	rec, err := st2.LoadLatest(ctx, "t1")
	if err != nil || rec.State.Counter != 42 {
		t.Errorf("LoadLatest after reopen = %+v, %v", rec, err)
	}
}
