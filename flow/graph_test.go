package flow

import (
	"context"
	"strings"
	"testing"
)

func noopHandler() Handler {
	return HandlerFunc(func(ctx context.Context, s State) (Delta, error) {
		return Delta{}, nil
	})
}

func TestBuilderValidGraph(t *testing.T) {
	g, err := NewBuilder().
		AddNode("A", noopHandler(), OwnsSlot("a")).
		AddNode("B", noopHandler()).
		SetEntry("A").
		AddEdge("A", "B").
		AddEdge("B", End).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if owner, ok := g.SlotOwner("a"); !ok || owner != "A" {
		t.Errorf("SlotOwner(a) = %q, %v; want A, true", owner, ok)
	}
	next, err := g.next("A", State{})
	if err != nil || next != "B" {
		t.Errorf("next(A) = %q, %v; want B", next, err)
	}
}

func TestBuilderImplicitEndEdge(t *testing.T) {
	g, err := NewBuilder().
		AddNode("only", noopHandler()).
		SetEntry("only").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	next, err := g.next("only", State{})
	if err != nil || next != End {
		t.Errorf("next(only) = %q, %v; want End", next, err)
	}
}

func TestBuilderValidation(t *testing.T) {
	tests := []struct {
		name    string
		build   func() (*Graph, error)
		wantErr string
	}{
		{
			"no entry",
			func() (*Graph, error) {
				return NewBuilder().AddNode("A", noopHandler()).Build()
			},
			"no entry point",
		},
		{
			"duplicate node",
			func() (*Graph, error) {
				return NewBuilder().
					AddNode("A", noopHandler()).
					AddNode("A", noopHandler()).
					SetEntry("A").Build()
			},
			"duplicate node",
		},
		{
			"edge to unknown node",
			func() (*Graph, error) {
				return NewBuilder().
					AddNode("A", noopHandler()).
					SetEntry("A").
					AddEdge("A", "missing").Build()
			},
			"unknown node",
		},
		{
			"router table to unknown node",
			func() (*Graph, error) {
				return NewBuilder().
					AddNode("A", noopHandler()).
					SetEntry("A").
					AddRouter("A", Router{
						Route: func(State) string { return "x" },
						Table: map[string]string{"x": "missing"},
					}).Build()
			},
			"unknown node",
		},
		{
			"both edge and router",
			func() (*Graph, error) {
				return NewBuilder().
					AddNode("A", noopHandler()).
					AddNode("B", noopHandler()).
					SetEntry("A").
					AddEdge("A", "B").
					AddRouter("A", Router{
						Route: func(State) string { return "B" },
						Table: map[string]string{"B": "B"},
					}).Build()
			},
			"both an edge and a router",
		},
		{
			"entry not found",
			func() (*Graph, error) {
				return NewBuilder().AddNode("A", noopHandler()).SetEntry("Z").Build()
			},
			"not found",
		},
		{
			"both entry and entry router",
			func() (*Graph, error) {
				return NewBuilder().
					AddNode("A", noopHandler()).
					SetEntry("A").
					SetEntryRouter(EntryRouter("s", "A", "A")).Build()
			},
			"both SetEntry and SetEntryRouter",
		},
		{
			"reserved name",
			func() (*Graph, error) {
				return NewBuilder().AddNode(End, noopHandler()).SetEntry(End).Build()
			},
			"reserved",
		},
		{
			"nil handler",
			func() (*Graph, error) {
				return NewBuilder().AddNode("A", nil).SetEntry("A").Build()
			},
			"nil handler",
		},
		{
			"slot with two owners",
			func() (*Graph, error) {
				return NewBuilder().
					AddNode("A", noopHandler(), OwnsSlot("s")).
					AddNode("B", noopHandler(), OwnsSlot("s")).
					SetEntry("A").Build()
			},
			"owned by both",
		},
		{
			"gate without apply",
			func() (*Graph, error) {
				return NewBuilder().
					AddGate("G", Gate{}).
					SetEntry("G").Build()
			},
			"no Apply function",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			if err == nil {
				t.Fatal("Build() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Build() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestGraphEntryRouting(t *testing.T) {
	g, err := NewBuilder().
		AddNode("Producer", noopHandler()).
		AddNode("Onward", noopHandler()).
		SetEntryRouter(EntryRouter("slot", "Producer", "Onward")).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	next, err := g.next(startNode, State{})
	if err != nil || next != "Producer" {
		t.Errorf("entry with empty slot = %q, %v; want Producer", next, err)
	}
	next, err = g.next(startNode, State{Slots: map[string]SlotValue{"slot": TextSlot("x")}})
	if err != nil || next != "Onward" {
		t.Errorf("entry with populated slot = %q, %v; want Onward", next, err)
	}
}
