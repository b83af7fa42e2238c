package flow

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemInputChannelDelivers(t *testing.T) {
	ch := NewMemInputChannel()
	ctx := context.Background()

	done := make(chan HumanInput, 1)
	go func() {
		in, err := ch.Await(ctx, "t1")
		if err != nil {
			t.Errorf("Await() error = %v", err)
		}
		done <- in
	}()

	if err := ch.Provide(ctx, "t1", HumanInput{Choice: "continue"}); err != nil {
		t.Fatalf("Provide() error = %v", err)
	}
	select {
	case in := <-done:
		if in.Choice != "continue" {
			t.Errorf("delivered input = %+v", in)
		}
	case <-time.After(time.Second):
		t.Fatal("Await never received the input")
	}
}

func TestMemInputChannelRoutesByThread(t *testing.T) {
	ch := NewMemInputChannel()
	ctx := context.Background()

	if err := ch.Provide(ctx, "other", HumanInput{Choice: "wrong"}); err != nil {
		t.Fatal(err)
	}
	if err := ch.Provide(ctx, "t1", HumanInput{Choice: "right"}); err != nil {
		t.Fatal(err)
	}

	in, err := ch.Await(ctx, "t1")
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if in.Choice != "right" {
		t.Errorf("Choice = %q, want %q", in.Choice, "right")
	}
	// The other thread's input is still there.
	in, err = ch.Await(ctx, "other")
	if err != nil || in.Choice != "wrong" {
		t.Errorf("Await(other) = %+v, %v", in, err)
	}
}

func TestMemInputChannelAwaitCancellation(t *testing.T) {
	ch := NewMemInputChannel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ch.Await(ctx, "t1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Await() error = %v, want context.Canceled", err)
	}
}
