package services

import (
	"context"
	"testing"
	"time"

	"ab-analyzer/internal/errors"
)

func TestCoordinator_AppliesLatest(t *testing.T) {
	c := NewCoordinator(func(ctx context.Context, p AnalysisParams) (*Snapshot, error) {
		return &Snapshot{Currency: p.Currency, ComputedAt: time.Now()}, nil
	}, nil)

	token := c.Trigger(context.Background(), AnalysisParams{})
	c.Wait()

	if token != 1 {
		t.Errorf("first token = %d, want 1", token)
	}
	snap, ok := c.Current()
	if !ok || snap == nil {
		t.Fatal("expected a current snapshot")
	}
	if err := c.Err(); err != nil {
		t.Errorf("unexpected error state: %v", err)
	}
}

// A slow early request must not overwrite the result of a later, faster
// one. The analysis function blocks on a per-token gate so the test
// controls completion order exactly.
func TestCoordinator_DiscardsStaleResult(t *testing.T) {
	gates := map[uint64]chan struct{}{
		1: make(chan struct{}),
		2: make(chan struct{}),
	}
	started := make(chan uint64, 2)

	var issued uint64
	run := func(ctx context.Context, p AnalysisParams) (*Snapshot, error) {
		// Tokens are issued in trigger order, so the capture is safe as
		// long as triggers happen sequentially below.
		issued++
		token := issued
		started <- token
		<-gates[token]
		return &Snapshot{RecordCount: int(token)}, nil
	}

	c := NewCoordinator(run, nil)

	c.Trigger(context.Background(), AnalysisParams{})
	<-started
	c.Trigger(context.Background(), AnalysisParams{})
	<-started

	// The later request settles first.
	close(gates[2])
	waitFor(t, func() bool {
		snap, ok := c.Current()
		return ok && snap.RecordCount == 2
	})

	// The earlier request settles afterwards and must be discarded.
	close(gates[1])
	c.Wait()

	snap, ok := c.Current()
	if !ok {
		t.Fatal("expected a current snapshot")
	}
	if snap.RecordCount != 2 {
		t.Errorf("stale result overwrote the newer one: got %d, want 2", snap.RecordCount)
	}
}

// A failed request keeps the previous accepted snapshot on screen and only
// flips the error state; the next success clears it.
func TestCoordinator_FailureRetainsPrevious(t *testing.T) {
	fail := false
	run := func(ctx context.Context, p AnalysisParams) (*Snapshot, error) {
		if fail {
			return nil, errors.Upstream("analysis service request failed")
		}
		return &Snapshot{RecordCount: 7}, nil
	}

	c := NewCoordinator(run, nil)

	c.Trigger(context.Background(), AnalysisParams{})
	c.Wait()

	fail = true
	c.Trigger(context.Background(), AnalysisParams{})
	c.Wait()

	snap, ok := c.Current()
	if !ok || snap.RecordCount != 7 {
		t.Error("failure should retain the previous snapshot")
	}
	if c.Err() == nil {
		t.Error("failure should surface through Err")
	}

	fail = false
	c.Trigger(context.Background(), AnalysisParams{})
	c.Wait()

	if c.Err() != nil {
		t.Error("a later success should clear the error state")
	}
}

func TestCoordinator_TokensMonotonic(t *testing.T) {
	c := NewCoordinator(func(ctx context.Context, p AnalysisParams) (*Snapshot, error) {
		return &Snapshot{}, nil
	}, nil)

	var last uint64
	for i := 0; i < 5; i++ {
		token := c.Trigger(context.Background(), AnalysisParams{})
		if token <= last {
			t.Fatalf("token %d not greater than previous %d", token, last)
		}
		last = token
	}
	c.Wait()

	if c.Latest() != last {
		t.Errorf("Latest() = %d, want %d", c.Latest(), last)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
