package fanout

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"
)

func TestRunRestoresInputOrder(t *testing.T) {
	// Later items finish first; results must still come back by index.
	items := make([]int, 12)
	for i := range items {
		items[i] = i
	}

	results := Run(context.Background(), items, 8, func(ctx context.Context, idx int, item int) (string, error) {
		time.Sleep(time.Duration(len(items)-idx) * 2 * time.Millisecond)
		return fmt.Sprintf("item-%d", item), nil
	})

	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Fatalf("result %d has index %d", i, r.Index)
		}
		if want := fmt.Sprintf("item-%d", i); r.Value != want {
			t.Fatalf("result %d: expected %q, got %q", i, want, r.Value)
		}
	}
}

func TestRunNeverExceedsLimit(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 5; trial++ {
		n := 5 + rng.Intn(30)
		k := 1 + rng.Intn(MaxLimit)

		var mu sync.Mutex
		inFlight, peak := 0, 0

		items := make([]int, n)
		Run(context.Background(), items, k, func(ctx context.Context, idx int, item int) (int, error) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return 0, nil
		})

		if peak > k {
			t.Fatalf("n=%d k=%d: peak in-flight %d exceeded limit", n, k, peak)
		}
	}
}

func TestRunFailureDoesNotCancelSiblings(t *testing.T) {
	boom := errors.New("boom")
	items := []int{0, 1, 2, 3, 4}

	results := Run(context.Background(), items, 2, func(ctx context.Context, idx int, item int) (int, error) {
		if idx == 1 || idx == 3 {
			return 0, boom
		}
		return item * 10, nil
	})

	var failed, succeeded int
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		succeeded++
		if r.Value != r.Index*10 {
			t.Fatalf("result %d: expected %d, got %d", r.Index, r.Index*10, r.Value)
		}
	}
	if failed != 2 || succeeded != 3 {
		t.Fatalf("expected 2 failures and 3 successes, got %d and %d", failed, succeeded)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-3, DefaultLimit},
		{0, DefaultLimit},
		{1, 1},
		{DefaultLimit, DefaultLimit},
		{MaxLimit, MaxLimit},
		{MaxLimit + 10, MaxLimit},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
