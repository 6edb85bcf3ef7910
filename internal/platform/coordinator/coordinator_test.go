package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
)

func TestLatest_CommitsResult(t *testing.T) {
	c := New()
	var committed string

	v, err := Latest(c, context.Background(), "market:a", func(ctx context.Context) (string, error) {
		return "17031", nil
	}, func(v string) { committed = v })

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "17031" || committed != "17031" {
		t.Errorf("expected result committed, got v=%q committed=%q", v, committed)
	}
	if c.InFlight("market:a") {
		t.Error("expected no in-flight call after completion")
	}
}

func TestLatest_NewerCallWins(t *testing.T) {
	c := New()
	started := make(chan struct{})
	var commits []string
	var mu sync.Mutex
	commit := func(v string) {
		mu.Lock()
		commits = append(commits, v)
		mu.Unlock()
	}

	firstErr := make(chan error, 1)
	go func() {
		_, err := Latest(c, context.Background(), "market:a", func(ctx context.Context) (string, error) {
			close(started)
			<-ctx.Done()
			// Simulate a late network response that arrives after cancellation.
			return "stale", nil
		}, commit)
		firstErr <- err
	}()

	<-started
	v, err := Latest(c, context.Background(), "market:a", func(ctx context.Context) (string, error) {
		return "fresh", nil
	}, commit)
	if err != nil {
		t.Fatalf("unexpected error from newer call: %v", err)
	}
	if v != "fresh" {
		t.Errorf("expected fresh, got %q", v)
	}

	select {
	case err := <-firstErr:
		if !apperr.IsSuperseded(err) {
			t.Errorf("expected superseded error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first call was not cancelled")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(commits) != 1 || commits[0] != "fresh" {
		t.Errorf("expected only fresh to be committed, got %v", commits)
	}
}

func TestLatest_DifferentKeysDoNotInterfere(t *testing.T) {
	c := New()
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := Latest(c, context.Background(), "market:a", func(ctx context.Context) (int, error) {
			select {
			case <-release:
				return 1, nil
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}, nil)
		done <- err
	}()

	if _, err := Latest(c, context.Background(), "market:b", func(ctx context.Context) (int, error) {
		return 2, nil
	}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("call on other key should not be cancelled: %v", err)
	}
}

func TestLatest_PropagatesError(t *testing.T) {
	c := New()
	boom := errors.New("boom")
	committed := false
	_, err := Latest(c, context.Background(), "k", func(ctx context.Context) (int, error) {
		return 0, boom
	}, func(int) { committed = true })
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if committed {
		t.Error("commit must not run on error")
	}
}

func TestLatest_TimeoutBudget(t *testing.T) {
	c := New(WithTimeout(20 * time.Millisecond))
	_, err := Latest(c, context.Background(), "slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestShared_DeduplicatesConcurrentCalls(t *testing.T) {
	c := New()
	var calls int32
	gate := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Shared(c, context.Background(), "years", func(ctx context.Context) (string, error) {
				atomic.AddInt32(&calls, 1)
				<-gate
				return "2020-2024", nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = v
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 underlying call, got %d", n)
	}
	for i, r := range results {
		if r != "2020-2024" {
			t.Errorf("result %d = %q", i, r)
		}
	}
}

func TestShared_CallerCanAbandon(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	gate := make(chan struct{})
	defer close(gate)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Shared(c, ctx, "slow", func(ctx context.Context) (int, error) {
		<-gate
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOperationLabel(t *testing.T) {
	if got := operation("market:41.8,-87.6"); got != "market" {
		t.Errorf("expected market, got %q", got)
	}
	if got := operation("plain"); got != "plain" {
		t.Errorf("expected plain, got %q", got)
	}
}

func TestSupersede_CancelsInFlightLatest(t *testing.T) {
	c := New()
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := Latest(c, context.Background(), "market:s1", func(ctx context.Context) (int, error) {
			close(started)
			<-ctx.Done()
			return 0, ctx.Err()
		}, func(int) { t.Error("superseded call must not commit") })
		done <- err
	}()
	<-started

	if !c.Supersede("market:s1") {
		t.Error("expected an in-flight call to be superseded")
	}
	select {
	case err := <-done:
		if !apperr.IsSuperseded(err) {
			t.Errorf("expected superseded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("call was not cancelled")
	}
	if c.Supersede("market:s1") {
		t.Error("nothing should be left to supersede")
	}
}

func TestShared_CancelsFetchWhenAllWaitersLeave(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	fetchCancelled := make(chan struct{})
	started := make(chan struct{})

	go func() {
		time.Sleep(10 * time.Millisecond)
		<-started
		cancel()
	}()
	_, err := Shared(c, ctx, "slow", func(fctx context.Context) (int, error) {
		close(started)
		<-fctx.Done()
		close(fetchCancelled)
		return 0, fctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	select {
	case <-fetchCancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned fetch kept running")
	}

	v, err := Shared(c, context.Background(), "slow", func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || v != 7 {
		t.Errorf("expected a fresh fetch after abandonment, got %d, %v", v, err)
	}
}

func TestShared_RemainingWaiterKeepsFetch(t *testing.T) {
	c := New()
	gate := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	fn := func(fctx context.Context) (int, error) {
		once.Do(func() { close(started) })
		select {
		case <-gate:
			return 1, nil
		case <-fctx.Done():
			return 0, fctx.Err()
		}
	}

	stayed := make(chan error, 1)
	go func() {
		_, err := Shared(c, context.Background(), "k", fn)
		stayed <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := Shared(c, ctx, "k", fn); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	close(gate)
	if err := <-stayed; err != nil {
		t.Errorf("remaining waiter lost its fetch: %v", err)
	}
}
