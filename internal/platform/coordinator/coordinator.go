// Package coordinator orders and de-duplicates in-flight operations.
//
// Two guarantees are provided per key:
//
//   - Latest: starting a call cancels the previous in-flight call for the
//     same key, and only the most recent call may commit its result.
//   - Shared: concurrent callers asking for the same key share a single
//     underlying fetch.
//
// Every call runs under a context derived from the caller's, bounded by the
// coordinator's per-call timeout budget.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/telemetry"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout sets the per-call timeout budget. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// WithLogger attaches a logger for superseded-call diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

type generation struct {
	seq    uint64
	cancel context.CancelFunc
}

// sharedCall is the fetch context of a Shared key, cancelled once no
// caller waits for it any more.
type sharedCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	mu      sync.Mutex
	latest  map[string]*generation
	shared  map[string]*sharedCall
	seq     uint64
	flight  singleflight.Group
	timeout time.Duration
	logger  zerolog.Logger
}

// New creates a Coordinator.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		latest: make(map[string]*generation),
		shared: make(map[string]*sharedCall),
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// begin registers a new generation for key, cancelling the previous one.
func (c *Coordinator) begin(parent context.Context, key string) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(parent)
	if c.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, c.timeout)
		inner := cancel
		cancel = func() { cancelTimeout(); inner() }
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq
	if prev, ok := c.latest[key]; ok {
		prev.cancel()
	}
	c.latest[key] = &generation{seq: seq, cancel: cancel}
	c.mu.Unlock()

	release := func() {
		cancel()
		c.mu.Lock()
		if g, ok := c.latest[key]; ok && g.seq == seq {
			delete(c.latest, key)
		}
		c.mu.Unlock()
	}
	return ctx, seq, release
}

// current reports whether seq is still the newest generation for key.
// The caller must hold c.mu.
func (c *Coordinator) current(key string, seq uint64) bool {
	g, ok := c.latest[key]
	return ok && g.seq == seq
}

// InFlight reports whether a Latest call for key is running.
func (c *Coordinator) InFlight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.latest[key]
	return ok
}

// Supersede cancels the in-flight Latest call for key, if any, as though a
// newer call had started and already answered. It reports whether a call
// was cancelled.
func (c *Coordinator) Supersede(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.latest[key]
	if !ok {
		return false
	}
	g.cancel()
	delete(c.latest, key)
	return true
}

// Latest runs fn as the newest call for key. If a newer call for the same
// key starts before fn returns, this call's context is cancelled, commit is
// skipped, and apperr.ErrSuperseded is returned regardless of what fn
// produced. commit, when non-nil, runs while the call is still known to be
// the latest, so no superseded result can ever be committed.
func Latest[T any](c *Coordinator, ctx context.Context, key string, fn func(context.Context) (T, error), commit func(T)) (T, error) {
	var zero T
	callCtx, seq, release := c.begin(ctx, key)
	defer release()

	v, err := fn(callCtx)

	c.mu.Lock()
	stillLatest := c.current(key, seq)
	if stillLatest && err == nil && commit != nil {
		commit(v)
	}
	c.mu.Unlock()

	if !stillLatest {
		telemetry.Superseded.WithLabelValues(operation(key)).Inc()
		c.logger.Debug().Str("key", key).Msg("call superseded by newer request")
		return zero, apperr.ErrSuperseded
	}
	if err != nil {
		return zero, err
	}
	return v, nil
}

// Shared runs fn once for all concurrent callers of key. A caller whose
// own context ends stops waiting and gets its context error; the shared
// fetch keeps running for the remaining waiters and is cancelled when the
// last one leaves.
func Shared[T any](c *Coordinator, ctx context.Context, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	call := c.join(ctx, key)
	defer c.leave(key, call)

	ch := c.flight.DoChan(key, func() (interface{}, error) {
		return fn(call.ctx)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	}
}

func (c *Coordinator) join(ctx context.Context, key string) *sharedCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.shared[key]
	if !ok {
		fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		if c.timeout > 0 {
			var cancelTimeout context.CancelFunc
			fetchCtx, cancelTimeout = context.WithTimeout(fetchCtx, c.timeout)
			inner := cancel
			cancel = func() { cancelTimeout(); inner() }
		}
		call = &sharedCall{ctx: fetchCtx, cancel: cancel}
		c.shared[key] = call
	}
	call.waiters++
	return call
}

// leave drops one waiter. The last one cancels the fetch and forgets the
// key so a later caller starts afresh instead of joining a cancelled fetch.
func (c *Coordinator) leave(key string, call *sharedCall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call.waiters--
	if call.waiters > 0 {
		return
	}
	call.cancel()
	if c.shared[key] == call {
		delete(c.shared, key)
		c.flight.Forget(key)
	}
}

// Forget drops any shared in-flight result for key so the next Shared
// call starts a fresh fetch.
func (c *Coordinator) Forget(key string) {
	c.flight.Forget(key)
}

// operation returns the key prefix before the first ':' for metric labels.
func operation(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}
