package referral

import (
	"context"
	"sync"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
)

type detailKey struct {
	groupBy  string
	groupKey string
}

type detailEntry struct {
	done   chan struct{}
	cancel context.CancelFunc
	// superseded is set, under detailCache.mu, when the fingerprint changed
	// while the entry was still being computed.
	superseded bool
	rows       []FacilityDetail
	err        error
}

// detailCache memoizes drill-down results per (groupBy, groupKey). All
// entries belong to one parameter fingerprint. A request carrying a
// different fingerprint discards them and cancels the ones still being
// computed; their callers get apperr.ErrSuperseded. A request for a key
// that is already being computed waits for that computation, while
// different keys are computed independently.
type detailCache struct {
	mu          sync.Mutex
	fingerprint string
	entries     map[detailKey]*detailEntry
}

func newDetailCache() *detailCache {
	return &detailCache{entries: make(map[detailKey]*detailEntry)}
}

// do returns the cached rows for key or computes them with fetch.
func (c *detailCache) do(ctx context.Context, fingerprint string, key detailKey, fetch func(context.Context) ([]FacilityDetail, error)) ([]FacilityDetail, bool, error) {
	for {
		c.mu.Lock()
		if fingerprint != c.fingerprint {
			c.resetLocked(fingerprint)
		}
		if e, ok := c.entries[key]; ok {
			c.mu.Unlock()
			select {
			case <-e.done:
			case <-ctx.Done():
				return nil, false, ctx.Err()
			}
			switch {
			case e.err == nil:
				return e.rows, true, nil
			case apperr.IsSuperseded(e.err):
				return nil, false, e.err
			case isContextErr(e.err):
				// The owner gave up; compute under our own context.
				continue
			}
			return nil, false, e.err
		}

		fetchCtx, cancel := context.WithCancel(ctx)
		e := &detailEntry{done: make(chan struct{}), cancel: cancel}
		c.entries[key] = e
		c.mu.Unlock()

		rows, err := fetch(fetchCtx)
		cancel()

		c.mu.Lock()
		if e.superseded {
			rows, err = nil, apperr.ErrSuperseded
		} else if err != nil && c.entries[key] == e {
			delete(c.entries, key)
		}
		e.rows, e.err = rows, err
		c.mu.Unlock()
		close(e.done)
		return rows, false, err
	}
}

// resetLocked switches the cache to fingerprint, cancelling computations
// that belong to the previous one. The caller must hold c.mu.
func (c *detailCache) resetLocked(fingerprint string) {
	for _, e := range c.entries {
		select {
		case <-e.done:
		default:
			e.superseded = true
			e.cancel()
		}
	}
	c.fingerprint = fingerprint
	c.entries = make(map[detailKey]*detailEntry)
}

func (c *detailCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
