// Package market resolves a circular market area into the set of counties
// it touches.
package market

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/coordinator"
)

const opResolve = "market.resolve"

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStore adds a persistent second-level store behind the memory cache.
func WithStore(s Store) ResolverOption {
	return func(r *Resolver) { r.store = s }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// Resolver turns market areas into county sets.
type Resolver struct {
	source BoundarySource
	cache  *Cache
	store  Store
	coord  *coordinator.Coordinator
	logger zerolog.Logger
}

func NewResolver(source BoundarySource, cache *Cache, coord *coordinator.Coordinator, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source: source,
		cache:  cache,
		coord:  coord,
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the counties for area. Concurrent calls for the same
// area share one lookup.
func (r *Resolver) Resolve(ctx context.Context, area Area) (CountySet, error) {
	return r.ResolveScoped(ctx, "", area)
}

// ResolveScoped resolves area on behalf of a logical market. A newer call
// with the same scope cancels an older one still in flight, even when the
// newer one is answered from the cache, and only the newest call populates
// the cache; the older caller gets apperr.ErrSuperseded. An empty scope falls back to the area key, in
// which case concurrent identical calls share a single lookup.
func (r *Resolver) ResolveScoped(ctx context.Context, scope string, area Area) (CountySet, error) {
	if err := area.Validate(); err != nil {
		return CountySet{}, apperr.InvalidInput(opResolve, err.Error())
	}
	key := area.Key()
	if set, ok := r.cache.Get(key); ok {
		// A cached answer is still the newest answer for the scope.
		if scope != "" && r.coord.Supersede("market:"+scope) {
			r.logger.Debug().Str("scope", scope).Msg("in-flight resolution superseded by cached area")
		}
		r.logger.Debug().Str("area", key).Msg("county set served from cache")
		return set, nil
	}

	fetch := func(ctx context.Context) (resolution, error) {
		return r.lookup(ctx, key, area)
	}

	var res resolution
	var err error
	if scope == "" {
		res, err = coordinator.Shared(r.coord, ctx, "market:"+key, fetch)
		if err == nil {
			r.cache.Add(key, res.set)
		}
	} else {
		res, err = coordinator.Latest(r.coord, ctx, "market:"+scope, fetch, func(res resolution) {
			r.cache.Add(key, res.set)
		})
	}
	if err != nil {
		return CountySet{}, err
	}

	if r.store != nil && !res.fromStore {
		if err := r.store.Put(ctx, key, area, res.set); err != nil {
			r.logger.Warn().Err(err).Str("area", key).Msg("county set not persisted")
		}
	}
	return res.set, nil
}

type resolution struct {
	set       CountySet
	fromStore bool
}

func (r *Resolver) lookup(ctx context.Context, key string, area Area) (resolution, error) {
	if r.store != nil {
		set, ok, err := r.store.Get(ctx, key)
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return resolution{}, err
			}
			r.logger.Warn().Err(err).Str("area", key).Msg("county set store unavailable")
		case ok && set.Len() > 0:
			return resolution{set: set, fromStore: true}, nil
		}
	}

	fc, err := r.source.CountyBoundaries(ctx, area)
	if err != nil {
		return resolution{}, err
	}
	if fc == nil || len(fc.Features) == 0 {
		return resolution{}, apperr.Empty(opResolve, "no counties intersect the market area")
	}
	set := countiesFromFeatures(fc)
	if set.Len() == 0 {
		return resolution{}, apperr.Empty(opResolve, "no valid county FIPS codes in boundary response")
	}
	return resolution{set: set}, nil
}
