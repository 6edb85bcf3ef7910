package market

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type fakeSource struct {
	calls int32
	fc    *geojson.FeatureCollection
	err   error
	// block, when set, is called before answering and may wait on ctx.
	block func(ctx context.Context, calls int32) error
}

func (f *fakeSource) CountyBoundaries(ctx context.Context, area Area) (*geojson.FeatureCollection, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.block != nil {
		if err := f.block(ctx, n); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.fc, nil
}

func (f *fakeSource) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

func featureCollection(fips ...interface{}) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, code := range fips {
		f := geojson.NewFeature(orb.Point{-87.6, 41.8})
		f.Properties["county_fips_code"] = code
		fc.Append(f)
	}
	return fc
}

type fakeStore struct {
	mu   sync.Mutex
	sets map[string]CountySet
	puts int
}

func newFakeStore() *fakeStore { return &fakeStore{sets: map[string]CountySet{}} }

func (s *fakeStore) Get(ctx context.Context, key string) (CountySet, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	return set, ok, nil
}

func (s *fakeStore) Put(ctx context.Context, key string, area Area, set CountySet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[key] = set
	s.puts++
	return nil
}
