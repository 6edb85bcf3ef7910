package referral

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/geo"
)

type fakeSource struct {
	md         Metadata
	groups     []GroupRow
	facilities []FacilityRow
	err        error

	sourceCalls int32
	detailCalls int32
	// block, when set, runs before FacilityDetails answers.
	block func(ctx context.Context) error

	mu         sync.Mutex
	lastParams Params
	lastOrigin *geo.Coordinate
}

func (f *fakeSource) Metadata(ctx context.Context) (Metadata, error) {
	return f.md, f.err
}

func (f *fakeSource) ReferralSources(ctx context.Context, p Params) ([]GroupRow, error) {
	atomic.AddInt32(&f.sourceCalls, 1)
	f.mu.Lock()
	f.lastParams = p
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.groups, nil
}

func (f *fakeSource) FacilityDetails(ctx context.Context, p Params, groupKey string, origin *geo.Coordinate) ([]FacilityRow, error) {
	atomic.AddInt32(&f.detailCalls, 1)
	f.mu.Lock()
	f.lastParams = p
	f.lastOrigin = origin
	f.mu.Unlock()
	if f.block != nil {
		if err := f.block(ctx); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	// Callers mutate rows during enrichment.
	return append([]FacilityRow(nil), f.facilities...), nil
}

func (f *fakeSource) DetailCalls() int { return int(atomic.LoadInt32(&f.detailCalls)) }

type fakeLocator struct {
	mu     sync.Mutex
	coords map[string]geo.Coordinate
	errs   map[string]error
	calls  int
}

func (l *fakeLocator) Locate(ctx context.Context, npi string) (*geo.Coordinate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if err, ok := l.errs[npi]; ok {
		return nil, err
	}
	c, ok := l.coords[npi]
	if !ok {
		return nil, apperr.Empty(opLocate, "unknown "+npi)
	}
	return &c, nil
}

func (l *fakeLocator) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func coord(lat, lon float64) *geo.Coordinate { return &geo.Coordinate{Lat: lat, Lon: lon} }

func facilityRow(npi, id string, referrals int64, charges string, loc *geo.Coordinate) FacilityRow {
	return FacilityRow{
		NPI:         npi,
		CanonicalID: id,
		Name:        "Facility " + id,
		Referrals:   referrals,
		Charges:     decimal.RequireFromString(charges),
		Location:    loc,
	}
}

func baseParams() Params {
	return Params{
		InboundNPI:       "1003000126",
		DateRange:        DateRange{From: "2024-01-01", To: "2024-12-31"},
		GroupBy:          "facility",
		LeadTimeMaxDays:  30,
		MaxDistanceMiles: 50,
	}
}

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}
