// Package referral analyzes inbound referral pathways to a facility:
// which upstream groups send patients within a lead-time window, and the
// facilities behind each group ranked by distance.
package referral

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/coordinator"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/geo"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/telemetry"
)

const (
	opSources   = "referral.sources"
	opDrillDown = "referral.drilldown"
	opMetadata  = "referral.metadata"

	defaultSourceLimit = 100
)

var requestValidate = validator.New()

func init() {
	_ = requestValidate.RegisterValidation("groupfield", func(fl validator.FieldLevel) bool {
		return isGroupField(fl.Field().String())
	})
}

func isEmpty(err error) bool { return errors.Is(err, apperr.EmptyResult) }

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLocator enables coordinate enrichment for drill-downs.
func WithLocator(l Locator) ServiceOption {
	return func(s *Service) { s.locator = l }
}

// WithEnrichConcurrency bounds parallel location lookups.
func WithEnrichConcurrency(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.enrichConcurrency = n
		}
	}
}

// WithDefaultLimit sets the row limit used when a request has none.
func WithDefaultLimit(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

type Service struct {
	src               Source
	locator           Locator
	coord             *coordinator.Coordinator
	caches            *expirable.LRU[string, *detailCache]
	enrichConcurrency int
	defaultLimit      int
	logger            zerolog.Logger
}

func NewService(src Source, coord *coordinator.Coordinator, opts ...ServiceOption) *Service {
	s := &Service{
		src:               src,
		coord:             coord,
		caches:            expirable.NewLRU[string, *detailCache](256, nil, 30*time.Minute),
		enrichConcurrency: 8,
		defaultLimit:      defaultSourceLimit,
		logger:            zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Metadata returns the warehouse's latest admission date.
func (s *Service) Metadata(ctx context.Context) (Metadata, error) {
	return coordinator.Shared(s.coord, ctx, "referral-metadata", s.src.Metadata)
}

// prepare validates p and fills in the default date range and limit.
func (s *Service) prepare(ctx context.Context, op string, p Params) (Params, error) {
	if err := requestValidate.Struct(p); err != nil {
		return p, apperr.FromValidation(op, err)
	}
	if p.DateRange.IsZero() {
		md, err := s.Metadata(ctx)
		if err != nil {
			return p, err
		}
		end, err := time.Parse(dateLayout, md.MaxDate)
		if err != nil {
			return p, apperr.Upstream(opMetadata, 0, "invalid max date "+md.MaxDate)
		}
		p.DateRange = TrailingYear(end)
	}
	if _, _, err := p.DateRange.Bounds(); err != nil {
		return p, apperr.InvalidInput(op, err.Error())
	}
	if p.Limit == 0 {
		p.Limit = s.defaultLimit
	}
	return p, nil
}

// AnalyzeSources ranks referral source groups by total referrals. Equal
// totals keep the order the source returned them in. With a scope, a newer
// call for the same scope supersedes this one.
func (s *Service) AnalyzeSources(ctx context.Context, scope string, p Params) ([]GroupRow, error) {
	p, err := s.prepare(ctx, opSources, p)
	if err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context) ([]GroupRow, error) {
		rows, err := s.src.ReferralSources(ctx, p)
		if err != nil {
			return nil, err
		}
		out := append([]GroupRow(nil), rows...)
		sort.SliceStable(out, func(i, j int) bool { return out[i].TotalReferrals > out[j].TotalReferrals })
		return out, nil
	}
	if scope == "" {
		return coordinator.Shared(s.coord, ctx, "referral-sources:"+p.GroupBy+"|"+p.fingerprint(), fetch)
	}
	return coordinator.Latest(s.coord, ctx, "referral-sources:"+scope, fetch, nil)
}

// DrillDown lists the facilities behind one group, merged by canonical
// facility id, filtered by distance from the inbound facility and sorted
// nearest first. Results are cached per scope until a parameter that
// changes which rows qualify is altered; such a change also supersedes the
// scope's drill-downs still in flight. Different groups of one scope are
// fetched concurrently, and a repeated request for a group being fetched
// waits for that fetch.
func (s *Service) DrillDown(ctx context.Context, scope string, p Params, groupKey string) ([]FacilityDetail, error) {
	p, err := s.prepare(ctx, opDrillDown, p)
	if err != nil {
		return nil, err
	}
	if groupKey == "" {
		return nil, apperr.InvalidInput(opDrillDown, "group key is required")
	}

	cache := s.detailCache(scope)
	rows, cached, err := cache.do(ctx, p.fingerprint(), detailKey{groupBy: p.GroupBy, groupKey: groupKey}, func(ctx context.Context) ([]FacilityDetail, error) {
		return s.drillDown(ctx, p, groupKey)
	})
	switch {
	case cached:
		s.logger.Debug().Str("group", groupKey).Msg("drill-down served from cache")
	case apperr.IsSuperseded(err):
		telemetry.Superseded.WithLabelValues("referral-drilldown").Inc()
		s.logger.Debug().Str("group", groupKey).Msg("drill-down superseded by changed parameters")
	}
	return rows, err
}

func (s *Service) detailCache(scope string) *detailCache {
	// Peek-then-add races are harmless: the loser's cache is simply unused.
	if c, ok := s.caches.Get(scope); ok {
		return c
	}
	c := newDetailCache()
	s.caches.Add(scope, c)
	return c
}

func (s *Service) drillDown(ctx context.Context, p Params, groupKey string) ([]FacilityDetail, error) {
	origin := s.locate(ctx, p.InboundNPI)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.src.FacilityDetails(ctx, p, groupKey, origin)
	if err != nil {
		return nil, err
	}
	if err := s.enrich(ctx, rows); err != nil {
		return nil, err
	}

	details := MergeFacilities(rows, p.DateRange.Months())
	return FilterAndSort(details, origin, p.MaxDistanceMiles), nil
}

// locate returns nil when the facility has no known coordinates or the
// lookup fails.
func (s *Service) locate(ctx context.Context, npi string) *geo.Coordinate {
	if s.locator == nil {
		return nil
	}
	c, err := s.locator.Locate(ctx, npi)
	if err != nil {
		if !isEmpty(err) && !isContextErr(err) {
			telemetry.EnrichmentFailures.WithLabelValues("facility_location").Inc()
			s.logger.Warn().Err(err).Str("npi", npi).Msg("facility location lookup failed")
		}
		return nil
	}
	return c
}

// enrich fills missing row locations in place.
func (s *Service) enrich(ctx context.Context, rows []FacilityRow) error {
	if s.locator == nil {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.enrichConcurrency)
	for i := range rows {
		if rows[i].Location != nil || rows[i].NPI == "" {
			continue
		}
		i := i
		g.Go(func() error {
			rows[i].Location = s.locate(gctx, rows[i].NPI)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// MergeFacilities folds rows sharing a canonical facility id into one
// detail, summing referrals and charges. Rows without a canonical id are
// keyed by NPI. months is the analysis window length used for the monthly
// average. Output follows first appearance.
func MergeFacilities(rows []FacilityRow, months int) []FacilityDetail {
	if months < 1 {
		months = 1
	}
	var order []string
	byID := make(map[string]*FacilityDetail)
	seenNPI := make(map[string]map[string]bool)
	for _, r := range rows {
		id := r.CanonicalID
		if id == "" {
			id = r.NPI
		}
		d, ok := byID[id]
		if !ok {
			d = &FacilityDetail{CanonicalID: id, TotalCharges: decimal.Zero}
			byID[id] = d
			seenNPI[id] = make(map[string]bool)
			order = append(order, id)
		}
		if d.Name == "" {
			d.Name = r.Name
		}
		if d.Location == nil && r.Location != nil {
			loc := *r.Location
			d.Location = &loc
		}
		d.TotalReferrals += r.Referrals
		d.TotalCharges = d.TotalCharges.Add(r.Charges)
		if r.NPI != "" && !seenNPI[id][r.NPI] {
			seenNPI[id][r.NPI] = true
			d.NPIs = append(d.NPIs, r.NPI)
		}
	}

	out := make([]FacilityDetail, 0, len(order))
	for _, id := range order {
		d := byID[id]
		sort.Strings(d.NPIs)
		d.AvgMonthlyReferrals = float64(d.TotalReferrals) / float64(months)
		out = append(out, *d)
	}
	return out
}

// FilterAndSort computes each detail's distance from origin, drops those
// farther than maxMiles (a non-positive cap disables the filter; details
// with no distance always stay) and orders the rest nearest first, then by
// referrals descending, then by canonical id.
func FilterAndSort(details []FacilityDetail, origin *geo.Coordinate, maxMiles float64) []FacilityDetail {
	out := make([]FacilityDetail, 0, len(details))
	for _, d := range details {
		d.Distance = nil
		if miles, ok := geo.DistanceMiles(origin, d.Location); ok {
			m := miles
			d.Distance = &m
		}
		if maxMiles > 0 && d.Distance != nil && *d.Distance > maxMiles {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Distance != nil && b.Distance == nil:
			return true
		case a.Distance == nil && b.Distance != nil:
			return false
		case a.Distance != nil && *a.Distance != *b.Distance:
			return *a.Distance < *b.Distance
		}
		if a.TotalReferrals != b.TotalReferrals {
			return a.TotalReferrals > b.TotalReferrals
		}
		return a.CanonicalID < b.CanonicalID
	})
	return out
}
