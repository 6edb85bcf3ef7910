package referral

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/geo"
)

// PathwayEvent links one inbound admission to one earlier outbound
// encounter of the same patient.
type PathwayEvent struct {
	InboundNPI    string
	AdmissionDate time.Time
	OutboundNPI   string
	FacilityID    string
	FacilityName  string
	ReferralDate  time.Time
	Charges       decimal.Decimal
	// Attributes holds the outbound facility's grouping fields.
	Attributes map[string]string
	Location   *geo.Coordinate
}

// groupValue returns the event's value for a grouping field.
func (e PathwayEvent) groupValue(field string) string {
	if field == "facility" {
		if e.FacilityID != "" {
			return e.FacilityID
		}
		return e.OutboundNPI
	}
	return e.Attributes[field]
}

// EventSource loads pathway events for admissions to inboundNPI between
// from and to inclusive.
type EventSource interface {
	Events(ctx context.Context, inboundNPI string, from, to time.Time) ([]PathwayEvent, error)
	MaxAdmissionDate(ctx context.Context) (time.Time, error)
}

// EventAggregator answers referral queries from raw pathway events,
// applying the lead-time window, filters and grouping itself.
type EventAggregator struct {
	events EventSource
}

var _ Source = (*EventAggregator)(nil)

func NewEventAggregator(events EventSource) *EventAggregator {
	return &EventAggregator{events: events}
}

func (a *EventAggregator) Metadata(ctx context.Context) (Metadata, error) {
	t, err := a.events.MaxAdmissionDate(ctx)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{MaxDate: t.Format(dateLayout)}, nil
}

// qualifying returns the events inside the lead-time window that match
// every filter, in source order.
func (a *EventAggregator) qualifying(ctx context.Context, p Params) ([]PathwayEvent, error) {
	from, to, err := p.DateRange.Bounds()
	if err != nil {
		return nil, apperr.InvalidInput("referral.events", err.Error())
	}
	events, err := a.events.Events(ctx, p.InboundNPI, from, to)
	if err != nil {
		return nil, err
	}
	out := events[:0:0]
	for _, e := range events {
		if !InLeadWindow(e.ReferralDate, e.AdmissionDate, p.LeadTimeMaxDays) {
			continue
		}
		if !matchesFilters(e, p.Filters) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func matchesFilters(e PathwayEvent, filters map[string][]string) bool {
	for field, allowed := range filters {
		if len(allowed) == 0 {
			continue
		}
		v := e.groupValue(field)
		ok := false
		for _, a := range allowed {
			if a == v {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func (a *EventAggregator) ReferralSources(ctx context.Context, p Params) ([]GroupRow, error) {
	events, err := a.qualifying(ctx, p)
	if err != nil {
		return nil, err
	}

	type acc struct {
		row        GroupRow
		facilities map[string]struct{}
		months     map[string]struct{}
	}
	var order []string
	groups := make(map[string]*acc)
	for _, e := range events {
		key := e.groupValue(p.GroupBy)
		g, ok := groups[key]
		if !ok {
			g = &acc{
				row:        GroupRow{GroupKey: key},
				facilities: make(map[string]struct{}),
				months:     make(map[string]struct{}),
			}
			groups[key] = g
			order = append(order, key)
		}
		g.row.TotalReferrals++
		g.row.TotalCharges = g.row.TotalCharges.Add(e.Charges)
		g.facilities[e.groupValue("facility")] = struct{}{}
		month := e.ReferralDate.Format("2006-01")
		g.months[month] = struct{}{}
		if month > g.row.LatestActivityMonth {
			g.row.LatestActivityMonth = month
		}
	}

	rows := make([]GroupRow, 0, len(order))
	for _, key := range order {
		g := groups[key]
		g.row.UniqueFacilities = len(g.facilities)
		g.row.MonthsActive = len(g.months)
		rows = append(rows, g.row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalReferrals > rows[j].TotalReferrals })
	if p.Limit > 0 && len(rows) > p.Limit {
		rows = rows[:p.Limit]
	}
	return rows, nil
}

func (a *EventAggregator) FacilityDetails(ctx context.Context, p Params, groupKey string, origin *geo.Coordinate) ([]FacilityRow, error) {
	events, err := a.qualifying(ctx, p)
	if err != nil {
		return nil, err
	}

	var order []string
	byNPI := make(map[string]*FacilityRow)
	for _, e := range events {
		if e.groupValue(p.GroupBy) != groupKey {
			continue
		}
		r, ok := byNPI[e.OutboundNPI]
		if !ok {
			r = &FacilityRow{NPI: e.OutboundNPI, CanonicalID: e.FacilityID, Name: e.FacilityName, Location: e.Location}
			byNPI[e.OutboundNPI] = r
			order = append(order, e.OutboundNPI)
		}
		r.Referrals++
		r.Charges = r.Charges.Add(e.Charges)
	}

	rows := make([]FacilityRow, 0, len(order))
	for _, npi := range order {
		r := *byNPI[npi]
		// The warehouse knows every location, so the cap is applied before
		// the result window.
		if p.MaxDistanceMiles > 0 && origin != nil && r.Location != nil {
			if geo.HaversineMiles(*origin, *r.Location) > p.MaxDistanceMiles {
				continue
			}
		}
		rows = append(rows, r)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Referrals > rows[j].Referrals })
	if p.Limit > 0 && len(rows) > p.Limit {
		rows = rows[:p.Limit]
	}
	return rows, nil
}
