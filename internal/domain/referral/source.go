package referral

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/dataservice"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/geo"
)

// Source answers referral pathway queries.
type Source interface {
	Metadata(ctx context.Context) (Metadata, error)
	ReferralSources(ctx context.Context, p Params) ([]GroupRow, error)
	// FacilityDetails returns one row per outbound NPI in group groupKey.
	// origin, when known, lets a capable backend apply p.MaxDistanceMiles
	// before truncating to p.Limit.
	FacilityDetails(ctx context.Context, p Params, groupKey string, origin *geo.Coordinate) ([]FacilityRow, error)
}

// HTTPSource queries the data service.
type HTTPSource struct {
	client *dataservice.Client
}

func NewHTTPSource(client *dataservice.Client) *HTTPSource {
	return &HTTPSource{client: client}
}

func (s *HTTPSource) Metadata(ctx context.Context) (Metadata, error) {
	var w struct {
		MaxDate dataservice.String `json:"maxDate"`
	}
	if err := s.client.Get(ctx, "referral-pathways/metadata", nil, &w); err != nil {
		return Metadata{}, err
	}
	return Metadata{MaxDate: normalizeDate(string(w.MaxDate))}, nil
}

type sourcesRequest struct {
	InboundNPI      string              `json:"inboundNPI"`
	DateFrom        string              `json:"dateFrom"`
	DateTo          string              `json:"dateTo"`
	GroupByField    string              `json:"groupByField"`
	LeadUpPeriodMax int                 `json:"leadUpPeriodMax"`
	Filters         map[string][]string `json:"filters,omitempty"`
	Limit           int                 `json:"limit,omitempty"`
}

type wireGroupRow struct {
	GroupKey            dataservice.String  `json:"group_key"`
	UniqueFacilities    dataservice.Int     `json:"unique_facilities"`
	TotalReferrals      dataservice.Int     `json:"total_referrals"`
	TotalCharges        decimal.NullDecimal `json:"total_charges"`
	MonthsActive        dataservice.Int     `json:"months_active"`
	LatestActivityMonth dataservice.String  `json:"latest_activity_month"`
}

func (s *HTTPSource) ReferralSources(ctx context.Context, p Params) ([]GroupRow, error) {
	req := sourcesRequest{
		InboundNPI:      p.InboundNPI,
		DateFrom:        p.DateRange.From,
		DateTo:          p.DateRange.To,
		GroupByField:    p.GroupBy,
		LeadUpPeriodMax: p.LeadTimeMaxDays,
		Filters:         p.Filters,
		Limit:           p.Limit,
	}
	var wire []wireGroupRow
	if err := s.client.Post(ctx, "referral-pathways/referral-sources", req, &wire); err != nil {
		return nil, err
	}
	rows := make([]GroupRow, 0, len(wire))
	for _, w := range wire {
		rows = append(rows, GroupRow{
			GroupKey:            string(w.GroupKey),
			UniqueFacilities:    int(w.UniqueFacilities),
			TotalReferrals:      int64(w.TotalReferrals),
			TotalCharges:        w.TotalCharges.Decimal,
			MonthsActive:        int(w.MonthsActive),
			LatestActivityMonth: string(w.LatestActivityMonth),
		})
	}
	return rows, nil
}

type wireFacilityRow struct {
	NPI            dataservice.String  `json:"npi"`
	FacilityID     dataservice.String  `json:"facility_id"`
	FacilityName   dataservice.String  `json:"facility_name"`
	TotalReferrals dataservice.Int     `json:"total_referrals"`
	TotalCharges   decimal.NullDecimal `json:"total_charges"`
	wireLocation
}

func (s *HTTPSource) FacilityDetails(ctx context.Context, p Params, groupKey string, origin *geo.Coordinate) ([]FacilityRow, error) {
	body := map[string]interface{}{
		"inboundNPI":      p.InboundNPI,
		"dateFrom":        p.DateRange.From,
		"dateTo":          p.DateRange.To,
		"leadUpPeriodMax": p.LeadTimeMaxDays,
		"groupByField":    p.GroupBy,
		"groupKey":        groupKey,
	}
	for k, v := range p.Filters {
		body[k] = v
	}
	body[p.GroupBy] = []string{groupKey}
	if p.Limit > 0 {
		body["limit"] = p.Limit
	}
	if p.MaxDistanceMiles > 0 && origin != nil {
		body["maxDistanceMiles"] = p.MaxDistanceMiles
		body["originLat"] = origin.Lat
		body["originLon"] = origin.Lon
	}

	var wire []wireFacilityRow
	if err := s.client.Post(ctx, "referral-pathways/facility-details", body, &wire); err != nil {
		return nil, err
	}
	rows := make([]FacilityRow, 0, len(wire))
	for _, w := range wire {
		r := FacilityRow{
			NPI:         strings.TrimSpace(string(w.NPI)),
			CanonicalID: strings.TrimSpace(string(w.FacilityID)),
			Name:        string(w.FacilityName),
			Referrals:   int64(w.TotalReferrals),
			Charges:     w.TotalCharges.Decimal,
		}
		if c, ok := w.coordinate(); ok {
			r.Location = c
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// normalizeDate trims timestamps like 2024-06-30T00:00:00Z to the day.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		return s[:len(dateLayout)]
	}
	return s
}
