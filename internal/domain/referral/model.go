package referral

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/geo"
)

const dateLayout = "2006-01-02"

// GroupFields are the attributes referral sources may be grouped or
// filtered by.
var GroupFields = []string{
	"facility",
	"provider_type",
	"taxonomy_classification",
	"taxonomy_specialization",
	"health_system",
	"city",
	"county",
	"state",
	"cbsa",
}

func isGroupField(name string) bool {
	for _, f := range GroupFields {
		if f == name {
			return true
		}
	}
	return false
}

// DateRange is an inclusive range of calendar days, YYYY-MM-DD.
type DateRange struct {
	From string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

func (r DateRange) IsZero() bool { return r.From == "" && r.To == "" }

// Bounds parses the range.
func (r DateRange) Bounds() (time.Time, time.Time, error) {
	from, err := time.Parse(dateLayout, r.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q", r.From)
	}
	to, err := time.Parse(dateLayout, r.To)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q", r.To)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("date range ends before it starts")
	}
	return from, to, nil
}

// Months counts the calendar months the range touches, at least 1.
func (r DateRange) Months() int {
	from, to, err := r.Bounds()
	if err != nil {
		return 1
	}
	n := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month()) + 1
	if n < 1 {
		return 1
	}
	return n
}

// TrailingYear returns the twelve months ending at end.
func TrailingYear(end time.Time) DateRange {
	start := end.AddDate(0, -12, 1)
	return DateRange{From: start.Format(dateLayout), To: end.Format(dateLayout)}
}

// Params selects a referral pathway analysis.
type Params struct {
	InboundNPI       string              `json:"inbound_npi" validate:"required,len=10,numeric"`
	DateRange        DateRange           `json:"date_range"`
	GroupBy          string              `json:"group_by" validate:"required,groupfield"`
	LeadTimeMaxDays  int                 `json:"lead_time_max_days" validate:"gte=1,lte=90"`
	Filters          map[string][]string `json:"filters,omitempty" validate:"omitempty,dive,keys,groupfield,endkeys,dive,required"`
	Limit            int                 `json:"limit,omitempty" validate:"omitempty,gte=1,lte=1000"`
	MaxDistanceMiles float64             `json:"max_distance_miles,omitempty" validate:"gte=0"`
}

// fingerprint identifies every parameter that changes which facility rows
// qualify for a drill-down.
func (p Params) fingerprint() string {
	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%d|%g|%d", p.InboundNPI, p.DateRange.From, p.DateRange.To, p.LeadTimeMaxDays, p.MaxDistanceMiles, p.Limit)
	for _, k := range keys {
		vals := append([]string(nil), p.Filters[k]...)
		sort.Strings(vals)
		fmt.Fprintf(&b, "|%s=%s", k, strings.Join(vals, ","))
	}
	return b.String()
}

// Metadata describes the referral warehouse.
type Metadata struct {
	MaxDate string `json:"max_date"`
}

// GroupRow is one ranked group of referral sources.
type GroupRow struct {
	GroupKey            string          `json:"group_key"`
	UniqueFacilities    int             `json:"unique_facilities"`
	TotalReferrals      int64           `json:"total_referrals"`
	TotalCharges        decimal.Decimal `json:"total_charges"`
	MonthsActive        int             `json:"months_active"`
	LatestActivityMonth string          `json:"latest_activity_month,omitempty"`
}

// FacilityRow is one raw facility-details row, one per outbound NPI.
type FacilityRow struct {
	NPI         string
	CanonicalID string
	Name        string
	Referrals   int64
	Charges     decimal.Decimal
	Location    *geo.Coordinate
}

// FacilityDetail is a facility after NPIs sharing a canonical id are
// merged.
type FacilityDetail struct {
	CanonicalID         string          `json:"canonical_id"`
	Name                string          `json:"name"`
	NPIs                []string        `json:"npis"`
	Location            *geo.Coordinate `json:"location,omitempty"`
	Distance            *float64        `json:"distance,omitempty"`
	TotalReferrals      int64           `json:"total_referrals"`
	AvgMonthlyReferrals float64         `json:"avg_monthly_referrals"`
	TotalCharges        decimal.Decimal `json:"total_charges"`
}
