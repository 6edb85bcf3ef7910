package enrollment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/domain/market"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/telemetry"
)

const opPlans = "enrollment.plans"

// PlanType distinguishes Medicare Advantage from stand-alone Part D plans.
type PlanType string

const (
	PlanMA  PlanType = "MA"
	PlanPDP PlanType = "PDP"
)

// ParsePlanType accepts "ma" or "pdp" in any case; empty means MA.
func ParsePlanType(s string) (PlanType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "MA":
		return PlanMA, nil
	case "PDP":
		return PlanPDP, nil
	}
	return "", fmt.Errorf("plan type must be MA or PDP, got %q", s)
}

// PlanQuery is the body of ma-enrollment.
type PlanQuery struct {
	FIPSList    []string `json:"fipsList"`
	PublishDate string   `json:"publishDate"`
	Type        PlanType `json:"type"`
}

// PlanTrendQuery is the body of ma-enrollment/trend.
type PlanTrendQuery struct {
	FIPSList  []string `json:"fipsList"`
	StartDate string   `json:"startDate"`
	EndDate   string   `json:"endDate"`
	Type      PlanType `json:"type"`
}

// NationwideQuery is the body of ma-enrollment/nationwide.
type NationwideQuery struct {
	ParentOrg   string   `json:"parentOrg"`
	PublishDate string   `json:"publishDate"`
	Type        PlanType `json:"type"`
}

// PlanRow is one plan's enrollment in one county for one publish date.
type PlanRow struct {
	ParentOrg   string `json:"parent_org"`
	ContractID  string `json:"contract_id"`
	PlanID      string `json:"plan_id"`
	PlanName    string `json:"plan_name,omitempty"`
	CountyFIPS  string `json:"county_fips,omitempty"`
	PublishDate string `json:"publish_date"`
	Enrollment  int64  `json:"enrollment"`
}

// ParentOrgShare is a parent organization's share of a market.
type ParentOrgShare struct {
	ParentOrg  string  `json:"parent_org"`
	Enrollment int64   `json:"enrollment"`
	Plans      int     `json:"plans"`
	Counties   int     `json:"counties"`
	SharePct   float64 `json:"share_pct"`
}

// PlanTrendPoint totals one publish date.
type PlanTrendPoint struct {
	PublishDate string           `json:"publish_date"`
	Total       int64            `json:"total"`
	ByParentOrg map[string]int64 `json:"by_parent_org"`
}

// ContractTotal is one contract's nationwide enrollment.
type ContractTotal struct {
	ContractID string `json:"contract_id"`
	PlanName   string `json:"plan_name,omitempty"`
	Enrollment int64  `json:"enrollment"`
}

// NationwideSummary is a parent organization's enrollment across the
// country.
type NationwideSummary struct {
	ParentOrg   string          `json:"parent_org"`
	PublishDate string          `json:"publish_date"`
	Type        PlanType        `json:"type"`
	Total       int64           `json:"total"`
	Contracts   []ContractTotal `json:"contracts"`
}

// normalizePublishDate accepts YYYY-MM or YYYY-MM-DD and returns YYYY-MM-DD.
func normalizePublishDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("publish date must be YYYY-MM or YYYY-MM-DD, got %q", s)
}

// PlanEnrollment returns plan rows for counties at publishDate.
func (s *Service) PlanEnrollment(ctx context.Context, counties market.CountySet, publishDate string, planType PlanType) ([]PlanRow, error) {
	if counties.Len() == 0 {
		return nil, apperr.InvalidInput(opPlans, "at least one county is required")
	}
	date, err := normalizePublishDate(publishDate)
	if err != nil {
		return nil, apperr.InvalidInput(opPlans, err.Error())
	}
	rows, err := s.src.PlanEnrollment(ctx, PlanQuery{FIPSList: counties.Slice(), PublishDate: date, Type: planType})
	if err != nil {
		return nil, err
	}
	return s.parsePlanRows(rows, date), nil
}

// PlanEnrollmentTrend returns per-publish-date totals between start and
// end inclusive, ascending.
func (s *Service) PlanEnrollmentTrend(ctx context.Context, counties market.CountySet, start, end string, planType PlanType) ([]PlanTrendPoint, error) {
	if counties.Len() == 0 {
		return nil, apperr.InvalidInput(opPlans, "at least one county is required")
	}
	from, err := normalizePublishDate(start)
	if err != nil {
		return nil, apperr.InvalidInput(opPlans, err.Error())
	}
	to, err := normalizePublishDate(end)
	if err != nil {
		return nil, apperr.InvalidInput(opPlans, err.Error())
	}
	if to < from {
		return nil, apperr.InvalidInput(opPlans, "end date is before start date")
	}
	rows, err := s.src.PlanEnrollmentTrend(ctx, PlanTrendQuery{FIPSList: counties.Slice(), StartDate: from, EndDate: to, Type: planType})
	if err != nil {
		return nil, err
	}
	return buildPlanTrend(s.parsePlanRows(rows, "")), nil
}

// NationwideParentOrg returns contract-level enrollment for parentOrg.
func (s *Service) NationwideParentOrg(ctx context.Context, parentOrg, publishDate string, planType PlanType) (*NationwideSummary, error) {
	parentOrg = strings.TrimSpace(parentOrg)
	if parentOrg == "" {
		return nil, apperr.InvalidInput(opPlans, "parent organization is required")
	}
	date, err := normalizePublishDate(publishDate)
	if err != nil {
		return nil, apperr.InvalidInput(opPlans, err.Error())
	}
	rows, err := s.src.NationwideParentOrg(ctx, NationwideQuery{ParentOrg: parentOrg, PublishDate: date, Type: planType})
	if err != nil {
		return nil, err
	}
	plans := s.parsePlanRows(rows, date)
	if len(plans) == 0 {
		return nil, apperr.Empty(opPlans, "no enrollment for "+parentOrg)
	}

	byContract := make(map[string]*ContractTotal)
	out := &NationwideSummary{ParentOrg: parentOrg, PublishDate: date, Type: planType}
	for _, p := range plans {
		ct, ok := byContract[p.ContractID]
		if !ok {
			ct = &ContractTotal{ContractID: p.ContractID, PlanName: p.PlanName}
			byContract[p.ContractID] = ct
		}
		ct.Enrollment += p.Enrollment
		out.Total += p.Enrollment
	}
	for _, ct := range byContract {
		out.Contracts = append(out.Contracts, *ct)
	}
	sort.Slice(out.Contracts, func(i, j int) bool {
		a, b := out.Contracts[i], out.Contracts[j]
		if a.Enrollment != b.Enrollment {
			return a.Enrollment > b.Enrollment
		}
		return a.ContractID < b.ContractID
	})
	return out, nil
}

// SummarizeParentOrgs sums enrollment per parent organization and ranks
// organizations by share, largest first, ties by name.
func SummarizeParentOrgs(rows []PlanRow) []ParentOrgShare {
	type acc struct {
		share    ParentOrgShare
		plans    map[string]struct{}
		counties map[string]struct{}
	}
	byOrg := make(map[string]*acc)
	var total int64
	for _, r := range rows {
		a, ok := byOrg[r.ParentOrg]
		if !ok {
			a = &acc{
				share:    ParentOrgShare{ParentOrg: r.ParentOrg},
				plans:    make(map[string]struct{}),
				counties: make(map[string]struct{}),
			}
			byOrg[r.ParentOrg] = a
		}
		a.share.Enrollment += r.Enrollment
		a.plans[r.ContractID+"-"+r.PlanID] = struct{}{}
		if r.CountyFIPS != "" {
			a.counties[r.CountyFIPS] = struct{}{}
		}
		total += r.Enrollment
	}

	out := make([]ParentOrgShare, 0, len(byOrg))
	for _, a := range byOrg {
		a.share.Plans = len(a.plans)
		a.share.Counties = len(a.counties)
		a.share.SharePct = Percent(a.share.Enrollment, total)
		out = append(out, a.share)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Enrollment != out[j].Enrollment {
			return out[i].Enrollment > out[j].Enrollment
		}
		return out[i].ParentOrg < out[j].ParentOrg
	})
	return out
}

func buildPlanTrend(rows []PlanRow) []PlanTrendPoint {
	byDate := make(map[string]*PlanTrendPoint)
	for _, r := range rows {
		pt, ok := byDate[r.PublishDate]
		if !ok {
			pt = &PlanTrendPoint{PublishDate: r.PublishDate, ByParentOrg: make(map[string]int64)}
			byDate[r.PublishDate] = pt
		}
		pt.Total += r.Enrollment
		pt.ByParentOrg[r.ParentOrg] += r.Enrollment
	}
	out := make([]PlanTrendPoint, 0, len(byDate))
	for _, pt := range byDate {
		out = append(out, *pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishDate < out[j].PublishDate })
	return out
}

// parsePlanRows drops rows without a parent organization or publish date.
// defaultDate fills the publish date when rows omit it.
func (s *Service) parsePlanRows(rows []RawRow, defaultDate string) []PlanRow {
	out := make([]PlanRow, 0, len(rows))
	for _, row := range rows {
		p, err := parsePlanRow(row, defaultDate)
		if err != nil {
			telemetry.ParseFailures.WithLabelValues("plan_enrollment").Inc()
			s.logger.Debug().Err(apperr.Parse(opPlans, err)).Msg("plan row dropped")
			continue
		}
		out = append(out, p)
	}
	return out
}

func parsePlanRow(row RawRow, defaultDate string) (PlanRow, error) {
	str := func(field string) string {
		v, ok := row.lookup(field)
		if !ok {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(v))
	}
	p := PlanRow{
		ParentOrg:  str("parent_org"),
		ContractID: str("contract_id"),
		PlanID:     str("plan_id"),
		PlanName:   str("plan_name"),
	}
	if p.ParentOrg == "" {
		return PlanRow{}, fmt.Errorf("row without parent organization")
	}
	if v, ok := row.lookup("fips"); ok {
		if code, ok := market.NormalizeFIPS(v); ok {
			p.CountyFIPS = code
		}
	}
	p.PublishDate = defaultDate
	if d := str("publish_date"); d != "" {
		norm, err := normalizePublishDate(d)
		if err != nil {
			return PlanRow{}, err
		}
		p.PublishDate = norm
	}
	if p.PublishDate == "" {
		return PlanRow{}, fmt.Errorf("row without publish date")
	}
	if v, ok := row.lookup("enrollment"); ok {
		p.Enrollment, _ = count(v)
	}
	return p, nil
}
