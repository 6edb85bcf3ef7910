package enrollment

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/domain/market"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
)

func planRow(org, contract, plan, fips, date string, enrolled interface{}) RawRow {
	return RawRow{
		"parent_org":   org,
		"contract_id":  contract,
		"plan_id":      plan,
		"fips":         fips,
		"publish_date": date,
		"enrollment":   enrolled,
	}
}

func TestSummarizeParentOrgs(t *testing.T) {
	s := newTestService(&fakeSource{})
	rows := s.parsePlanRows([]RawRow{
		planRow("Humana Inc.", "H1036", "001", "17031", "2024-03-01", float64(300)),
		planRow("Humana Inc.", "H1036", "002", "17043", "2024-03-01", float64(100)),
		planRow("UnitedHealth Group, Inc.", "H2406", "001", "17031", "2024-03-01", float64(400)),
		planRow("Aetna Inc.", "H5521", "001", "17031", "2024-03-01", "*"),
		planRow("", "H0000", "001", "17031", "2024-03-01", float64(50)),
	}, "2024-03-01")

	shares := SummarizeParentOrgs(rows)
	if len(shares) != 3 {
		t.Fatalf("expected 3 orgs, got %+v", shares)
	}
	// Humana and UnitedHealth tie at 400; ties rank by name.
	if shares[0].ParentOrg != "Humana Inc." || shares[1].ParentOrg != "UnitedHealth Group, Inc." {
		t.Errorf("unexpected ranking %+v", shares)
	}
	if shares[0].Plans != 2 || shares[0].Counties != 2 {
		t.Errorf("unexpected humana detail %+v", shares[0])
	}
	if math.Abs(shares[0].SharePct-50) > 1e-9 || shares[2].SharePct != 0 {
		t.Errorf("unexpected shares %+v", shares)
	}
}

func TestPlanEnrollment_NormalizesQuery(t *testing.T) {
	src := &fakeSource{plans: []RawRow{planRow("Humana Inc.", "H1036", "001", "17031", "", float64(10))}}
	s := newTestService(src)

	rows, err := s.PlanEnrollment(context.Background(), market.NewCountySet("17031"), "2024-03", PlanMA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.lastPlan.PublishDate != "2024-03-01" || src.lastPlan.Type != PlanMA {
		t.Errorf("unexpected query %+v", src.lastPlan)
	}
	if len(rows) != 1 || rows[0].PublishDate != "2024-03-01" {
		t.Errorf("expected default publish date on rows, got %+v", rows)
	}

	if _, err := s.PlanEnrollment(context.Background(), market.NewCountySet("17031"), "March", PlanMA); !errors.Is(err, apperr.Invalid) {
		t.Errorf("expected invalid publish date, got %v", err)
	}
}

func TestPlanEnrollmentTrend(t *testing.T) {
	src := &fakeSource{trend: []RawRow{
		planRow("Humana Inc.", "H1036", "001", "17031", "2024-02-01", float64(20)),
		planRow("Humana Inc.", "H1036", "001", "17031", "2024-01-01", float64(10)),
		planRow("Aetna Inc.", "H5521", "001", "17031", "2024-01-01", float64(5)),
	}}
	s := newTestService(src)

	points, err := s.PlanEnrollmentTrend(context.Background(), market.NewCountySet("17031"), "2024-01", "2024-02", PlanMA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 || points[0].PublishDate != "2024-01-01" || points[0].Total != 15 {
		t.Errorf("unexpected trend %+v", points)
	}
	if points[1].ByParentOrg["Humana Inc."] != 20 {
		t.Errorf("unexpected per-org totals %+v", points[1])
	}

	if _, err := s.PlanEnrollmentTrend(context.Background(), market.NewCountySet("17031"), "2024-02", "2024-01", PlanMA); !errors.Is(err, apperr.Invalid) {
		t.Errorf("expected invalid range, got %v", err)
	}
}

func TestNationwideParentOrg(t *testing.T) {
	src := &fakeSource{national: []RawRow{
		planRow("Humana Inc.", "H1036", "001", "", "", float64(100)),
		planRow("Humana Inc.", "H1036", "002", "", "", float64(50)),
		planRow("Humana Inc.", "H0028", "001", "", "", float64(500)),
	}}
	s := newTestService(src)

	out, err := s.NationwideParentOrg(context.Background(), "Humana Inc.", "2024-03-01", PlanMA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Total != 650 || len(out.Contracts) != 2 || out.Contracts[0].ContractID != "H0028" || out.Contracts[1].Enrollment != 150 {
		t.Errorf("unexpected summary %+v", out)
	}

	empty := newTestService(&fakeSource{})
	if _, err := empty.NationwideParentOrg(context.Background(), "Nobody", "2024-03-01", PlanMA); !errors.Is(err, apperr.EmptyResult) {
		t.Errorf("expected empty result, got %v", err)
	}
}

func TestParsePlanType(t *testing.T) {
	if pt, err := ParsePlanType("pdp"); err != nil || pt != PlanPDP {
		t.Errorf("unexpected %v %v", pt, err)
	}
	if pt, err := ParsePlanType(""); err != nil || pt != PlanMA {
		t.Errorf("unexpected %v %v", pt, err)
	}
	if _, err := ParsePlanType("HMO"); err == nil {
		t.Error("expected error")
	}
}
