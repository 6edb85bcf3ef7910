package enrollment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

type fakeSource struct {
	mu        sync.Mutex
	years     []int
	byYear    map[int][]RawRow
	byLevel   map[string][]RawRow
	plans     []RawRow
	trend     []RawRow
	national  []RawRow
	err       error
	yearCalls int32
	lastPlan  PlanQuery
}

func (f *fakeSource) Years(ctx context.Context) ([]int, error) {
	atomic.AddInt32(&f.yearCalls, 1)
	return f.years, f.err
}

func (f *fakeSource) Enrollment(ctx context.Context, fips []string, year int) ([]RawRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byYear[year], nil
}

func (f *fakeSource) EnrollmentByLevel(ctx context.Context, level BenchmarkLevel, year int) ([]RawRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byLevel[fmt.Sprintf("%s:%d", level.Scope, year)], nil
}

func (f *fakeSource) PlanEnrollment(ctx context.Context, q PlanQuery) ([]RawRow, error) {
	f.mu.Lock()
	f.lastPlan = q
	f.mu.Unlock()
	return f.plans, f.err
}

func (f *fakeSource) PlanEnrollmentTrend(ctx context.Context, q PlanTrendQuery) ([]RawRow, error) {
	return f.trend, f.err
}

func (f *fakeSource) NationwideParentOrg(ctx context.Context, q NationwideQuery) ([]RawRow, error) {
	return f.national, f.err
}

// row builds a raw enrollment row with a 60/40 MA/original split.
func row(fips string, year int, month string, total int64) RawRow {
	ma := total * 6 / 10
	return RawRow{
		"bene_fips_cd":     fips,
		"year":             float64(year),
		"month":            month,
		"tot_benes":        float64(total),
		"ma_and_oth_benes": float64(ma),
		"orgnl_mdcr_benes": float64(total - ma),
		"male_tot_benes":   float64(total / 2),
		"female_tot_benes": float64(total - total/2),
	}
}

var monthNames = []string{"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December"}
