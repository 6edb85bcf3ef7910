package enrollment

import (
	"context"
	"errors"
	"fmt"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
)

// CompareToBenchmark summarizes level for the period of local and pairs it
// with local. Monthly benchmark rows for the same month are always
// preferred. When the level publishes no monthly rows for that year, its
// annual row is used instead and the result carries a warning. It returns
// nil when the benchmark has no data for the requested month.
func (s *Service) CompareToBenchmark(ctx context.Context, local Summary, level BenchmarkLevel) (*BenchmarkSummary, error) {
	if local.Period.IsZero() {
		return nil, apperr.InvalidInput(opBenchmark, "local summary has no period")
	}
	records, _, err := s.benchmarkRecords(ctx, level, local.Period.Year)
	if err != nil {
		if errors.Is(err, apperr.EmptyResult) {
			return nil, nil
		}
		return nil, err
	}

	target, warning, ok := benchmarkPeriod(records, local.Period)
	if !ok {
		return nil, nil
	}
	if warning != "" {
		s.logger.Warn().Str("scope", string(level.Scope)).Str("period", local.Period.String()).Msg(warning)
	}

	bench := Summarize(records, target)
	out := &BenchmarkSummary{
		Level:       level,
		Local:       local,
		Benchmark:   bench,
		Difference:  make(map[Category]float64, len(Categories)),
		Granularity: bench.Granularity,
		Warning:     warning,
	}
	for _, c := range Categories {
		out.Difference[c] = local.Percentages[c] - bench.Percentages[c]
	}
	return out, nil
}

// benchmarkPeriod picks the benchmark period matching want. For a monthly
// want it is the same month if the year has monthly rows, or the annual
// row if the year has none. For an annual want it is the annual row, or
// the latest month of the year when only monthly rows exist.
func benchmarkPeriod(records []Record, want Period) (Period, string, bool) {
	var hasAnnual, hasMonthly, hasWanted bool
	var latestMonth Period
	for _, r := range records {
		p := r.Period()
		if p.Year != want.Year {
			continue
		}
		if r.Annual() {
			hasAnnual = true
			continue
		}
		hasMonthly = true
		if p == want {
			hasWanted = true
		}
		if latestMonth.IsZero() || latestMonth.Before(p) {
			latestMonth = p
		}
	}

	if !want.Annual() {
		switch {
		case hasWanted:
			return want, "", true
		case !hasMonthly && hasAnnual:
			return Period{Year: want.Year},
				fmt.Sprintf("benchmark has no monthly data for %d; compared against the annual rollup", want.Year), true
		}
		return Period{}, "", false
	}

	switch {
	case hasAnnual:
		return want, "", true
	case hasMonthly:
		return latestMonth,
			fmt.Sprintf("benchmark has no annual rollup for %d; compared against %s", want.Year, latestMonth), true
	}
	return Period{}, "", false
}
