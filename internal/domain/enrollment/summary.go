package enrollment

import "sort"

type recordKey struct {
	fips   string
	period Period
}

// dedupe keeps the first record for each (county, period).
func dedupe(records []Record) []Record {
	seen := make(map[recordKey]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		k := recordKey{fips: r.CountyFIPS, period: r.Period()}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// selectGranularity drops annual rows for every year that has at least one
// monthly row, so monthly and annual figures are never summed together.
// Years with only annual rows keep them.
func selectGranularity(records []Record) []Record {
	monthly := make(map[int]bool)
	for _, r := range records {
		if !r.Annual() {
			monthly[r.Year] = true
		}
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Annual() && monthly[r.Year] {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Percent returns 100*part/total, 0 when total is 0, clamped to [0, 100].
func Percent(part, total int64) float64 {
	if total <= 0 || part <= 0 {
		return 0
	}
	p := 100 * float64(part) / float64(total)
	if p > 100 {
		// Suppressed or late-corrected cells can exceed the total.
		return 100
	}
	return p
}

func percentages(counts map[Category]int64, total int64) map[Category]float64 {
	out := make(map[Category]float64, len(Categories))
	for _, c := range Categories {
		out[c] = Percent(counts[c], total)
	}
	return out
}

// LatestPeriod returns the most recent period present in records.
func LatestPeriod(records []Record) Period {
	var latest Period
	for _, r := range records {
		if p := r.Period(); latest.IsZero() || latest.Before(p) {
			latest = p
		}
	}
	return latest
}

// Summarize totals records for target across all counties. A zero target
// selects the latest period present, where a year's annual rollup only
// counts when that year has no monthly rows.
func Summarize(records []Record, target Period) Summary {
	records = dedupe(records)
	if target.IsZero() {
		target = LatestPeriod(selectGranularity(records))
	}
	s := Summary{
		Period:      target,
		Granularity: granularity(target),
		Counts:      make(map[Category]int64, len(Categories)),
	}
	counties := make(map[string]struct{})
	for _, r := range records {
		if r.Period() != target {
			continue
		}
		counties[r.CountyFIPS] = struct{}{}
		s.TotalBenes += r.TotalBenes
		for _, c := range Categories {
			s.Counts[c] += r.Counts[c]
		}
	}
	s.Counties = len(counties)
	s.Percentages = percentages(s.Counts, s.TotalBenes)
	return s
}

// BuildMonthlyTrend returns one point per period in ascending order.
func BuildMonthlyTrend(records []Record) []TrendPoint {
	records = selectGranularity(dedupe(records))

	byPeriod := make(map[Period]*TrendPoint)
	for _, r := range records {
		p := r.Period()
		pt, ok := byPeriod[p]
		if !ok {
			pt = &TrendPoint{Period: p, Label: p.String(), Counts: make(map[Category]int64, len(Categories))}
			byPeriod[p] = pt
		}
		pt.TotalBenes += r.TotalBenes
		for _, c := range Categories {
			pt.Counts[c] += r.Counts[c]
		}
	}

	points := make([]TrendPoint, 0, len(byPeriod))
	for _, pt := range byPeriod {
		pt.Percentages = percentages(pt.Counts, pt.TotalBenes)
		points = append(points, *pt)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period.Before(points[j].Period) })
	return points
}

func granularity(p Period) string {
	if p.Annual() {
		return "annual"
	}
	return "monthly"
}
