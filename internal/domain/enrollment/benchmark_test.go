package enrollment

import (
	"context"
	"math"
	"testing"
)

func localSummary(t *testing.T, month string) Summary {
	t.Helper()
	return Summarize(parseAll(t, row("17031", 2023, month, 1000)), Period{})
}

func TestCompareToBenchmark_PrefersSameMonth(t *testing.T) {
	bench := []RawRow{
		row("", 2023, "Year", 1000000),
		row("", 2023, "March", 10000),
		{"year": float64(2023), "month": "April", "tot_benes": float64(10000), "ma_and_oth_benes": float64(5000)},
	}
	src := &fakeSource{byLevel: map[string][]RawRow{"national:2023": bench}}
	s := newTestService(src)

	out, err := s.CompareToBenchmark(context.Background(), localSummary(t, "April"), BenchmarkLevel{Scope: ScopeNational})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil {
		t.Fatal("expected a comparison")
	}
	if out.Granularity != "monthly" || out.Warning != "" {
		t.Errorf("expected monthly comparison without warning, got %q %q", out.Granularity, out.Warning)
	}
	if out.Benchmark.TotalBenes != 10000 {
		t.Errorf("expected April benchmark only, got total %d", out.Benchmark.TotalBenes)
	}
	if math.Abs(out.Difference[MAAndOther]-10) > 1e-9 {
		t.Errorf("expected +10 points MA difference, got %v", out.Difference[MAAndOther])
	}
}

func TestCompareToBenchmark_FallsBackToAnnualWithWarning(t *testing.T) {
	src := &fakeSource{byLevel: map[string][]RawRow{
		"national:2023": {row("", 2023, "Year", 65000000)},
	}}
	s := newTestService(src)

	out, err := s.CompareToBenchmark(context.Background(), localSummary(t, "June"), BenchmarkLevel{Scope: ScopeNational})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil || out.Granularity != "annual" || out.Warning == "" {
		t.Fatalf("expected annual fallback with warning, got %+v", out)
	}
	if out.Benchmark.TotalBenes != 65000000 {
		t.Errorf("unexpected benchmark total %d", out.Benchmark.TotalBenes)
	}
}

func TestCompareToBenchmark_NilWhenMonthMissing(t *testing.T) {
	src := &fakeSource{byLevel: map[string][]RawRow{
		"state:2023": {row("17", 2023, "January", 100), row("17", 2023, "Year", 1200)},
	}}
	s := newTestService(src)

	out, err := s.CompareToBenchmark(context.Background(), localSummary(t, "August"), BenchmarkLevel{Scope: ScopeState, FIPS: "17"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Errorf("expected nil comparison, got %+v", out)
	}
}

func TestCompareToBenchmark_NilWhenNoRows(t *testing.T) {
	s := newTestService(&fakeSource{byLevel: map[string][]RawRow{}})
	out, err := s.CompareToBenchmark(context.Background(), localSummary(t, "August"), BenchmarkLevel{Scope: ScopeNational})
	if err != nil || out != nil {
		t.Errorf("expected nil, nil; got %+v, %v", out, err)
	}
}
