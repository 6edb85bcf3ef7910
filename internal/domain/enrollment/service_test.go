package enrollment

import (
	"context"
	"errors"
	"testing"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/domain/market"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/coordinator"
)

func newTestService(src Source) *Service {
	return NewService(src, coordinator.New(), WithConcurrency(2))
}

func TestFetchSeries_MergesYearsAtOrAfterFloor(t *testing.T) {
	src := &fakeSource{
		years: []int{2019, 2020, 2021},
		byYear: map[int][]RawRow{
			2019: {row("17031", 2019, "January", 1)},
			2020: {row("17031", 2020, "Year", 500), row("17031", 2020, "December", 40)},
			2021: {row("17031", 2021, "Year", 600), {"fips": "17031", "year": float64(2021), "month": "Smarch"}},
		},
	}
	s := newTestService(src)

	series, err := s.FetchSeries(context.Background(), "", market.NewCountySet("17031"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series.Years) != 2 || series.Years[0] != 2020 {
		t.Errorf("expected years [2020 2021], got %v", series.Years)
	}
	if series.Dropped != 1 {
		t.Errorf("expected 1 dropped row, got %d", series.Dropped)
	}
	if len(series.Records) != 2 {
		t.Fatalf("expected 2 records, got %+v", series.Records)
	}
	// 2020 has a monthly row, so its annual rollup is dropped; 2021 keeps its
	// annual row as the only data point.
	if series.Records[0].Month != "2020-12" || series.Records[1].Month != AnnualMonth {
		t.Errorf("unexpected granularity selection %+v", series.Records)
	}
}

func TestFetchSeries_RequiresCounties(t *testing.T) {
	s := newTestService(&fakeSource{})
	_, err := s.FetchSeries(context.Background(), "", market.CountySet{}, 0)
	if !errors.Is(err, apperr.Invalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestFetchSeries_NoYearsAfterFloor(t *testing.T) {
	s := newTestService(&fakeSource{years: []int{2018, 2019}})
	_, err := s.FetchSeries(context.Background(), "", market.NewCountySet("17031"), 2020)
	if !errors.Is(err, apperr.EmptyResult) {
		t.Fatalf("expected empty result, got %v", err)
	}
}

func TestFetchSeries_UpstreamFailure(t *testing.T) {
	s := newTestService(&fakeSource{years: []int{2023}, err: apperr.Upstream("enrollment", 500, "down")})
	_, err := s.FetchSeries(context.Background(), "session/series", market.NewCountySet("17031"), 2020)
	if !errors.Is(err, apperr.UpstreamServiceError) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if !apperr.IsRetryable(err) {
		t.Error("upstream failures should be retryable")
	}
}

func TestFetchBenchmark_NationalAnnualOnly(t *testing.T) {
	src := &fakeSource{byLevel: map[string][]RawRow{
		"national:2023": {row("", 2023, "Year", 65000000)},
	}}
	s := newTestService(src)

	series, err := s.FetchBenchmark(context.Background(), BenchmarkLevel{Scope: ScopeNational}, 2023)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series.Records) != 1 || !series.Records[0].Annual() {
		t.Errorf("expected the annual rollup as the only data point, got %+v", series.Records)
	}
}

func TestFetchBenchmark_EmptyAndInvalid(t *testing.T) {
	s := newTestService(&fakeSource{byLevel: map[string][]RawRow{}})
	if _, err := s.FetchBenchmark(context.Background(), BenchmarkLevel{Scope: ScopeState, FIPS: "17"}, 2023); !errors.Is(err, apperr.EmptyResult) {
		t.Errorf("expected empty result, got %v", err)
	}
	if _, err := s.FetchBenchmark(context.Background(), BenchmarkLevel{Scope: ScopeCounty, FIPS: "17"}, 2023); !errors.Is(err, apperr.Invalid) {
		t.Errorf("expected invalid, got %v", err)
	}
}

func TestYears_Shared(t *testing.T) {
	src := &fakeSource{years: []int{2022, 2023}}
	s := newTestService(src)
	years, err := s.Years(context.Background())
	if err != nil || len(years) != 2 {
		t.Fatalf("unexpected %v %v", years, err)
	}
}
