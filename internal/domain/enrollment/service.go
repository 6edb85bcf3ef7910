// Package enrollment merges Medicare enrollment extracts for a set of
// counties or a benchmark geography and derives summaries, trends and
// benchmark comparisons from them.
package enrollment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/domain/market"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/coordinator"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/telemetry"
)

const (
	opSeries    = "enrollment.series"
	opBenchmark = "enrollment.benchmark"
)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithConcurrency bounds the number of years fetched at once.
func WithConcurrency(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithYearFloor changes the default earliest year.
func WithYearFloor(y int) ServiceOption {
	return func(s *Service) {
		if y > 0 {
			s.yearFloor = y
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

type Service struct {
	src         Source
	coord       *coordinator.Coordinator
	concurrency int
	yearFloor   int
	logger      zerolog.Logger
}

func NewService(src Source, coord *coordinator.Coordinator, opts ...ServiceOption) *Service {
	s := &Service{
		src:         src,
		coord:       coord,
		concurrency: 4,
		yearFloor:   DefaultYearFloor,
		logger:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Years returns the years upstream publishes, ascending. Concurrent callers
// share one request.
func (s *Service) Years(ctx context.Context) ([]int, error) {
	return coordinator.Shared(s.coord, ctx, "enrollment-years", s.src.Years)
}

// FetchSeries fetches and merges every year >= yearFloor for counties. When
// scope is set, a newer call for the same scope supersedes this one.
func (s *Service) FetchSeries(ctx context.Context, scope string, counties market.CountySet, yearFloor int) (*Series, error) {
	if counties.Len() == 0 {
		return nil, apperr.InvalidInput(opSeries, "at least one county is required")
	}
	if yearFloor <= 0 {
		yearFloor = s.yearFloor
	}
	fetch := func(ctx context.Context) (*Series, error) {
		return s.fetchSeries(ctx, counties.Slice(), yearFloor)
	}
	if scope == "" {
		key := fmt.Sprintf("enrollment:%d:%s", yearFloor, strings.Join(counties.Slice(), ","))
		return coordinator.Shared(s.coord, ctx, key, fetch)
	}
	return coordinator.Latest(s.coord, ctx, "enrollment:"+scope, fetch, nil)
}

func (s *Service) fetchSeries(ctx context.Context, fips []string, yearFloor int) (*Series, error) {
	all, err := s.Years(ctx)
	if err != nil {
		return nil, err
	}
	var years []int
	for _, y := range all {
		if y >= yearFloor {
			years = append(years, y)
		}
	}
	if len(years) == 0 {
		return nil, apperr.Empty(opSeries, "no enrollment years at or after "+strconv.Itoa(yearFloor))
	}

	perYear := make([][]RawRow, len(years))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, y := range years {
		g.Go(func() error {
			rows, err := s.src.Enrollment(gctx, fips, y)
			if err != nil {
				return fmt.Errorf("year %d: %w", y, err)
			}
			perYear[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	series := &Series{Years: years}
	var records []Record
	for _, rows := range perYear {
		recs, dropped := s.parseRows(rows)
		records = append(records, recs...)
		series.Dropped += dropped
	}
	series.Records = selectGranularity(dedupe(records))
	if series.Dropped > 0 {
		s.logger.Warn().Int("dropped", series.Dropped).Msg("enrollment rows dropped at ingestion")
	}
	return series, nil
}

// FetchBenchmark returns the enrollment series of a benchmark geography for
// year. Where the geography publishes only annual rows, those rows are the
// series.
func (s *Service) FetchBenchmark(ctx context.Context, level BenchmarkLevel, year int) (*Series, error) {
	records, dropped, err := s.benchmarkRecords(ctx, level, year)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperr.Empty(opBenchmark, fmt.Sprintf("no %s enrollment for %d", level.Scope, year))
	}
	return &Series{Records: selectGranularity(records), Years: []int{year}, Dropped: dropped}, nil
}

// benchmarkRecords returns de-duplicated but otherwise unselected rows.
func (s *Service) benchmarkRecords(ctx context.Context, level BenchmarkLevel, year int) ([]Record, int, error) {
	if err := level.Validate(); err != nil {
		return nil, 0, apperr.InvalidInput(opBenchmark, err.Error())
	}
	key := fmt.Sprintf("benchmark:%s:%s:%d", level.Scope, level.FIPS, year)
	rows, err := coordinator.Shared(s.coord, ctx, key, func(ctx context.Context) ([]RawRow, error) {
		return s.src.EnrollmentByLevel(ctx, level, year)
	})
	if err != nil {
		return nil, 0, err
	}
	records, dropped := s.parseRows(rows)
	return dedupe(records), dropped, nil
}

func (s *Service) parseRows(rows []RawRow) ([]Record, int) {
	records := make([]Record, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		rec, err := parseRecord(row)
		if err != nil {
			dropped++
			telemetry.ParseFailures.WithLabelValues("enrollment").Inc()
			s.logger.Debug().Err(apperr.Parse(opSeries, err)).Msg("enrollment row dropped")
			continue
		}
		records = append(records, rec)
	}
	return records, dropped
}
