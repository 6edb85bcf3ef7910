package enrollment

import (
	"context"
	"sort"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/dataservice"
)

// Source fetches raw enrollment extracts.
type Source interface {
	Years(ctx context.Context) ([]int, error)
	Enrollment(ctx context.Context, fips []string, year int) ([]RawRow, error)
	EnrollmentByLevel(ctx context.Context, level BenchmarkLevel, year int) ([]RawRow, error)
	PlanEnrollment(ctx context.Context, q PlanQuery) ([]RawRow, error)
	PlanEnrollmentTrend(ctx context.Context, q PlanTrendQuery) ([]RawRow, error)
	NationwideParentOrg(ctx context.Context, q NationwideQuery) ([]RawRow, error)
}

// HTTPSource reads enrollment data from the data service.
type HTTPSource struct {
	client *dataservice.Client
}

func NewHTTPSource(client *dataservice.Client) *HTTPSource {
	return &HTTPSource{client: client}
}

func (s *HTTPSource) Years(ctx context.Context) ([]int, error) {
	var raw []interface{}
	if err := s.client.Get(ctx, "enrollment-years", nil, &raw); err != nil {
		return nil, err
	}
	return parseYears(raw), nil
}

type enrollmentRequest struct {
	FIPSList []string `json:"fipsList"`
	Year     int      `json:"year"`
}

func (s *HTTPSource) Enrollment(ctx context.Context, fips []string, year int) ([]RawRow, error) {
	var rows []RawRow
	err := s.client.Post(ctx, "enrollment", enrollmentRequest{FIPSList: fips, Year: year}, &rows)
	return rows, err
}

type levelRequest struct {
	GeoLevel string `json:"geoLevel"`
	FIPSCode string `json:"fipsCode,omitempty"`
	Year     int    `json:"year"`
}

func (s *HTTPSource) EnrollmentByLevel(ctx context.Context, level BenchmarkLevel, year int) ([]RawRow, error) {
	var rows []RawRow
	req := levelRequest{GeoLevel: level.geoLevel(), Year: year}
	if level.Scope != ScopeNational {
		req.FIPSCode = level.FIPS
	}
	err := s.client.Post(ctx, "enrollment-by-level", req, &rows)
	return rows, err
}

func (s *HTTPSource) PlanEnrollment(ctx context.Context, q PlanQuery) ([]RawRow, error) {
	var rows []RawRow
	err := s.client.Post(ctx, "ma-enrollment", q, &rows)
	return rows, err
}

func (s *HTTPSource) PlanEnrollmentTrend(ctx context.Context, q PlanTrendQuery) ([]RawRow, error) {
	var rows []RawRow
	err := s.client.Post(ctx, "ma-enrollment/trend", q, &rows)
	return rows, err
}

func (s *HTTPSource) NationwideParentOrg(ctx context.Context, q NationwideQuery) ([]RawRow, error) {
	var rows []RawRow
	err := s.client.Post(ctx, "ma-enrollment/nationwide", q, &rows)
	return rows, err
}

// parseYears accepts [2023, 2024] or [{"year": 2023}, ...] and returns the
// distinct years ascending.
func parseYears(raw []interface{}) []int {
	seen := make(map[int]struct{})
	var years []int
	for _, v := range raw {
		if m, ok := v.(map[string]interface{}); ok {
			v = m["year"]
		}
		n, ok := count(v)
		if !ok || n == 0 {
			continue
		}
		if _, dup := seen[int(n)]; dup {
			continue
		}
		seen[int(n)] = struct{}{}
		years = append(years, int(n))
	}
	sort.Ints(years)
	return years
}
