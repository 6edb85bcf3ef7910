package enrollment

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/domain/market"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/geo"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/middleware"
)

var requestValidate = validator.New()

// MarketInput describes a market by center and radius.
type MarketInput struct {
	Lat    float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon    float64 `json:"lon" validate:"gte=-180,lte=180"`
	Radius float64 `json:"radius" validate:"gt=0,lte=500"`
}

// CountiesInput names the counties of a request either directly or by
// market.
type CountiesInput struct {
	FIPS   []string     `json:"fips" validate:"omitempty,max=500,dive,len=5,numeric"`
	Market *MarketInput `json:"market" validate:"omitempty"`
}

// SeriesRequest is the body of POST /enrollment/series.
type SeriesRequest struct {
	CountiesInput
	YearFloor int `json:"year_floor" validate:"omitempty,gte=1990,lte=2100"`
}

// SeriesResponse is the data of POST /enrollment/series.
type SeriesResponse struct {
	Counties market.CountySet `json:"counties"`
	Years    []int            `json:"years"`
	Records  []Record         `json:"records"`
	Dropped  int              `json:"dropped"`
	Trend    []TrendPoint     `json:"trend"`
}

// SummaryRequest is the body of POST /enrollment/summary.
type SummaryRequest struct {
	CountiesInput
	Period    string          `json:"period"`
	YearFloor int             `json:"year_floor" validate:"omitempty,gte=1990,lte=2100"`
	Benchmark *BenchmarkLevel `json:"benchmark" validate:"omitempty"`
}

// SummaryResponse is the data of POST /enrollment/summary.
type SummaryResponse struct {
	Summary   Summary           `json:"summary"`
	Benchmark *BenchmarkSummary `json:"benchmark,omitempty"`
}

// PlansRequest is the body of POST /enrollment/plans.
type PlansRequest struct {
	CountiesInput
	PublishDate string `json:"publish_date" validate:"required"`
	Type        string `json:"type"`
}

// PlansResponse is the data of POST /enrollment/plans.
type PlansResponse struct {
	Rows       []PlanRow        `json:"rows"`
	ParentOrgs []ParentOrgShare `json:"parent_orgs"`
}

// PlanTrendRequest is the body of POST /enrollment/plans/trend.
type PlanTrendRequest struct {
	CountiesInput
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	Type      string `json:"type"`
}

// NationwideRequest is the body of POST /enrollment/plans/nationwide.
type NationwideRequest struct {
	ParentOrg   string `json:"parent_org" validate:"required,max=256"`
	PublishDate string `json:"publish_date" validate:"required"`
	Type        string `json:"type"`
}

type Handler struct {
	svc      *Service
	resolver *market.Resolver
}

func NewHandler(svc *Service, resolver *market.Resolver) *Handler {
	return &Handler{svc: svc, resolver: resolver}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/enrollment")
	g.GET("/years", h.Years)
	g.POST("/series", h.Series)
	g.POST("/summary", h.Summary)
	g.POST("/plans", h.Plans)
	g.POST("/plans/trend", h.PlanTrend)
	g.POST("/plans/nationwide", h.Nationwide)
}

func (h *Handler) Years(c echo.Context) error {
	years, err := h.svc.Years(c.Request().Context())
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(http.StatusOK, apperr.OK(years))
}

func (h *Handler) Series(c echo.Context) error {
	var req SeriesRequest
	if err := bindAndValidate(c, opSeries, &req); err != nil {
		return apperr.Write(c, err)
	}
	ctx := c.Request().Context()
	counties, err := h.counties(ctx, c, req.CountiesInput)
	if err != nil {
		return apperr.Write(c, err)
	}
	series, err := h.svc.FetchSeries(ctx, middleware.Scope(c, "enrollment-series"), counties, req.YearFloor)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(http.StatusOK, apperr.OK(SeriesResponse{
		Counties: counties,
		Years:    series.Years,
		Records:  series.Records,
		Dropped:  series.Dropped,
		Trend:    BuildMonthlyTrend(series.Records),
	}))
}

func (h *Handler) Summary(c echo.Context) error {
	var req SummaryRequest
	if err := bindAndValidate(c, opSeries, &req); err != nil {
		return apperr.Write(c, err)
	}
	period, err := ParsePeriod(req.Period)
	if err != nil {
		return apperr.Write(c, apperr.InvalidInput(opSeries, err.Error()))
	}
	floor := req.YearFloor
	if !period.IsZero() && (floor == 0 || floor > period.Year) {
		floor = period.Year
	}

	ctx := c.Request().Context()
	counties, err := h.counties(ctx, c, req.CountiesInput)
	if err != nil {
		return apperr.Write(c, err)
	}
	series, err := h.svc.FetchSeries(ctx, middleware.Scope(c, "enrollment-summary"), counties, floor)
	if err != nil {
		return apperr.Write(c, err)
	}

	resp := SummaryResponse{Summary: Summarize(series.Records, period)}
	if req.Benchmark != nil {
		resp.Benchmark, err = h.svc.CompareToBenchmark(ctx, resp.Summary, *req.Benchmark)
		if err != nil {
			return apperr.Write(c, err)
		}
	}
	return c.JSON(http.StatusOK, apperr.OK(resp))
}

func (h *Handler) Plans(c echo.Context) error {
	var req PlansRequest
	if err := bindAndValidate(c, opPlans, &req); err != nil {
		return apperr.Write(c, err)
	}
	planType, err := ParsePlanType(req.Type)
	if err != nil {
		return apperr.Write(c, apperr.InvalidInput(opPlans, err.Error()))
	}
	ctx := c.Request().Context()
	counties, err := h.counties(ctx, c, req.CountiesInput)
	if err != nil {
		return apperr.Write(c, err)
	}
	rows, err := h.svc.PlanEnrollment(ctx, counties, req.PublishDate, planType)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(http.StatusOK, apperr.OK(PlansResponse{Rows: rows, ParentOrgs: SummarizeParentOrgs(rows)}))
}

func (h *Handler) PlanTrend(c echo.Context) error {
	var req PlanTrendRequest
	if err := bindAndValidate(c, opPlans, &req); err != nil {
		return apperr.Write(c, err)
	}
	planType, err := ParsePlanType(req.Type)
	if err != nil {
		return apperr.Write(c, apperr.InvalidInput(opPlans, err.Error()))
	}
	ctx := c.Request().Context()
	counties, err := h.counties(ctx, c, req.CountiesInput)
	if err != nil {
		return apperr.Write(c, err)
	}
	points, err := h.svc.PlanEnrollmentTrend(ctx, counties, req.StartDate, req.EndDate, planType)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(http.StatusOK, apperr.OK(points))
}

func (h *Handler) Nationwide(c echo.Context) error {
	var req NationwideRequest
	if err := bindAndValidate(c, opPlans, &req); err != nil {
		return apperr.Write(c, err)
	}
	planType, err := ParsePlanType(req.Type)
	if err != nil {
		return apperr.Write(c, apperr.InvalidInput(opPlans, err.Error()))
	}
	out, err := h.svc.NationwideParentOrg(c.Request().Context(), req.ParentOrg, req.PublishDate, planType)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(http.StatusOK, apperr.OK(out))
}

// counties resolves the request's county list, preferring explicit FIPS
// codes over a market.
func (h *Handler) counties(ctx context.Context, c echo.Context, in CountiesInput) (market.CountySet, error) {
	if len(in.FIPS) > 0 {
		return market.NewCountySet(in.FIPS...), nil
	}
	if in.Market == nil {
		return market.CountySet{}, apperr.InvalidInput(opSeries, "either fips or market is required")
	}
	area := market.Area{
		Center:      geo.Coordinate{Lat: in.Market.Lat, Lon: in.Market.Lon},
		RadiusMiles: in.Market.Radius,
	}
	return h.resolver.ResolveScoped(ctx, middleware.Scope(c, "counties"), area)
}

func bindAndValidate(c echo.Context, op string, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperr.InvalidInput(op, "malformed request body")
	}
	if err := requestValidate.Struct(req); err != nil {
		return apperr.FromValidation(op, err)
	}
	return nil
}
