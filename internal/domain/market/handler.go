package market

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/geo"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/middleware"
)

var requestValidate = validator.New()

// CountiesRequest is the query of GET /markets/counties.
type CountiesRequest struct {
	Lat      *float64 `validate:"required,gte=-90,lte=90"`
	Lon      *float64 `validate:"required,gte=-180,lte=180"`
	Radius   *float64 `validate:"required,gt=0,lte=500"`
	MarketID string   `validate:"omitempty,max=128"`
}

func (r CountiesRequest) Area() Area {
	return Area{Center: geo.Coordinate{Lat: *r.Lat, Lon: *r.Lon}, RadiusMiles: *r.Radius}
}

// CountiesResponse is the data of a successful counties lookup.
type CountiesResponse struct {
	Key      string    `json:"key"`
	Area     Area      `json:"area"`
	Counties CountySet `json:"counties"`
	Count    int       `json:"count"`
}

type Handler struct {
	resolver *Resolver
}

func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/markets/counties", h.Counties)
}

func (h *Handler) Counties(c echo.Context) error {
	req := CountiesRequest{MarketID: c.QueryParam("market_id")}
	for name, dst := range map[string]**float64{"lat": &req.Lat, "lon": &req.Lon, "radius": &req.Radius} {
		v, err := floatParam(c, name)
		if err != nil {
			return apperr.Write(c, apperr.InvalidInput(opResolve, err.Error()))
		}
		*dst = v
	}
	if err := requestValidate.Struct(req); err != nil {
		return apperr.Write(c, apperr.FromValidation(opResolve, err))
	}

	scope := middleware.Scope(c, "counties")
	if req.MarketID != "" {
		if scope != "" {
			scope += "/"
		}
		scope += "market/" + req.MarketID
	}

	area := req.Area()
	set, err := h.resolver.ResolveScoped(c.Request().Context(), scope, area)
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(http.StatusOK, apperr.OK(CountiesResponse{
		Key:      area.Key(),
		Area:     area,
		Counties: set,
		Count:    set.Len(),
	}))
}

// floatParam parses an optional numeric query parameter.
func floatParam(c echo.Context, name string) (*float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &v, nil
}
