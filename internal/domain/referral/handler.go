package referral

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/middleware"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/pkg/pagination"
)

// SourcesResponse is the data of POST /referrals/sources.
type SourcesResponse struct {
	GroupBy string     `json:"group_by"`
	Rows    []GroupRow `json:"rows"`
	Count   int        `json:"count"`
}

// FacilitiesResponse is the data of a group drill-down. Count is the number
// of facilities in this page; Page.Total counts all of them.
type FacilitiesResponse struct {
	GroupBy    string           `json:"group_by"`
	GroupKey   string           `json:"group_key"`
	Facilities []FacilityDetail `json:"facilities"`
	Count      int              `json:"count"`
	Page       pagination.Page  `json:"page"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/referrals")
	g.GET("/metadata", h.Metadata)
	g.POST("/sources", h.Sources)
	g.POST("/sources/:groupKey/facilities", h.Facilities)
}

func (h *Handler) Metadata(c echo.Context) error {
	md, err := h.svc.Metadata(c.Request().Context())
	if err != nil {
		return apperr.Write(c, err)
	}
	return c.JSON(http.StatusOK, apperr.OK(md))
}

func (h *Handler) Sources(c echo.Context) error {
	var p Params
	if err := c.Bind(&p); err != nil {
		return apperr.Write(c, apperr.InvalidInput(opSources, "malformed request body"))
	}
	rows, err := h.svc.AnalyzeSources(c.Request().Context(), middleware.Scope(c, "referral-sources"), p)
	if err != nil {
		return apperr.Write(c, err)
	}
	if rows == nil {
		rows = []GroupRow{}
	}
	return c.JSON(http.StatusOK, apperr.OK(SourcesResponse{GroupBy: p.GroupBy, Rows: rows, Count: len(rows)}))
}

func (h *Handler) Facilities(c echo.Context) error {
	var p Params
	if err := c.Bind(&p); err != nil {
		return apperr.Write(c, apperr.InvalidInput(opDrillDown, "malformed request body"))
	}
	groupKey, err := url.PathUnescape(c.Param("groupKey"))
	if err != nil {
		return apperr.Write(c, apperr.InvalidInput(opDrillDown, "malformed group key"))
	}
	rows, err := h.svc.DrillDown(c.Request().Context(), middleware.Scope(c, "referral-facilities"), p, groupKey)
	if err != nil {
		return apperr.Write(c, err)
	}
	if rows == nil {
		rows = []FacilityDetail{}
	}
	rows, page := pagination.Apply(rows, pagination.FromContext(c))
	return c.JSON(http.StatusOK, apperr.OK(FacilitiesResponse{
		GroupBy:    p.GroupBy,
		GroupKey:   groupKey,
		Facilities: rows,
		Count:      len(rows),
		Page:       page,
	}))
}
