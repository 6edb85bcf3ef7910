package referral

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/middleware"
)

const sourcesBody = `{"inbound_npi":"1003000126","date_range":{"from":"2024-01-01","to":"2024-12-31"},"group_by":"facility","lead_time_max_days":30,"max_distance_miles":50}`

func TestHandler_Metadata(t *testing.T) {
	h := NewHandler(newTestService(&fakeSource{md: Metadata{MaxDate: "2024-06-30"}}, nil))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/referrals/metadata", nil)
	rec := httptest.NewRecorder()

	if err := h.Metadata(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"max_date":"2024-06-30"`) {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Sources(t *testing.T) {
	src := &fakeSource{groups: []GroupRow{{GroupKey: "F1", TotalReferrals: 3}}}
	h := NewHandler(newTestService(src, nil))
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/referrals/sources", strings.NewReader(sourcesBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(middleware.SessionHeader, "s1")
	rec := httptest.NewRecorder()

	if err := h.Sources(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			GroupBy string `json:"group_by"`
			Count   int    `json:"count"`
			Rows    []struct {
				GroupKey string `json:"group_key"`
			} `json:"rows"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if !body.Success || body.Data.Count != 1 || body.Data.Rows[0].GroupKey != "F1" || body.Data.GroupBy != "facility" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if src.lastParams.LeadTimeMaxDays != 30 {
		t.Errorf("expected params bound from body, got %+v", src.lastParams)
	}
}

func TestHandler_Sources_InvalidLeadTime(t *testing.T) {
	h := NewHandler(newTestService(&fakeSource{}, nil))
	e := echo.New()
	body := strings.Replace(sourcesBody, `"lead_time_max_days":30`, `"lead_time_max_days":120`, 1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/referrals/sources", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Sources(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Facilities(t *testing.T) {
	src := &fakeSource{facilities: []FacilityRow{
		facilityRow("1111111111", "F1", 2, "10", near),
		facilityRow("2222222222", "F1", 1, "5", near),
	}}
	h := NewHandler(newTestService(src, inboundLocator()))
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/referrals/sources/F1/facilities", strings.NewReader(sourcesBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("groupKey")
	c.SetParamValues("F1")

	if err := h.Facilities(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data FacilitiesResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.Data.GroupKey != "F1" || body.Data.Count != 1 || len(body.Data.Facilities[0].NPIs) != 2 {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if body.Data.Facilities[0].Distance == nil {
		t.Error("expected a distance for a located facility")
	}
}

func TestHandler_FacilitiesPaged(t *testing.T) {
	src := &fakeSource{facilities: []FacilityRow{
		facilityRow("1111111111", "F1", 2, "10", near),
		facilityRow("2222222222", "F2", 1, "5", mid),
	}}
	h := NewHandler(newTestService(src, inboundLocator()))
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/referrals/sources/G/facilities?limit=1", strings.NewReader(sourcesBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("groupKey")
	c.SetParamValues("G")

	if err := h.Facilities(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data FacilitiesResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.Data.Count != 1 || body.Data.Page.Total != 2 || !body.Data.Page.HasMore {
		t.Errorf("unexpected page %s", rec.Body.String())
	}
	if body.Data.Facilities[0].CanonicalID != "F1" {
		t.Errorf("expected the nearest facility first, got %+v", body.Data.Facilities[0])
	}
}
