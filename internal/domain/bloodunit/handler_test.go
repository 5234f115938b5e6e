package bloodunit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/domain/donor"
	"github.com/bloodbank/bloodbank/internal/platform/auth"
	"github.com/bloodbank/bloodbank/internal/platform/idgen"
)

func newTestHandler() (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv()
	return NewHandler(env.svc, idgen.New(idgen.NewMemorySequencer())), env, echo.New()
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(auth.WithIdentity(req.Context(), "tech-4", []string{auth.RoleTechnician}))
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func TestHandler_Create(t *testing.T) {
	h, env, e := newTestHandler()
	donorID := env.donations.add(donor.BloodTypeAPos)

	body := `{"donor_id":"` + donorID.String() + `","blood_type":"A+","volume_ml":450,"collection_date":"2023-03-01"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, body), rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var u BloodUnit
	if err := json.Unmarshal(rec.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(u.UnitNumber, "BU") {
		t.Errorf("expected generated unit number, got %q", u.UnitNumber)
	}
	if got := u.ExpirationDate.Format("2006-01-02"); got != "2023-04-12" {
		t.Errorf("expected expiration 2023-04-12, got %s", got)
	}
	if u.Status != StatusQuarantined {
		t.Errorf("expected Quarantined, got %s", u.Status)
	}
}

func TestHandler_Create_BadRequest(t *testing.T) {
	h, env, e := newTestHandler()
	donorID := env.donations.add(donor.BloodTypeAPos).String()

	tests := []struct {
		name string
		body string
	}{
		{"bad donor id", `{"donor_id":"nope","blood_type":"A+","volume_ml":450,"collection_date":"2023-03-01"}`},
		{"missing collection date", `{"donor_id":"` + donorID + `","blood_type":"A+","volume_ml":450}`},
		{"zero volume", `{"donor_id":"` + donorID + `","blood_type":"A+","volume_ml":0,"collection_date":"2023-03-01"}`},
		{"bad expiration", `{"donor_id":"` + donorID + `","blood_type":"A+","volume_ml":450,"collection_date":"2023-03-01","expiration_date":"soon"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.NewContext(jsonRequest(http.MethodPost, tt.body), httptest.NewRecorder())
			if code := httpCode(t, h.Create(c)); code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", code)
			}
		})
	}
}

func TestHandler_Transition(t *testing.T) {
	h, env, e := newTestHandler()
	u := env.seed(t, "BU2303010001", StatusQuarantined, testNow.AddDate(0, 0, 30))

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"status":"Available"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())
	if err := h.Transition(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c = e.NewContext(jsonRequest(http.MethodPost, `{"status":"Quarantined"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())
	if code := httpCode(t, h.Transition(c)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_Delete(t *testing.T) {
	h, env, e := newTestHandler()
	transfused := env.seed(t, "BU2303010002", StatusTransfused, testNow.AddDate(0, 0, 30))
	discarded := env.seed(t, "BU2303010003", StatusDiscarded, testNow.AddDate(0, 0, 30))

	c := e.NewContext(jsonRequest(http.MethodDelete, ""), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(transfused.ID.String())
	if code := httpCode(t, h.Delete(c)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}

	rec := httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodDelete, ""), rec)
	c.SetParamNames("id")
	c.SetParamValues(discarded.ID.String())
	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, _, e := newTestHandler()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	if code := httpCode(t, h.Get(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_Expiry(t *testing.T) {
	h, env, e := newTestHandler()
	u := env.seed(t, "BU2303010004", StatusAvailable, testNow.AddDate(0, 0, 30))

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?asOf="+u.ExpirationDate.AddDate(0, 0, 1).Format("2006-01-02"), nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())
	if err := h.Expiry(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var info ExpiryInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Level != ExpiryExpired {
		t.Errorf("expected Expired, got %s", info.Level)
	}
}

func TestHandler_ListExpiring_Paginates(t *testing.T) {
	h, env, e := newTestHandler()
	env.seed(t, "BU-A", StatusAvailable, testNow.AddDate(0, 0, 1))
	env.seed(t, "BU-B", StatusAvailable, testNow.AddDate(0, 0, 2))
	env.seed(t, "BU-C", StatusAvailable, testNow.AddDate(0, 0, 3))

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?days=5&limit=2", nil), rec)
	if err := h.ListExpiring(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data    []UnitExpiry `json:"data"`
		Total   int          `json:"total"`
		HasMore bool         `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 3 || len(resp.Data) != 2 || !resp.HasMore {
		t.Errorf("unexpected page: total=%d len=%d has_more=%v", resp.Total, len(resp.Data), resp.HasMore)
	}
	if resp.Data[0].Unit.UnitNumber != "BU-A" {
		t.Errorf("expected soonest first, got %s", resp.Data[0].Unit.UnitNumber)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?days=x", nil), httptest.NewRecorder())
	if code := httpCode(t, h.ListExpiring(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_Inventory(t *testing.T) {
	h, env, e := newTestHandler()
	env.seed(t, "BU-A", StatusAvailable, testNow.AddDate(0, 0, 10))

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if err := h.Inventory(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var inv Inventory
	if err := json.Unmarshal(rec.Body.Bytes(), &inv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inv.Total != 1 {
		t.Errorf("expected 1 unit, got %d", inv.Total)
	}
}

func TestHandler_List_ByUnitNumber(t *testing.T) {
	h, env, e := newTestHandler()
	u := env.seed(t, "BU2303010020", StatusAvailable, testNow.AddDate(0, 0, 30))

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/blood-units?unit_number=BU2303010020", nil), rec)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), u.ID.String()) || !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected unit %s, got %s", u.UnitNumber, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/blood-units?unit_number=BU0000000000", nil), rec)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":0`) {
		t.Errorf("expected empty result, got %s", rec.Body.String())
	}
}

func TestHandler_Transition_ToTransfusedConflicts(t *testing.T) {
	h, env, e := newTestHandler()
	u := env.seed(t, "BU2303010021", StatusAvailable, testNow.AddDate(0, 0, 30))

	c := e.NewContext(jsonRequest(http.MethodPost, `{"status":"Transfused"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())
	if code := httpCode(t, h.Transition(c)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}
