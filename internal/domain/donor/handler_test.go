package donor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/platform/auth"
	"github.com/bloodbank/bloodbank/internal/platform/idgen"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc := newTestService()
	h := NewHandler(svc, idgen.New(idgen.NewMemorySequencer()))
	e := echo.New()
	return h, e
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(auth.WithIdentity(req.Context(), "tech-7", []string{auth.RoleTechnician}))
}

func assertHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d", want)
	}
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if he.Code != want {
		t.Errorf("expected %d, got %d", want, he.Code)
	}
}

func seedDonor(t *testing.T, h *Handler) *Donor {
	t.Helper()
	d := &Donor{
		DonorNumber: "DN2406010042",
		FirstName:   "Ravi",
		LastName:    "Menon",
		DateOfBirth: time.Date(1985, 9, 3, 0, 0, 0, 0, time.UTC),
		BloodType:   BloodTypeBNeg,
	}
	if err := h.svc.CreateDonor(context.Background(), d); err != nil {
		t.Fatalf("seed donor: %v", err)
	}
	return d
}

func TestHandler_CreateDonor(t *testing.T) {
	h, e := newTestHandler()

	body := `{"first_name":"Ana","last_name":"Silva","date_of_birth":"1992-05-17","blood_type":"AB-"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/donors", body), rec)

	if err := h.CreateDonor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var d Donor
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(d.DonorNumber, "DN") || len(d.DonorNumber) != 12 {
		t.Errorf("expected generated donor number, got %q", d.DonorNumber)
	}
	if d.Status != StatusActive {
		t.Errorf("expected Active, got %s", d.Status)
	}
}

func TestHandler_CreateDonor_BadRequest(t *testing.T) {
	h, e := newTestHandler()

	tests := []string{
		`{"first_name":"Ana","last_name":"Silva","blood_type":"AB-"}`,
		`{"first_name":"Ana","last_name":"Silva","date_of_birth":"17/05/1992","blood_type":"AB-"}`,
		`{"first_name":"Ana","last_name":"Silva","date_of_birth":"1992-05-17","blood_type":"Q"}`,
	}
	for _, body := range tests {
		c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/donors", body), httptest.NewRecorder())
		assertHTTPStatus(t, h.CreateDonor(c), http.StatusBadRequest)
	}
}

func TestHandler_GetDonor_NotFound(t *testing.T) {
	h, e := newTestHandler()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	assertHTTPStatus(t, h.GetDonor(c), http.StatusNotFound)
}

func TestHandler_GetEligibility(t *testing.T) {
	h, e := newTestHandler()
	d := seedDonor(t, h)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/donors/status?donorId="+d.ID.String(), nil), rec)

	if err := h.GetEligibility(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res EligibilityResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.IsEligible {
		t.Errorf("expected eligible, got reason %v", res.Reason)
	}
}

func TestHandler_GetEligibility_BadQuery(t *testing.T) {
	h, e := newTestHandler()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/donors/status", nil), httptest.NewRecorder())
	assertHTTPStatus(t, h.GetEligibility(c), http.StatusBadRequest)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/donors/status?donorId="+uuid.New().String(), nil), httptest.NewRecorder())
	assertHTTPStatus(t, h.GetEligibility(c), http.StatusNotFound)
}

func TestHandler_DeferralLifecycle(t *testing.T) {
	h, e := newTestHandler()
	d := seedDonor(t, h)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"deferral_type":"Temporary","reason":"Travel","end_date":"2024-09-01"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.CreateDeferral(c); err != nil {
		t.Fatalf("create deferral: %v", err)
	}
	var def Deferral
	if err := json.Unmarshal(rec.Body.Bytes(), &def); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if def.CreatedBy != "tech-7" {
		t.Errorf("expected created_by tech-7, got %q", def.CreatedBy)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPost, "/", `{"status":"Reinstated","note":"returned"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(def.ID.String())
	if err := h.ReviewDeferral(c); err != nil {
		t.Fatalf("review deferral: %v", err)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(def.ID.String())
	if err := h.GetDeferral(c); err != nil {
		t.Fatalf("get deferral: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"Reinstated"`) {
		t.Errorf("expected reviewed deferral, got %s", rec.Body.String())
	}

	c = e.NewContext(jsonRequest(http.MethodPost, "/", `{"status":"Active"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(def.ID.String())
	assertHTTPStatus(t, h.ReviewDeferral(c), http.StatusConflict)
}

func TestHandler_RecordHealthAssessment(t *testing.T) {
	h, e := newTestHandler()
	d := seedDonor(t, h)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"hemoglobin_g_dl":11.2,"is_eligible":false,"ineligibility_reason":"Low hemoglobin"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.RecordHealthAssessment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.ListHealthAssessments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []HealthAssessment
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].AssessedBy != "tech-7" {
		t.Errorf("unexpected assessments: %+v", items)
	}
}

func TestHandler_ListDonors(t *testing.T) {
	h, e := newTestHandler()
	seedDonor(t, h)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/donors?blood_type=B-", nil), rec)
	if err := h.ListDonors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected one donor, got %s", rec.Body.String())
	}
}

func TestHandler_ListDonors_ByNumber(t *testing.T) {
	h, e := newTestHandler()
	d := seedDonor(t, h)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/donors?number="+d.DonorNumber, nil), rec)
	if err := h.ListDonors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), d.ID.String()) || !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected donor %s, got %s", d.DonorNumber, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/donors?number=DN0000000000", nil), rec)
	if err := h.ListDonors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":0`) {
		t.Errorf("expected empty result, got %s", rec.Body.String())
	}
}

func TestHandler_GetDeferral_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	assertHTTPStatus(t, h.GetDeferral(c), http.StatusNotFound)
}

func TestHandler_RetireDonor(t *testing.T) {
	h, e := newTestHandler()
	d := seedDonor(t, h)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())
	if err := h.RetireDonor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
