package transfusion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodbank/bloodbank/internal/domain/bloodunit"
	"github.com/bloodbank/bloodbank/internal/platform/auth"
	"github.com/bloodbank/bloodbank/internal/platform/idgen"
)

func newTestHandler() (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv()
	return NewHandler(env.svc, idgen.New(idgen.NewMemorySequencer())), env, echo.New()
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(auth.WithIdentity(req.Context(), "phys-4", []string{auth.RolePhysician}))
}

func assertHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %T", err)
	assert.Equal(t, want, he.Code)
}

func TestHandler_Compatibility(t *testing.T) {
	h, _, e := newTestHandler()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/compatibility?donor=O-&recipient=AB-", nil), rec)
	require.NoError(t, h.Compatibility(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"compatible":true`)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/compatibility?donor=O-", nil), httptest.NewRecorder())
	assertHTTPStatus(t, h.Compatibility(c), http.StatusBadRequest)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/compatibility?donor=Q&recipient=A+", nil), httptest.NewRecorder())
	assertHTTPStatus(t, h.Compatibility(c), http.StatusBadRequest)
}

func TestHandler_CreateAndDelete(t *testing.T) {
	h, env, e := newTestHandler()
	r := env.recipients.add("RC2402100001", "B+")
	u := env.units.add("BU2402010020", "O+", bloodunit.StatusAvailable)

	body := fmt.Sprintf(`{"recipient_id":%q,"blood_unit_id":%q,"hospital":"St. Luke's","volume_ml":300}`, r.ID, u.ID)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Create(e.NewContext(jsonRequest(http.MethodPost, "/recipients/transfusions", body), rec)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"transfusion_number":"TX`)
	assert.Contains(t, rec.Body.String(), `"created_by":"phys-4"`)

	// second use of the same unit
	err := h.Create(e.NewContext(jsonRequest(http.MethodPost, "/recipients/transfusions", body), httptest.NewRecorder()))
	assertHTTPStatus(t, err, http.StatusConflict)

	list, err := env.svc.ListTransfusions(context.Background(), r.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	rec = httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodGet, "/", ""), rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())
	require.NoError(t, h.List(c))
	assert.Contains(t, rec.Body.String(), list[0].TransfusionNumber)

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodGet, "/", ""), rec)
	c.SetParamNames("id")
	c.SetParamValues(list[0].ID.String())
	require.NoError(t, h.Get(c))
	assert.Contains(t, rec.Body.String(), list[0].TransfusionNumber)

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodDelete, "/", ""), rec)
	c.SetParamNames("id", "tid")
	c.SetParamValues(r.ID.String(), list[0].ID.String())
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, bloodunit.StatusAvailable, env.units.get(u.ID).Status)
}

func TestHandler_Create_Errors(t *testing.T) {
	h, env, e := newTestHandler()
	r := env.recipients.add("RC2402100001", "O-")
	u := env.units.add("BU2402010021", "B+", bloodunit.StatusAvailable)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad recipient id", `{"recipient_id":"nope","blood_unit_id":"` + u.ID.String() + `"}`, http.StatusBadRequest},
		{"bad unit id", `{"recipient_id":"` + r.ID.String() + `","blood_unit_id":""}`, http.StatusBadRequest},
		{"bad date", fmt.Sprintf(`{"recipient_id":%q,"blood_unit_id":%q,"transfusion_date":"12/02/2024"}`, r.ID, u.ID), http.StatusBadRequest},
		{"incompatible", fmt.Sprintf(`{"recipient_id":%q,"blood_unit_id":%q}`, r.ID, u.ID), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Create(e.NewContext(jsonRequest(http.MethodPost, "/", tt.body), httptest.NewRecorder()))
			assertHTTPStatus(t, err, tt.want)
		})
	}
}

func TestHandler_Delete_NotFound(t *testing.T) {
	h, env, e := newTestHandler()
	r := env.recipients.add("RC2402100001", "A+")

	c := e.NewContext(jsonRequest(http.MethodDelete, "/", ""), httptest.NewRecorder())
	c.SetParamNames("id", "tid")
	c.SetParamValues(r.ID.String(), "0b0b7d2e-5a53-4c5b-9f55-0e6a3a1b2c3d")
	assertHTTPStatus(t, h.Delete(c), http.StatusNotFound)
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, _, e := newTestHandler()

	c := e.NewContext(jsonRequest(http.MethodGet, "/", ""), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("0b0b7d2e-5a53-4c5b-9f55-0e6a3a1b2c3d")
	assertHTTPStatus(t, h.Get(c), http.StatusNotFound)
}
