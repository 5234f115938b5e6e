package recipient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodbank/bloodbank/internal/platform/auth"
	"github.com/bloodbank/bloodbank/internal/platform/idgen"
)

func TestHandler_CreateRecipientAndRequest(t *testing.T) {
	svc := newTestService()
	h := NewHandler(svc, idgen.New(idgen.NewMemorySequencer()))
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"first_name":"Omar","last_name":"Haddad","date_of_birth":"1964-07-21","blood_type":"AB+"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.CreateRecipient(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"recipient_number":"RC`)

	list, _, err := svc.ListRecipients(context.Background(), ListFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"units_requested":0}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(list[0].ID.String())
	err = h.CreateRequest(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"units_requested":3,"urgency":"Emergency","required_by":"2024-02-11"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(req.Context(), "nurse-8", []string{auth.RoleNurse}))
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(list[0].ID.String())
	require.NoError(t, h.CreateRequest(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"request_number":"BR`)
}

func TestHandler_UpdateRequestStatus_Conflict(t *testing.T) {
	svc := newTestService()
	h := NewHandler(svc, idgen.New(idgen.NewMemorySequencer()))
	e := echo.New()
	r := createRecipient(t, svc)
	br, err := svc.CreateRequest(context.Background(), CreateRequestCommand{RequestNumber: "BR1", RecipientID: r.ID, UnitsRequested: 1})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"Fulfilled"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(br.ID.String())

	err = h.UpdateRequestStatus(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, he.Code)
}

func TestHandler_ListRecipients_ByNumber(t *testing.T) {
	svc := newTestService()
	h := NewHandler(svc, idgen.New(idgen.NewMemorySequencer()))
	e := echo.New()
	r := createRecipient(t, svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recipients?number="+r.RecipientNumber, nil)
	require.NoError(t, h.ListRecipients(e.NewContext(req, rec)))
	assert.Contains(t, rec.Body.String(), r.ID.String())
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/recipients?number=RC0000000000", nil)
	require.NoError(t, h.ListRecipients(e.NewContext(req, rec)))
	assert.Contains(t, rec.Body.String(), `"total":0`)
}
