package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func roleContext(e *echo.Echo, roles ...string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(context.Background(), "u1", roles))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRequireRole_Allowed(t *testing.T) {
	e := echo.New()
	c, rec := roleContext(e, RolePhysician)

	err := RequireRole(ClinicalRoles...)(okHandler)(c)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	e := echo.New()
	c, _ := roleContext(e, RoleNurse)

	err := RequireRole(LabRoles...)(okHandler)(c)
	if err == nil {
		t.Fatal("expected error for unauthorized role")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireRole_NoRoles(t *testing.T) {
	e := echo.New()
	c, _ := roleContext(e)

	if err := RequireRole(ReadRoles...)(okHandler)(c); err == nil {
		t.Error("expected error when no roles are present")
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	e := echo.New()
	c, _ := roleContext(e, RoleAdmin)

	if err := RequireRole(RoleTechnician)(okHandler)(c); err != nil {
		t.Error("admin should bypass role checks")
	}
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		held     []string
		required []string
		want     bool
	}{
		{[]string{RoleTechnician}, LabRoles, true},
		{[]string{RoleNurse}, LabRoles, false},
		{[]string{RoleNurse}, ReadRoles, true},
		{nil, ReadRoles, false},
		{[]string{RoleAdmin}, nil, true},
	}
	for _, tt := range tests {
		if got := HasRole(tt.held, tt.required...); got != tt.want {
			t.Errorf("HasRole(%v, %v) = %v, want %v", tt.held, tt.required, got, tt.want)
		}
	}
}
