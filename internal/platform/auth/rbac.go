package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Role groups used when registering routes.
var (
	// Clinical staff read any record.
	ReadRoles = []string{RoleTechnician, RolePhysician, RoleNurse}
	// Lab staff manage donors and blood units.
	LabRoles = []string{RoleTechnician}
	// Clinicians manage recipients, requests and transfusions.
	ClinicalRoles = []string{RolePhysician, RoleNurse}
)

// RequireRole returns middleware that checks the user holds at least one of
// the given roles. Admins pass every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(RolesFromContext(c.Request().Context()), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// HasRole reports whether held satisfies any of required.
func HasRole(held []string, required ...string) bool {
	for _, has := range held {
		if has == RoleAdmin {
			return true
		}
		for _, r := range required {
			if has == r {
				return true
			}
		}
	}
	return false
}
