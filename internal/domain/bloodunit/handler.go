package bloodunit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/domain/donor"
	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/auth"
	"github.com/bloodbank/bloodbank/internal/platform/idgen"
	"github.com/bloodbank/bloodbank/pkg/dateutil"
	"github.com/bloodbank/bloodbank/pkg/pagination"
)

// defaultExpiringWindowDays is the look-ahead used by GET /blood-units/expiring.
const defaultExpiringWindowDays = 7

type Handler struct {
	svc *Service
	ids *idgen.Generator
}

func NewHandler(svc *Service, ids *idgen.Generator) *Handler {
	return &Handler{svc: svc, ids: ids}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.ReadRoles...))
	read.GET("/blood-units", h.List)
	read.GET("/blood-units/expiring", h.ListExpiring)
	read.GET("/blood-units/inventory", h.Inventory)
	read.GET("/blood-units/:id", h.Get)
	read.GET("/blood-units/:id/history", h.History)
	read.GET("/blood-units/:id/expiry", h.Expiry)

	write := api.Group("", auth.RequireRole(auth.LabRoles...))
	write.POST("/blood-units", h.Create)
	write.POST("/blood-units/:id/status", h.Transition)
	write.DELETE("/blood-units/:id", h.Delete)
}

type createRequest struct {
	UnitNumber      string  `json:"unit_number"`
	DonorID         string  `json:"donor_id"`
	BloodType       string  `json:"blood_type"`
	Component       string  `json:"component"`
	VolumeML        int     `json:"volume_ml"`
	CollectionDate  string  `json:"collection_date"`
	ExpirationDate  *string `json:"expiration_date"`
	Status          string  `json:"status"`
	StorageLocation *string `json:"storage_location"`
	DonationType    string  `json:"donation_type"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	donorID, err := uuid.Parse(req.DonorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "donor_id must be a valid id")
	}
	if req.CollectionDate == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "collection_date is required")
	}
	collected, err := dateutil.ParseDate(req.CollectionDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	expires, err := dateutil.ParseOptionalDate(req.ExpirationDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if req.UnitNumber == "" {
		if req.UnitNumber, err = h.ids.Next(ctx, idgen.BloodUnit); err != nil {
			return apperr.HTTPError(err)
		}
	}
	u, err := h.svc.Create(ctx, CreateBloodUnitCommand{
		UnitNumber:      req.UnitNumber,
		DonorID:         donorID,
		BloodType:       req.BloodType,
		Component:       req.Component,
		VolumeML:        req.VolumeML,
		CollectionDate:  collected,
		ExpirationDate:  expires,
		Status:          req.Status,
		StorageLocation: req.StorageLocation,
		DonationType:    donor.DonationType(req.DonationType),
		Actor:           auth.Actor(ctx),
	})
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, u)
}

// List handles GET /blood-units. A unit_number query parameter looks a unit
// up by its unit number and returns at most one item.
func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	if number := c.QueryParam("unit_number"); number != "" {
		u, err := h.svc.GetByNumber(c.Request().Context(), number)
		if errors.Is(err, apperr.ErrNotFound) {
			return c.JSON(http.StatusOK, pagination.NewResponse([]*BloodUnit{}, 0, pg.Limit, pg.Offset))
		}
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse([]*BloodUnit{u}, 1, pg.Limit, pg.Offset))
	}
	f := ListFilter{
		Status:    c.QueryParam("status"),
		BloodType: c.QueryParam("blood_type"),
		Component: c.QueryParam("component"),
	}
	if raw := c.QueryParam("donor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "donor_id must be a valid id")
		}
		f.DonorID = &id
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) History(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.History(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

type transitionRequest struct {
	Status string  `json:"status"`
	Note   *string `json:"note"`
}

func (h *Handler) Transition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	u, err := h.svc.Transition(ctx, TransitionCommand{
		UnitID: id,
		Status: req.Status,
		Actor:  auth.Actor(ctx),
		Note:   req.Note,
	})
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, id, auth.Actor(ctx)); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Expiry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	asOf, err := asOfParam(c)
	if err != nil {
		return err
	}
	info, err := h.svc.Expiry(c.Request().Context(), id, asOf)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, info)
}

// ListExpiring handles GET /blood-units/expiring?days=&asOf=, paginated in
// memory over the soonest-first result.
func (h *Handler) ListExpiring(c echo.Context) error {
	days := defaultExpiringWindowDays
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be an integer")
		}
		days = n
	}
	asOf, err := asOfParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListExpiring(c.Request().Context(), asOf, days)
	if err != nil {
		return apperr.HTTPError(err)
	}
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Window(items, pg), len(items), pg.Limit, pg.Offset))
}

func (h *Handler) Inventory(c echo.Context) error {
	asOf, err := asOfParam(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.InventorySummary(c.Request().Context(), asOf)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func asOfParam(c echo.Context) (*time.Time, error) {
	raw := c.QueryParam("asOf")
	t, err := dateutil.ParseOptionalDate(&raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return t, nil
}
