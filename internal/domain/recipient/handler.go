package recipient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/auth"
	"github.com/bloodbank/bloodbank/internal/platform/idgen"
	"github.com/bloodbank/bloodbank/pkg/dateutil"
	"github.com/bloodbank/bloodbank/pkg/pagination"
)

type Handler struct {
	svc *Service
	ids *idgen.Generator
}

func NewHandler(svc *Service, ids *idgen.Generator) *Handler {
	return &Handler{svc: svc, ids: ids}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.ReadRoles...))
	read.GET("/recipients", h.ListRecipients)
	read.GET("/recipients/:id", h.GetRecipient)
	read.GET("/recipients/:id/requests", h.ListRequests)
	read.GET("/blood-requests", h.ListAllRequests)
	read.GET("/blood-requests/:id", h.GetRequest)

	write := api.Group("", auth.RequireRole(auth.ClinicalRoles...))
	write.POST("/recipients", h.CreateRecipient)
	write.POST("/recipients/:id/requests", h.CreateRequest)
	write.POST("/blood-requests/:id/status", h.UpdateRequestStatus)
}

type createRecipientRequest struct {
	RecipientNumber string  `json:"recipient_number"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	DateOfBirth     string  `json:"date_of_birth"`
	Gender          *string `json:"gender"`
	BloodType       string  `json:"blood_type"`
	Hospital        *string `json:"hospital"`
	Phone           *string `json:"phone"`
	MedicalNotes    *string `json:"medical_notes"`
}

func (h *Handler) CreateRecipient(c echo.Context) error {
	var req createRecipientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DateOfBirth == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date_of_birth is required")
	}
	dob, err := dateutil.ParseDate(req.DateOfBirth)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if req.RecipientNumber == "" {
		if req.RecipientNumber, err = h.ids.Next(ctx, idgen.Recipient); err != nil {
			return apperr.HTTPError(err)
		}
	}
	r := &Recipient{
		RecipientNumber: req.RecipientNumber,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		DateOfBirth:     dob,
		Gender:          req.Gender,
		BloodType:       req.BloodType,
		Hospital:        req.Hospital,
		Phone:           req.Phone,
		MedicalNotes:    req.MedicalNotes,
	}
	if err := h.svc.CreateRecipient(ctx, r); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetRecipient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.GetRecipient(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, r)
}

// ListRecipients handles GET /recipients. A number query parameter looks a
// recipient up by recipient number and returns at most one item.
func (h *Handler) ListRecipients(c echo.Context) error {
	pg := pagination.FromContext(c)
	if number := c.QueryParam("number"); number != "" {
		r, err := h.svc.GetRecipientByNumber(c.Request().Context(), number)
		if errors.Is(err, apperr.ErrNotFound) {
			return c.JSON(http.StatusOK, pagination.NewResponse([]*Recipient{}, 0, pg.Limit, pg.Offset))
		}
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse([]*Recipient{r}, 1, pg.Limit, pg.Offset))
	}
	f := ListFilter{BloodType: c.QueryParam("blood_type"), Hospital: c.QueryParam("hospital")}
	items, total, err := h.svc.ListRecipients(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type createRequestRequest struct {
	RequestNumber  string  `json:"request_number"`
	BloodType      string  `json:"blood_type"`
	Component      string  `json:"component"`
	UnitsRequested int     `json:"units_requested"`
	Urgency        string  `json:"urgency"`
	RequiredBy     *string `json:"required_by"`
	Notes          *string `json:"notes"`
}

func (h *Handler) CreateRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req createRequestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	requiredBy, err := dateutil.ParseOptionalDate(req.RequiredBy)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if req.RequestNumber == "" {
		if req.RequestNumber, err = h.ids.Next(ctx, idgen.Request); err != nil {
			return apperr.HTTPError(err)
		}
	}
	br, err := h.svc.CreateRequest(ctx, CreateRequestCommand{
		RequestNumber:  req.RequestNumber,
		RecipientID:    id,
		BloodType:      req.BloodType,
		Component:      req.Component,
		UnitsRequested: req.UnitsRequested,
		Urgency:        req.Urgency,
		RequiredBy:     requiredBy,
		Notes:          req.Notes,
	})
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, br)
}

func (h *Handler) GetRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	br, err := h.svc.GetRequest(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, br)
}

func (h *Handler) ListRequests(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListRequests(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListAllRequests(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := RequestFilter{Status: c.QueryParam("status"), Urgency: c.QueryParam("urgency")}
	items, total, err := h.svc.ListAllRequests(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type updateRequestStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

func (h *Handler) UpdateRequestStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateRequestStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	br, err := h.svc.UpdateRequestStatus(ctx, UpdateRequestStatusCommand{
		RequestID: id,
		Status:    req.Status,
		Actor:     auth.Actor(ctx),
		Notes:     req.Notes,
	})
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, br)
}
