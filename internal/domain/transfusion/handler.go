package transfusion

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/auth"
	"github.com/bloodbank/bloodbank/internal/platform/idgen"
	"github.com/bloodbank/bloodbank/pkg/dateutil"
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
	read.GET("/compatibility", h.Compatibility)
	read.GET("/recipients/:id/transfusions", h.List)
	read.GET("/transfusions/:id", h.Get)

	write := api.Group("", auth.RequireRole(auth.ClinicalRoles...))
	write.POST("/recipients/transfusions", h.Create)
	write.DELETE("/recipients/:id/transfusions/:tid", h.Delete)
}

func (h *Handler) Compatibility(c echo.Context) error {
	donorType, recipientType := c.QueryParam("donor"), c.QueryParam("recipient")
	if donorType == "" || recipientType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "donor and recipient query parameters are required")
	}
	res, err := h.svc.CheckCompatibility(donorType, recipientType)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

type createRequest struct {
	TransfusionNumber string  `json:"transfusion_number"`
	RecipientID       string  `json:"recipient_id"`
	BloodUnitID       string  `json:"blood_unit_id"`
	RequestID         *string `json:"request_id"`
	TransfusionDate   *string `json:"transfusion_date"`
	Hospital          *string `json:"hospital"`
	Physician         *string `json:"physician"`
	VolumeML          *int    `json:"volume_ml"`
	Outcome           string  `json:"outcome"`
	AdverseReactions  *string `json:"adverse_reactions"`
	Notes             *string `json:"notes"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "recipient_id must be a valid id")
	}
	unitID, err := uuid.Parse(req.BloodUnitID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "blood_unit_id must be a valid id")
	}
	var requestID *uuid.UUID
	if req.RequestID != nil && *req.RequestID != "" {
		id, err := uuid.Parse(*req.RequestID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "request_id must be a valid id")
		}
		requestID = &id
	}
	date, err := dateutil.ParseOptionalDate(req.TransfusionDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if req.TransfusionNumber == "" {
		if req.TransfusionNumber, err = h.ids.Next(ctx, idgen.Transfusion); err != nil {
			return apperr.HTTPError(err)
		}
	}
	rec, err := h.svc.CreateTransfusion(ctx, CreateTransfusionCommand{
		TransfusionNumber: req.TransfusionNumber,
		RecipientID:       recipientID,
		BloodUnitID:       unitID,
		RequestID:         requestID,
		TransfusionDate:   date,
		Hospital:          req.Hospital,
		Physician:         req.Physician,
		VolumeML:          req.VolumeML,
		Outcome:           req.Outcome,
		AdverseReactions:  req.AdverseReactions,
		Notes:             req.Notes,
		Actor:             auth.Actor(ctx),
	})
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetTransfusion(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) List(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListTransfusions(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Delete(c echo.Context) error {
	recipientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	txID, err := uuid.Parse(c.Param("tid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid transfusion id")
	}
	ctx := c.Request().Context()
	if err := h.svc.DeleteTransfusion(ctx, DeleteTransfusionCommand{
		RecipientID:   recipientID,
		TransfusionID: txID,
		Actor:         auth.Actor(ctx),
	}); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
