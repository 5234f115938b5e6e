package donor

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
	read.GET("/donors", h.ListDonors)
	read.GET("/donors/status", h.GetEligibility)
	read.GET("/donors/:id", h.GetDonor)
	read.GET("/donors/:id/deferrals", h.ListDeferrals)
	read.GET("/donors/:id/health", h.ListHealthAssessments)
	read.GET("/donors/:id/donations", h.ListDonations)
	read.GET("/deferrals/:id", h.GetDeferral)

	write := api.Group("", auth.RequireRole(auth.LabRoles...))
	write.POST("/donors", h.CreateDonor)
	write.PATCH("/donors/:id", h.UpdateDonor)
	write.DELETE("/donors/:id", h.RetireDonor)
	write.POST("/donors/:id/deferrals", h.CreateDeferral)
	write.POST("/donors/:id/health", h.RecordHealthAssessment)

	review := api.Group("", auth.RequireRole(auth.RolePhysician))
	review.POST("/deferrals/:id/review", h.ReviewDeferral)
}

type createDonorRequest struct {
	DonorNumber string  `json:"donor_number"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	DateOfBirth string  `json:"date_of_birth"`
	Gender      *string `json:"gender"`
	BloodType   string  `json:"blood_type"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	Address     *string `json:"address"`
	Status      string  `json:"status"`
}

func (h *Handler) CreateDonor(c echo.Context) error {
	var req createDonorRequest
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
	if req.DonorNumber == "" {
		if req.DonorNumber, err = h.ids.Next(ctx, idgen.Donor); err != nil {
			return apperr.HTTPError(err)
		}
	}

	d := &Donor{
		DonorNumber: req.DonorNumber,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: dob,
		Gender:      req.Gender,
		BloodType:   req.BloodType,
		Phone:       req.Phone,
		Email:       req.Email,
		Address:     req.Address,
		Status:      req.Status,
	}
	if err := h.svc.CreateDonor(ctx, d); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDonor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDonor(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

// ListDonors handles GET /donors. A number query parameter looks a donor up
// by donor number and returns at most one item.
func (h *Handler) ListDonors(c echo.Context) error {
	pg := pagination.FromContext(c)
	if number := c.QueryParam("number"); number != "" {
		d, err := h.svc.GetDonorByNumber(c.Request().Context(), number)
		if errors.Is(err, apperr.ErrNotFound) {
			return c.JSON(http.StatusOK, pagination.NewResponse([]*Donor{}, 0, pg.Limit, pg.Offset))
		}
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse([]*Donor{d}, 1, pg.Limit, pg.Offset))
	}
	f := ListFilter{
		Status:         c.QueryParam("status"),
		BloodType:      c.QueryParam("blood_type"),
		IncludeRetired: c.QueryParam("include_retired") == "true",
	}
	items, total, err := h.svc.ListDonors(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type updateDonorRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Gender    *string `json:"gender"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
	Address   *string `json:"address"`
}

func (h *Handler) UpdateDonor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateDonorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.UpdateContact(c.Request().Context(), UpdateContactCommand{
		DonorID:   id,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Gender:    req.Gender,
		Phone:     req.Phone,
		Email:     req.Email,
		Address:   req.Address,
	})
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) RetireDonor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if _, err := h.svc.RetireDonor(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetEligibility handles GET /donors/status?donorId=&asOf=&donationType=.
func (h *Handler) GetEligibility(c echo.Context) error {
	id, err := uuid.Parse(c.QueryParam("donorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "donorId must be a valid id")
	}
	q := EvaluateEligibilityQuery{DonorID: id, DonationType: DonationType(c.QueryParam("donationType"))}
	if raw := c.QueryParam("asOf"); raw != "" {
		asOf, err := dateutil.ParseDate(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		q.AsOf = &asOf
	}
	res, err := h.svc.EvaluateEligibility(c.Request().Context(), q)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListDonations(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListDonations(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

type createDeferralRequest struct {
	DeferralType string  `json:"deferral_type"`
	Reason       string  `json:"reason"`
	ReasonDetail *string `json:"reason_detail"`
	StartDate    *string `json:"start_date"`
	EndDate      *string `json:"end_date"`
	Indefinite   bool    `json:"indefinite"`
}

func (h *Handler) CreateDeferral(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req createDeferralRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	start, err := dateutil.ParseOptionalDate(req.StartDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	end, err := dateutil.ParseOptionalDate(req.EndDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	def, err := h.svc.CreateDeferral(ctx, CreateDeferralCommand{
		DonorID:      id,
		DeferralType: req.DeferralType,
		Reason:       req.Reason,
		ReasonDetail: req.ReasonDetail,
		StartDate:    start,
		EndDate:      end,
		Indefinite:   req.Indefinite,
		Actor:        auth.Actor(ctx),
	})
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, def)
}

func (h *Handler) ListDeferrals(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListDeferrals(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetDeferral(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	def, err := h.svc.GetDeferral(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, def)
}

type reviewDeferralRequest struct {
	Status string  `json:"status"`
	Note   *string `json:"note"`
}

func (h *Handler) ReviewDeferral(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reviewDeferralRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	def, err := h.svc.ReviewDeferral(ctx, ReviewDeferralCommand{
		DeferralID: id,
		Status:     req.Status,
		Actor:      auth.Actor(ctx),
		Note:       req.Note,
	})
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, def)
}

type recordHealthRequest struct {
	AssessedAt          *string  `json:"assessed_at"`
	HemoglobinGDL       *float64 `json:"hemoglobin_g_dl"`
	SystolicBP          *int     `json:"systolic_bp"`
	DiastolicBP         *int     `json:"diastolic_bp"`
	PulseBPM            *int     `json:"pulse_bpm"`
	TemperatureC        *float64 `json:"temperature_c"`
	WeightKG            *float64 `json:"weight_kg"`
	IsEligible          bool     `json:"is_eligible"`
	IneligibilityReason *string  `json:"ineligibility_reason"`
	NextEligibleDate    *string  `json:"next_eligible_date"`
	PermanentlyDeferred bool     `json:"permanently_deferred"`
}

func (h *Handler) RecordHealthAssessment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req recordHealthRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	assessedAt, err := dateutil.ParseOptionalDate(req.AssessedAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	next, err := dateutil.ParseOptionalDate(req.NextEligibleDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	ha, err := h.svc.RecordHealthAssessment(ctx, RecordHealthCommand{
		DonorID:             id,
		AssessedAt:          assessedAt,
		HemoglobinGDL:       req.HemoglobinGDL,
		SystolicBP:          req.SystolicBP,
		DiastolicBP:         req.DiastolicBP,
		PulseBPM:            req.PulseBPM,
		TemperatureC:        req.TemperatureC,
		WeightKG:            req.WeightKG,
		IsEligible:          req.IsEligible,
		IneligibilityReason: req.IneligibilityReason,
		NextEligibleDate:    next,
		PermanentlyDeferred: req.PermanentlyDeferred,
		Actor:               auth.Actor(ctx),
	})
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, ha)
}

func (h *Handler) ListHealthAssessments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListHealthAssessments(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}
