package main

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/internal/config"
	"github.com/bloodbank/bloodbank/internal/domain/bloodunit"
	"github.com/bloodbank/bloodbank/internal/domain/donor"
	"github.com/bloodbank/bloodbank/internal/domain/recipient"
	"github.com/bloodbank/bloodbank/internal/domain/transfusion"
	"github.com/bloodbank/bloodbank/internal/platform/auth"
	"github.com/bloodbank/bloodbank/internal/platform/db"
	"github.com/bloodbank/bloodbank/internal/platform/idgen"
	"github.com/bloodbank/bloodbank/internal/platform/metrics"
	"github.com/bloodbank/bloodbank/internal/platform/middleware"
)

type services struct {
	donors       *donor.Service
	units        *bloodunit.Service
	recipients   *recipient.Service
	transfusions *transfusion.Service
}

// newServices wires the Postgres repositories into the domain services.
// Every service shares one transactor so nested InTx calls join the
// caller's transaction.
func newServices(cfg *config.Config, pool *pgxpool.Pool, m *metrics.Metrics, logger zerolog.Logger) *services {
	tx := db.NewPoolTransactor(pool)

	donors := donor.NewService(
		donor.NewDonorRepoPG(pool),
		donor.NewDeferralRepoPG(pool),
		donor.NewHealthRepoPG(pool),
		tx,
		donor.NewRules(cfg.MinDonationIntervalDays),
	)
	donors.SetMetrics(m)
	donors.SetLogger(logger)

	units := bloodunit.NewService(bloodunit.NewRepoPG(pool), donors, tx, cfg.UnitShelfLifeDays)
	units.SetMetrics(m)
	units.SetLogger(logger)

	recipients := recipient.NewService(recipient.NewRecipientRepoPG(pool), recipient.NewRequestRepoPG(pool), tx)
	recipients.SetLogger(logger)

	transfusions := transfusion.NewService(transfusion.NewRepoPG(pool), units, recipients, tx)
	transfusions.SetEnforceCompatibility(cfg.EnforceABOCompatibility)
	transfusions.SetMetrics(m)
	transfusions.SetLogger(logger)

	return &services{donors: donors, units: units, recipients: recipients, transfusions: transfusions}
}

func newServer(cfg *config.Config, logger zerolog.Logger, svcs *services, ids *idgen.Generator, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.Logger(logger))
	e.Use(m.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(echomw.BodyLimit("1M"))

	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: cfg.SigningKey(),
	}
	api := e.Group("/api/v1")
	if cfg.IsDev() {
		api.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		api.Use(auth.JWTMiddleware(jwtCfg))
	}
	api.Use(middleware.Audit(logger))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(middleware.RequestTimeout(cfg.RequestTimeout()))

	donor.NewHandler(svcs.donors, ids).RegisterRoutes(api)
	bloodunit.NewHandler(svcs.units, ids).RegisterRoutes(api)
	recipient.NewHandler(svcs.recipients, ids).RegisterRoutes(api)
	transfusion.NewHandler(svcs.transfusions, ids).RegisterRoutes(api)

	return e
}
