package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/config"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/domain/enrollment"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/domain/market"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/domain/referral"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/apperr"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/coordinator"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/dataservice"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/db"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/middleware"
	"github.com/kolbymanginohealthcraft/market-mover-sub006/internal/platform/telemetry"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

// application holds the wired services behind the HTTP API.
type application struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool

	resolver   *market.Resolver
	enrollment *enrollment.Service
	referrals  *referral.Service
}

func newApplication(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: logger}

	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		app.pool = pool
		logger.Info().Msg("connected to database")
	}

	client, err := dataservice.NewClient(cfg.DataServiceURL,
		dataservice.WithHTTPClient(&http.Client{Timeout: cfg.DataServiceTimeout}),
		dataservice.WithRateLimit(cfg.DataServiceRPS, cfg.DataServiceBurst),
		dataservice.WithLogger(logger.With().Str("component", "dataservice").Logger()),
	)
	if err != nil {
		app.close()
		return nil, err
	}

	coord := coordinator.New(
		coordinator.WithTimeout(cfg.DataServiceTimeout),
		coordinator.WithLogger(logger.With().Str("component", "coordinator").Logger()),
	)

	resolverOpts := []market.ResolverOption{market.WithLogger(logger.With().Str("component", "market").Logger())}
	if app.pool != nil {
		resolverOpts = append(resolverOpts, market.WithStore(market.NewStore(app.pool)))
	}
	app.resolver = market.NewResolver(
		market.NewHTTPBoundarySource(client),
		market.NewCache(cfg.AreaCacheSize, cfg.AreaCacheTTL),
		coord,
		resolverOpts...,
	)

	app.enrollment = enrollment.NewService(enrollment.NewHTTPSource(client), coord,
		enrollment.WithConcurrency(cfg.EnrollmentFetchConcurrency),
		enrollment.WithYearFloor(cfg.EnrollmentYearFloor),
		enrollment.WithLogger(logger.With().Str("component", "enrollment").Logger()),
	)

	var src referral.Source = referral.NewHTTPSource(client)
	if cfg.ReferralBackend == config.BackendWarehouse {
		if app.pool == nil {
			app.close()
			return nil, fmt.Errorf("warehouse referral backend needs DATABASE_URL")
		}
		src = referral.NewEventAggregator(referral.NewEventSource(app.pool))
	}

	var locator referral.Locator = referral.NewHTTPLocator(client)
	if cfg.ElasticsearchURL != "" {
		idx, err := referral.NewIndexLocator(cfg.ElasticsearchURL, cfg.FacilityIndex)
		if err != nil {
			app.close()
			return nil, err
		}
		locator = idx
	}
	app.referrals = referral.NewService(src, coord,
		referral.WithLocator(referral.NewCachedLocator(locator, cfg.LocationCacheSize, cfg.LocationCacheTTL)),
		referral.WithDefaultLimit(cfg.ReferralSourceLimit),
		referral.WithLogger(logger.With().Str("component", "referral").Logger()),
	)

	return app, nil
}

func (a *application) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *application) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  a.cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost},
		AllowHeaders:  []string{"Content-Type", middleware.RequestIDHeader, middleware.SessionHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, apperr.SupersededHeader},
	}))
	e.Use(middleware.BodyLimit(a.cfg.BodyLimit))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, apperr.OK(map[string]string{"status": "ok"}))
	})
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool))
	}
	e.GET("/metrics", telemetry.Handler())

	api := e.Group("/api/v1",
		middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: a.cfg.RateLimitRPS,
			BurstSize:         a.cfg.RateLimitBurst,
		}),
		middleware.RequestTimeout(a.cfg.RequestTimeout),
	)
	market.NewHandler(a.resolver).RegisterRoutes(api)
	enrollment.NewHandler(a.enrollment, a.resolver).RegisterRoutes(api)
	referral.NewHandler(a.referrals).RegisterRoutes(api)

	return e
}
