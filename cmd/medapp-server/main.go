package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medapp/medapp/internal/config"
	"github.com/medapp/medapp/internal/domain/appointment"
	"github.com/medapp/medapp/internal/domain/encounter"
	"github.com/medapp/medapp/internal/domain/license"
	"github.com/medapp/medapp/internal/domain/patient"
	"github.com/medapp/medapp/internal/domain/study"
	"github.com/medapp/medapp/internal/domain/user"
	"github.com/medapp/medapp/internal/platform/auth"
	"github.com/medapp/medapp/internal/platform/db"
	"github.com/medapp/medapp/internal/platform/middleware"
	"github.com/medapp/medapp/internal/platform/phi"
	"github.com/medapp/medapp/internal/platform/validate"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:           "medapp-server",
		Short:         "Medical records API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(seedsCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// setup loads and validates the configuration and opens the pool. Callers
// close the pool.
func setup(ctx context.Context) (*config.Config, *pgxpool.Pool, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, newLogger(nil), err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, logger, fmt.Errorf("invalid configuration: %w", err)
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBConnectTimeout)
	if err != nil {
		return nil, nil, logger, err
	}
	return cfg, pool, logger, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// services holds the domain services shared by the HTTP server and the CLI.
type services struct {
	users        *user.Service
	licenses     *license.Service
	patients     *patient.Service
	encounters   *encounter.Service
	appointments *appointment.Service
	studies      *study.Service
}

func newServices(cfg *config.Config, pool *pgxpool.Pool, phiSvc *phi.Service) *services {
	userRepo := user.NewRepo(pool, phiSvc.Encryptor())
	patientRepo := patient.NewRepo(pool, phiSvc)
	tokens := auth.NewTokenIssuer([]byte(cfg.AuthSigningKey), cfg.AuthIssuer, cfg.AuthTokenTTL)

	return &services{
		users:        user.NewService(userRepo, tokens, cfg.AuthIssuer),
		licenses:     license.NewService(license.NewRepo(pool), userRepo),
		patients:     patient.NewService(patientRepo),
		encounters:   encounter.NewService(encounter.NewRepo(pool), patientRepo, userRepo),
		appointments: appointment.NewService(appointment.NewRepo(pool), patientRepo, userRepo),
		studies:      study.NewService(study.NewRepo(pool), patientRepo, userRepo),
	}
}

// newServer builds the echo instance with the middleware chain and every
// route. It does not touch the database until requests arrive.
func newServer(cfg *config.Config, pool *pgxpool.Pool, phiSvc *phi.Service, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))
	e.Use(middleware.BodyLimit("1M", "4M", "/api/v1/encounters", "/api/v1/studies"))

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	e.Use(middleware.RateLimit(rateLimitCfg))

	jwtCfg := auth.JWTConfig{
		SigningKey: []byte(cfg.AuthSigningKey),
		Issuer:     cfg.AuthIssuer,
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}
	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant, auth.TenantSkipper))
	e.Use(middleware.Audit(logger, nil))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	svc := newServices(cfg, pool, phiSvc)
	api := e.Group("/api/v1")
	user.NewHandler(svc.users).RegisterRoutes(api)
	license.NewHandler(svc.licenses).RegisterRoutes(api)
	patient.NewHandler(svc.patients).RegisterRoutes(api)
	encounter.NewHandler(svc.encounters).RegisterRoutes(api)
	appointment.NewHandler(svc.appointments).RegisterRoutes(api)
	study.NewHandler(svc.studies).RegisterRoutes(api)

	return e
}

func runServer() error {
	ctx := context.Background()
	cfg, pool, logger, err := setup(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer pool.Close()
	logger.Info().Str("env", cfg.Env).Msg("connected to database")

	phiSvc, err := phi.NewService(cfg.PHIEncryptionKey, logger)
	if err != nil {
		return err
	}

	e := newServer(cfg, pool, phiSvc, logger)

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
