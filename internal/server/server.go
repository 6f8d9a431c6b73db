package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rivalscan/rivalscan/config"
	core "github.com/rivalscan/rivalscan/internal/agent/core"
	"github.com/rivalscan/rivalscan/internal/agent/telemetry"
)

// researchRunner is the slice of the orchestrator the HTTP layer needs.
type researchRunner interface {
	ExecuteResearch(ctx context.Context, query core.ResearchQuery) core.ResearchOutcome
	GetWorkflowStatus(workflowID string) (*core.WorkflowExecution, bool)
	ValidateSystem(ctx context.Context) core.ValidationReport
}

// Run wires the orchestrator into an echo server and blocks until it stops.
func Run(ctx context.Context, cfg *config.Config) error {
	tele := telemetry.NewTelemetry(cfg.Telemetry)
	if err := tele.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	orch, err := core.NewOrchestrator(ctx, cfg, tele)
	if err != nil {
		return err
	}
	e := newEcho(cfg, orch)
	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	return e.Start(addr)
}

func newEcho(cfg *config.Config, runner researchRunner) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h := &ResearchHandler{Runner: runner, Config: cfg}
	api := e.Group("/api")
	if cfg.Server.JWTSecret != "" {
		secret := []byte(cfg.Server.JWTSecret)
		api.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	}
	h.Register(api)
	return e
}
