// Package server exposes the diagnosis engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/netmend/internal/apply"
	"github.com/fyrsmithlabs/netmend/internal/detect"
	"github.com/fyrsmithlabs/netmend/internal/fixplan"
	"github.com/fyrsmithlabs/netmend/internal/inference"
	"github.com/fyrsmithlabs/netmend/internal/knowledge"
	"github.com/fyrsmithlabs/netmend/internal/learning"
	"github.com/fyrsmithlabs/netmend/internal/problem"
	"github.com/fyrsmithlabs/netmend/internal/session"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr string
}

// Server provides the netmend HTTP API.
type Server struct {
	echo    *echo.Echo
	manager *session.Manager
	kb      *knowledge.Service
	logger  *zap.Logger
	config  *Config
	metrics *metrics
}

// NewServer wires routes and middleware. The registry may be nil; the
// default Prometheus registry is then used.
func NewServer(manager *session.Manager, kb *knowledge.Service, logger *zap.Logger, cfg *Config, registry *prometheus.Registry) (*Server, error) {
	if manager == nil {
		return nil, errors.New("session manager is required")
	}
	if kb == nil {
		return nil, errors.New("knowledge base is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Addr: ":8420"}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		manager: manager,
		kb:      kb,
		logger:  logger,
		config:  cfg,
		metrics: newMetrics(registry),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			status := c.Response().Status
			if err != nil {
				var httpErr *echo.HTTPError
				if errors.As(err, &httpErr) {
					status = httpErr.Code
				}
			}
			s.metrics.observe(c.Request().Method, c.Path(), status, duration)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s.registerRoutes(registry)
	return s, nil
}

func (s *Server) registerRoutes(registry *prometheus.Registry) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/diagnose", s.handleDiagnose)
	v1.POST("/recommend", s.handleRecommend)
	v1.POST("/apply", s.handleApply)
	v1.POST("/feedback", s.handleFeedback)
	v1.GET("/rules", s.handleRules)
	v1.GET("/stats", s.handleStats)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleDiagnose(c echo.Context) error {
	var state detect.DeviceState
	if err := c.Bind(&state); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if state.Device == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "device field is required")
	}

	report, err := s.manager.Diagnose(c.Request().Context(), &state)
	if err != nil {
		s.logger.Error("diagnose failed", zap.String("device", state.Device), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

// RecommendRequest is the request body for POST /api/v1/recommend.
type RecommendRequest struct {
	Diagnosis *inference.Diagnosis `json:"diagnosis"`
	Passing   []problem.Category   `json:"passing,omitempty"`
	Confirmed bool                 `json:"confirmed,omitempty"`
}

func (s *Server) handleRecommend(c echo.Context) error {
	var req RecommendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Diagnosis == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "diagnosis field is required")
	}

	rec, err := s.manager.Recommend(c.Request().Context(), req.Diagnosis, req.Passing, req.Confirmed)
	if err != nil {
		if errors.Is(err, fixplan.ErrMissingPrerequisite) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		s.logger.Error("recommend failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleApply(c echo.Context) error {
	var req session.ApplyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Plan == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "plan field is required")
	}

	out, err := s.manager.Apply(c.Request().Context(), &req)
	if err != nil {
		if errors.Is(err, apply.ErrValidationFailure) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		s.logger.Error("apply failed", zap.String("plan_id", req.Plan.ID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleFeedback(c echo.Context) error {
	var fb learning.Feedback
	if err := c.Bind(&fb); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := s.manager.Feedback(c.Request().Context(), &fb); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

// RulesResponse is the response body for GET /api/v1/rules.
type RulesResponse struct {
	Rules []knowledge.Rule `json:"rules"`
}

func (s *Server) handleRules(c echo.Context) error {
	rules := s.kb.Rules()
	if cat := c.QueryParam("category"); cat != "" {
		filtered := rules[:0]
		for _, r := range rules {
			if string(r.Category) == cat {
				filtered = append(filtered, r)
			}
		}
		rules = filtered
	}
	return c.JSON(http.StatusOK, RulesResponse{Rules: rules})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.kb.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

// Start begins serving. It blocks until Shutdown or failure.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
	return s.echo.Start(s.config.Addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.echo }

func statusLabel(code int) string { return strconv.Itoa(code) }
