// Package httpapi provides the HTTP API for promptpress.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptpress/internal/allocation"
	"github.com/fyrsmithlabs/promptpress/internal/analytics"
	"github.com/fyrsmithlabs/promptpress/internal/budget"
	"github.com/fyrsmithlabs/promptpress/internal/pipeline"
)

// Compressor is the pipeline surface the server depends on.
type Compressor interface {
	Compress(ctx context.Context, profile map[string]any, interaction pipeline.InteractionType, complexity float64, opts pipeline.Options) pipeline.Result
	RecordOutcome(recordID string, userFeedback, responseQuality *float64) error
	StartExperiment(name string, strategies []allocation.Strategy, trafficSplit []float64, duration time.Duration) error
	AssignStrategy(experiment, participantID string) (allocation.Strategy, error)
	EndExperiment(name string) (analytics.Report, error)
	ExperimentStatus(name string) (analytics.ExperimentStatus, error)
	Metrics(window time.Duration) analytics.WindowMetrics
	Thresholds() budget.ThresholdSnapshot
}

// Server provides HTTP endpoints for the compression pipeline.
type Server struct {
	echo     *echo.Echo
	pipeline Compressor
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server around a compression pipeline.
func NewServer(p Compressor, logger *zap.Logger, cfg *Config) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9093,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		pipeline: p,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/compress", s.handleCompress)
	v1.POST("/outcome", s.handleOutcome)
	v1.GET("/metrics", s.handleMetrics)
	v1.GET("/thresholds", s.handleThresholds)
	v1.POST("/experiments", s.handleStartExperiment)
	v1.GET("/experiments/:name", s.handleExperimentStatus)
	v1.POST("/experiments/:name/assign", s.handleAssign)
	v1.DELETE("/experiments/:name", s.handleEndExperiment)
}

// CompressRequest is the request body for POST /api/v1/compress.
type CompressRequest struct {
	Profile       map[string]any `json:"profile"`
	Interaction   string         `json:"interaction"`
	Complexity    float64        `json:"complexity"`
	Model         string         `json:"model,omitempty"`
	TokenBudget   int            `json:"token_budget,omitempty"`
	QualityTarget float64        `json:"quality_target,omitempty"`
	HistoryLength int            `json:"history_length,omitempty"`
	Strategy      string         `json:"strategy,omitempty"`
	Experiment    string         `json:"experiment,omitempty"`
	ParticipantID string         `json:"participant_id,omitempty"`
}

// OutcomeRequest is the request body for POST /api/v1/outcome.
type OutcomeRequest struct {
	RecordID        string   `json:"record_id"`
	UserFeedback    *float64 `json:"user_feedback,omitempty"`
	ResponseQuality *float64 `json:"response_quality,omitempty"`
}

// StartExperimentRequest is the request body for POST /api/v1/experiments.
type StartExperimentRequest struct {
	Name         string    `json:"name"`
	Strategies   []string  `json:"strategies"`
	TrafficSplit []float64 `json:"traffic_split"`
	DurationSecs int       `json:"duration_seconds"`
}

// AssignRequest is the request body for POST /api/v1/experiments/:name/assign.
type AssignRequest struct {
	ParticipantID string `json:"participant_id"`
}

// AssignResponse is the response body for a strategy assignment.
type AssignResponse struct {
	Experiment string              `json:"experiment"`
	Strategy   allocation.Strategy `json:"strategy"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleCompress runs a profile through the compression pipeline.
func (s *Server) handleCompress(c echo.Context) error {
	var req CompressRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid compress request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Interaction == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "interaction field is required")
	}
	if req.Strategy != "" && !allocation.Strategy(req.Strategy).Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown strategy %q", req.Strategy))
	}

	opts := pipeline.Options{
		Model:                     req.Model,
		TokenBudgetOverride:       req.TokenBudget,
		QualityTarget:             req.QualityTarget,
		ConversationHistoryLength: req.HistoryLength,
		ForceStrategy:             allocation.Strategy(req.Strategy),
		Experiment:                req.Experiment,
		ParticipantID:             req.ParticipantID,
	}

	result := s.pipeline.Compress(c.Request().Context(), req.Profile, pipeline.InteractionType(req.Interaction), req.Complexity, opts)

	return c.JSON(http.StatusOK, result)
}

// handleOutcome attaches downstream quality signals to a compression record.
func (s *Server) handleOutcome(c echo.Context) error {
	var req OutcomeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RecordID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "record_id field is required")
	}

	if err := s.pipeline.RecordOutcome(req.RecordID, req.UserFeedback, req.ResponseQuality); err != nil {
		return analyticsHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleMetrics reports rolling pipeline metrics. The window query parameter
// accepts a Go duration; the default window applies when absent.
func (s *Server) handleMetrics(c echo.Context) error {
	window := analytics.DefaultWindow
	if raw := c.QueryParam("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "window must be a positive duration")
		}
		window = parsed
	}
	return c.JSON(http.StatusOK, s.pipeline.Metrics(window))
}

func (s *Server) handleThresholds(c echo.Context) error {
	return c.JSON(http.StatusOK, s.pipeline.Thresholds())
}

// handleStartExperiment registers a new A/B experiment.
func (s *Server) handleStartExperiment(c echo.Context) error {
	var req StartExperimentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	strategies := make([]allocation.Strategy, len(req.Strategies))
	for i, raw := range req.Strategies {
		strategies[i] = allocation.Strategy(raw)
	}

	err := s.pipeline.StartExperiment(req.Name, strategies, req.TrafficSplit, time.Duration(req.DurationSecs)*time.Second)
	if err != nil {
		return analyticsHTTPError(err)
	}

	s.logger.Info("experiment started",
		zap.String("experiment", req.Name),
		zap.Int("variants", len(strategies)),
	)
	return c.NoContent(http.StatusCreated)
}

func (s *Server) handleExperimentStatus(c echo.Context) error {
	status, err := s.pipeline.ExperimentStatus(c.Param("name"))
	if err != nil {
		return analyticsHTTPError(err)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleAssign(c echo.Context) error {
	var req AssignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	name := c.Param("name")
	strategy, err := s.pipeline.AssignStrategy(name, req.ParticipantID)
	if err != nil {
		return analyticsHTTPError(err)
	}
	return c.JSON(http.StatusOK, AssignResponse{Experiment: name, Strategy: strategy})
}

func (s *Server) handleEndExperiment(c echo.Context) error {
	report, err := s.pipeline.EndExperiment(c.Param("name"))
	if err != nil {
		return analyticsHTTPError(err)
	}

	s.logger.Info("experiment ended",
		zap.String("experiment", report.Name),
		zap.String("winner", string(report.Winner)),
	)
	return c.JSON(http.StatusOK, report)
}

// analyticsHTTPError maps analytics sentinel errors onto HTTP statuses.
func analyticsHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, analytics.ErrExperimentNotFound),
		errors.Is(err, analytics.ErrRecordNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, analytics.ErrExperimentExists),
		errors.Is(err, analytics.ErrExperimentEnded),
		errors.Is(err, analytics.ErrOutcomeSet):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
