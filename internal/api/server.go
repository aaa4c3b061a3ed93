// Package api exposes the report workflow over HTTP: requirement
// submission, cost and structure previews, asynchronous generation, status
// polling, report retrieval, session management and cost approvals.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vikasvdk5/WestBay/internal/cost"
	"github.com/vikasvdk5/WestBay/internal/logging"
	"github.com/vikasvdk5/WestBay/internal/orchestrator"
	"github.com/vikasvdk5/WestBay/internal/registry"
)

// Version is reported by the health endpoint.
var Version = "dev"

// Cleaner removes a session's stored artifacts. *artifacts.Manager satisfies it.
type Cleaner interface {
	Cleanup(sessionID string) error
}

// Deps are the collaborators of a Server. Registry and Launcher are required.
type Deps struct {
	Registry   *registry.Registry
	Launcher   *orchestrator.Launcher
	Calculator *cost.Calculator
	// Approvals is set when the approve cost policy is active.
	Approvals *orchestrator.PendingApprovals
	Artifacts Cleaner
	// Gatherer backs /metrics. Nil means the default Prometheus registry.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Options tune the HTTP surface.
type Options struct {
	Debug      bool
	EnableCORS bool
}

// Server serves the REST API.
type Server struct {
	engine    *gin.Engine
	registry  *registry.Registry
	launcher  *orchestrator.Launcher
	calc      *cost.Calculator
	approvals *orchestrator.PendingApprovals
	artifacts Cleaner
	logger    *slog.Logger
	startTime time.Time
	newID     func() string
}

// New builds a Server and its routes.
func New(d Deps, opts Options) (*Server, error) {
	if d.Registry == nil || d.Launcher == nil {
		return nil, errors.New("api server needs a registry and a launcher")
	}
	if d.Calculator == nil {
		d.Calculator = cost.NewCalculator(cost.PriceTable{})
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:    gin.New(),
		registry:  d.Registry,
		launcher:  d.Launcher,
		calc:      d.Calculator,
		approvals: d.Approvals,
		artifacts: d.Artifacts,
		logger:    logging.OrDiscard(d.Logger),
		startTime: time.Now(),
		newID:     newSessionID,
	}

	s.engine.Use(requestLogger(s.logger))
	s.engine.Use(recovery(s.logger))
	if opts.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
		s.engine.Use(cors.New(corsConfig))
	}

	s.setupRoutes(d.Gatherer)
	return s, nil
}

func (s *Server) setupRoutes(g prometheus.Gatherer) {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	api.Use(jsonOnly())
	{
		api.POST("/submit-requirements", s.submitRequirements)
		api.GET("/cost-estimate/:id", s.costEstimate)
		api.GET("/preview-structure/:id", s.previewStructure)
		api.POST("/generate-report", s.generateReport)
		api.GET("/report-status/:id", s.reportStatus)
		api.GET("/report/:id", s.report)
		api.GET("/debug/workflow-state/:id", s.debugState)
	}

	sessions := api.Group("/sessions")
	{
		sessions.GET("", s.listSessions)
		sessions.DELETE("/:id", s.deleteSession)
		sessions.GET("/:id/history", s.sessionHistory)
	}

	approvals := api.Group("/approvals")
	{
		approvals.GET("", s.listApprovals)
		approvals.POST("/:id", s.resolveApproval)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("api server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Version:     Version,
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
		RunningJobs: s.launcher.Active(),
	})
}
