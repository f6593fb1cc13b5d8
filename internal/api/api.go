// Package api provides the HTTP API for the URL scanner service.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/syauqi01234-prog/url-scanner/internal/config"
	"github.com/syauqi01234-prog/url-scanner/internal/scan"
	"go.uber.org/zap"
)

// Server represents the HTTP API server.
type Server struct {
	config  config.ServerConfig
	manager *scan.Manager
	logger  *zap.SugaredLogger
	router  *gin.Engine
}

// New creates a new API server.
func New(cfg config.ServerConfig, manager *scan.Manager, logger *zap.SugaredLogger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:  cfg,
		manager: manager,
		logger:  logger,
		router:  gin.New(),
	}

	s.setupRoutes()
	return s
}

// Router returns the gin router.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	// Health endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ready", s.readyHandler)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// Synchronous scan: blocks until a verdict or terminal error
		v1.POST("/scan", s.scanHandler)

		// Background scan lifecycle
		v1.POST("/scans", s.startScanHandler)
		v1.GET("/scans/:id", s.scanStatusHandler)
		v1.POST("/scans/:id/cancel", s.cancelScanHandler)
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		c.Next()

		s.logger.Debugw("Request completed",
			"path", path,
			"status", c.Writer.Status(),
			"method", c.Request.Method,
		)
	}
}

// Health check handler
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "url-scanner",
	})
}

// Readiness check handler
func (s *Server) readyHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": "url-scanner",
	})
}

// Synchronous scan handler - submits the URL and waits for the verdict
func (s *Server) scanHandler(c *gin.Context) {
	var req ScanURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "url required",
		})
		return
	}

	report, err := s.manager.Run(c.Request.Context(), req.URL)
	if err != nil {
		s.renderScanError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":    req.URL,
		"report": report,
	})
}

// Start scan handler - submits the URL and polls in the background
func (s *Server) startScanHandler(c *gin.Context) {
	var req ScanURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "url required",
		})
		return
	}

	scanID, err := s.manager.Start(c.Request.Context(), req.URL, scan.CallbackConfig{
		ProgressURL: req.ProgressURL,
		CompleteURL: req.CompleteURL,
		APIKey:      c.GetHeader("X-Internal-API-Key"),
	})
	if err != nil {
		s.renderScanError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "started",
		"message": "URL scan started",
		"scan_id": scanID,
	})
}

// Scan status handler
func (s *Server) scanStatusHandler(c *gin.Context) {
	job, ok := s.manager.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "unknown scan id",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}

// Cancel scan handler
func (s *Server) cancelScanHandler(c *gin.Context) {
	scanID := c.Param("id")
	if !s.manager.Cancel(scanID) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "unknown scan id",
		})
		return
	}

	s.logger.Infow("Scan cancellation requested", "scan_id", scanID)
	c.JSON(http.StatusOK, gin.H{
		"status":  "cancelling",
		"scan_id": scanID,
	})
}

// renderScanError maps the orchestration error kinds onto HTTP status codes.
// Every message is display-ready, so the error string goes out as-is.
func (s *Server) renderScanError(c *gin.Context, err error) {
	var (
		invalidInput *scan.InvalidInputError
		transport    *scan.TransportError
		malformed    *scan.MalformedResponseError
		failed       *scan.AnalysisFailedError
		timeout      *scan.TimeoutError
		invalidRep   *scan.InvalidReportError
		emptyRep     *scan.EmptyReportError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &invalidInput):
		status = http.StatusBadRequest
	case errors.As(err, &transport), errors.As(err, &malformed):
		status = http.StatusBadGateway
	case errors.As(err, &timeout):
		status = http.StatusGatewayTimeout
	case errors.As(err, &failed), errors.As(err, &invalidRep), errors.As(err, &emptyRep):
		status = http.StatusUnprocessableEntity
	}

	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}
