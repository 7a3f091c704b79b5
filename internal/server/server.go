package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docuplane/docintel/internal/audit"
	"github.com/docuplane/docintel/internal/export"
	"github.com/docuplane/docintel/internal/ingest"
	"github.com/docuplane/docintel/internal/repository"
)

// Server is the HTTP surface: document acceptance plus read-only job views.
// Authentication happens upstream; the tenant arrives as a trusted header.
type Server struct {
	logger    *slog.Logger
	ingestSvc *ingest.Service
	exportSvc *export.Service
	auditSvc  *audit.Service
	jobsRepo  repository.DocumentJobRepository
	itemsRepo repository.DocumentItemRepository
	http      *http.Server
}

func NewServer(
	addr string,
	logger *slog.Logger,
	ingestSvc *ingest.Service,
	exportSvc *export.Service,
	auditSvc *audit.Service,
	jobsRepo repository.DocumentJobRepository,
	itemsRepo repository.DocumentItemRepository,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:    logger,
		ingestSvc: ingestSvc,
		exportSvc: exportSvc,
		auditSvc:  auditSvc,
		jobsRepo:  jobsRepo,
		itemsRepo: itemsRepo,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	v1 := r.Group("/v1", tenantRequired())
	{
		v1.POST("/documents", s.ingestDocument)
		v1.GET("/jobs/:id", s.getJob)
		v1.GET("/jobs/:id/items", s.listJobItems)
		v1.GET("/jobs/:id/events", s.listJobEvents)
		v1.GET("/jobs/:id/export", s.exportJob)
	}

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Run() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
