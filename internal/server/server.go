// Package server exposes document analysis and report history over HTTP.
//
// POST   /api/v1/analyze      upload a document (multipart field "file")
// GET    /api/v1/reports      most recent reports
// GET    /api/v1/reports/:id  one report (?format=json|markdown|html)
// DELETE /api/v1/reports/:id  delete a report
// GET    /api/v1/health       liveness and store status
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/legalscan/internal/model"
	"github.com/ppiankov/legalscan/internal/pipeline"
	"github.com/ppiankov/legalscan/internal/store"
	"github.com/ppiankov/legalscan/internal/worker"
)

// Version is reported by the health endpoint
var Version = "dev"

// Analyzer turns an uploaded file into a stored report
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path, name string) (*model.Report, error)
}

// Server holds the HTTP handlers' dependencies
type Server struct {
	analyzer     Analyzer
	reports      store.ReportStore
	renderer     *pipeline.Renderer
	cfg          model.ServerConfig
	historyLimit int
	limiter      *worker.Limiter
	uploadDir    string
	ownsDir      bool
	allowed      map[string]bool
}

// New creates a server; uploads go to cfg.UploadDir or a fresh temp directory
func New(analyzer Analyzer, reports store.ReportStore, renderer *pipeline.Renderer, cfg model.ServerConfig, historyLimit int) (*Server, error) {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if historyLimit <= 0 {
		historyLimit = 20
	}

	s := &Server{
		analyzer:     analyzer,
		reports:      reports,
		renderer:     renderer,
		cfg:          cfg,
		historyLimit: historyLimit,
		uploadDir:    cfg.UploadDir,
		allowed:      make(map[string]bool),
	}
	for _, ext := range cfg.AllowedExtensions {
		s.allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}

	if s.uploadDir == "" {
		dir, err := os.MkdirTemp("", "legalscan-uploads-*")
		if err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
		s.uploadDir, s.ownsDir = dir, true
	} else if err := os.MkdirAll(s.uploadDir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return s, nil
}

// Router builds the gin engine with all routes
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(corsMiddleware(s.cfg.AllowedOrigins))
	}

	api := r.Group("/api/v1")
	{
		api.GET("/health", s.health)
		api.POST("/analyze", s.rateLimit(), s.analyze)
		api.GET("/reports", s.listReports)
		api.GET("/reports/:id", s.getReport)
		api.DELETE("/reports/:id", s.deleteReport)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Forget clients idle for 10 minutes
	if s.limiter != nil {
		go s.limiter.PruneEvery(ctx, time.Minute, 10*time.Minute)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", slog.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close removes the upload directory if the server created it
func (s *Server) Close() error {
	if !s.ownsDir {
		return nil
	}
	return os.RemoveAll(s.uploadDir)
}
