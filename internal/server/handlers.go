package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ppiankov/legalscan/internal/extract"
	"github.com/ppiankov/legalscan/internal/model"
	"github.com/ppiankov/legalscan/internal/store"
)

// maxListLimit caps the ?limit parameter of the history listing
const maxListLimit = 100

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse is the body of the health endpoint
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   string `json:"store"`
}

// ReportSummary is one history entry
type ReportSummary struct {
	ID         string           `json:"id"`
	Filename   string           `json:"filename"`
	RiskLevel  model.Level      `json:"risk_level"`
	RiskScores model.RiskScores `json:"risk_scores"`
	CreatedAt  time.Time        `json:"created_at"`
}

// ListResponse is the body of the history listing
type ListResponse struct {
	Reports []ReportSummary `json:"reports"`
	Count   int             `json:"count"`
}

func fail(c *gin.Context, code int, errCode, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{Error: errCode, Message: message, Code: code})
}

func (s *Server) health(c *gin.Context) {
	if p, ok := s.reports.(store.Pinger); ok {
		if err := p.Ping(c.Request.Context()); err != nil {
			slog.Warn("health check: store unreachable", slog.Any("error", err))
			c.JSON(http.StatusServiceUnavailable, HealthResponse{
				Status:  "unhealthy",
				Version: Version,
				Store:   "unhealthy: " + err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: Version, Store: "healthy"})
}

// analyze stores the upload under a unique name, analyzes it and removes it
func (s *Server) analyze(c *gin.Context) {
	limit := s.cfg.MaxUploadBytes
	if c.Request.ContentLength > limit {
		fail(c, http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Sprintf("Upload exceeds the %d MB limit.", limit>>20))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("Upload exceeds the %d MB limit.", limit>>20))
			return
		}
		fail(c, http.StatusBadRequest, "invalid_request",
			"No file provided. Upload a file with the field name 'file'.")
		return
	}

	original := filepath.Base(header.Filename)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(original), "."))
	if !s.allowed[ext] {
		fail(c, http.StatusBadRequest, "invalid_file_type",
			fmt.Sprintf("Unsupported file format '%s'. Allowed: %s.", ext, s.allowedList()))
		return
	}

	stored := filepath.Join(s.uploadDir, uuid.NewString()+"."+ext)
	if err := c.SaveUploadedFile(header, stored); err != nil {
		slog.Error("failed to store upload", slog.String("file", original), slog.Any("error", err))
		fail(c, http.StatusInternalServerError, "upload_failed", "Failed to store the uploaded file.")
		return
	}
	defer func() {
		if err := os.Remove(stored); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove upload", slog.String("path", stored), slog.Any("error", err))
		}
	}()

	report, err := s.analyzer.AnalyzeFile(c.Request.Context(), stored, original)
	switch {
	case errors.Is(err, extract.ErrNoText):
		fail(c, http.StatusUnprocessableEntity, "empty_document",
			"No text could be extracted from the document.")
		return
	case errors.Is(err, extract.ErrUnsupportedInput):
		fail(c, http.StatusBadRequest, "invalid_file_type", err.Error())
		return
	case err != nil:
		slog.Error("analysis failed", slog.String("file", original), slog.Any("error", err))
		fail(c, http.StatusInternalServerError, "analysis_failed", "Error processing document: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, report)
}

func (s *Server) listReports(c *gin.Context) {
	limit := s.historyLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	reports, err := s.reports.List(c.Request.Context(), limit)
	if err != nil {
		slog.Error("failed to list reports", slog.Any("error", err))
		fail(c, http.StatusInternalServerError, "store_error", "Failed to list reports.")
		return
	}

	resp := ListResponse{Reports: make([]ReportSummary, 0, len(reports))}
	for _, r := range reports {
		resp.Reports = append(resp.Reports, ReportSummary{
			ID:         r.ID,
			Filename:   r.Filename,
			RiskLevel:  r.RiskLevel,
			RiskScores: r.RiskScores,
			CreatedAt:  r.CreatedAt,
		})
	}
	resp.Count = len(resp.Reports)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getReport(c *gin.Context) {
	report, ok := s.lookup(c)
	if !ok {
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "json":
		c.JSON(http.StatusOK, report)
	case "markdown", "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(s.renderer.Markdown(report)))
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8", s.renderer.HTML(report))
	default:
		fail(c, http.StatusBadRequest, "invalid_request", "format must be json, markdown or html")
	}
}

func (s *Server) deleteReport(c *gin.Context) {
	err := s.reports.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "not_found", "Report not found.")
		return
	}
	if err != nil {
		slog.Error("failed to delete report", slog.String("id", c.Param("id")), slog.Any("error", err))
		fail(c, http.StatusInternalServerError, "store_error", "Failed to delete report.")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) lookup(c *gin.Context) (*model.Report, bool) {
	report, err := s.reports.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "not_found", "Report not found.")
		return nil, false
	}
	if err != nil {
		slog.Error("failed to load report", slog.String("id", c.Param("id")), slog.Any("error", err))
		fail(c, http.StatusInternalServerError, "store_error", "Failed to load report.")
		return nil, false
	}
	return report, true
}

func (s *Server) allowedList() string {
	exts := make([]string, 0, len(s.allowed))
	for ext := range s.allowed {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
