package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JustJay7/eviction-hearing-parser/internal/apperrors"
	"github.com/JustJay7/eviction-hearing-parser/internal/cache"
	"github.com/JustJay7/eviction-hearing-parser/internal/config"
	"github.com/JustJay7/eviction-hearing-parser/internal/pipeline"
	"github.com/JustJay7/eviction-hearing-parser/internal/store"
	"github.com/JustJay7/eviction-hearing-parser/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	dateLayout = "2006-01-02"
	// maxSettingsDays bounds one POST /settings request.
	maxSettingsDays = 31
)

// RunnerFactory builds a fresh pipeline runner for one batch.
type RunnerFactory func() *pipeline.Runner

// StatsSource reports hit/miss statistics of a cache.
type StatsSource interface {
	Stats() cache.CacheStats
}

// Handlers holds all HTTP handlers
type Handlers struct {
	store     *store.Store
	pages     StatsSource
	reports   cache.Cache[*pipeline.Report]
	newRunner RunnerFactory
	logger    *logger.Logger
	cfg       *config.Config
}

// NewHandlers creates a new handlers instance
func NewHandlers(st *store.Store, pages StatsSource, reports cache.Cache[*pipeline.Report], newRunner RunnerFactory, logger *logger.Logger, cfg *config.Config) *Handlers {
	return &Handlers{
		store:     st,
		pages:     pages,
		reports:   reports,
		newRunner: newRunner,
		logger:    logger,
		cfg:       cfg,
	}
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Error("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": false,
			"error":    err.Error(),
			"time":     time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": true,
		"time":     time.Now().Unix(),
	})
}

// CacheStats returns page and report cache statistics
func (h *Handlers) CacheStats(c *gin.Context) {
	stats := gin.H{"reports": h.reports.Stats()}
	if h.pages != nil {
		stats["pages"] = h.pages.Stats()
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}

// GetCase returns the v_case row of one case
func (h *Handlers) GetCase(c *gin.Context) {
	row, err := h.store.GetCase(c.Request.Context(), caseNumberParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    row,
	})
}

// GetCaseEvents returns the events of one case in register order
func (h *Handlers) GetCaseEvents(c *gin.Context) {
	ctx := c.Request.Context()
	caseNumber := caseNumberParam(c)

	// An unknown case is a 404, not an empty list.
	if _, err := h.store.GetCase(ctx, caseNumber); err != nil {
		h.fail(c, err)
		return
	}
	events, err := h.store.CaseEvents(ctx, caseNumber)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    events,
	})
}

// ListEvictionEvents pages through the eviction_events view
func (h *Handlers) ListEvictionEvents(c *gin.Context) {
	page, limit, offset := pagination(c)
	events, err := h.store.EvictionEvents(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    events,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
		},
	})
}

// ListArchive pages through the filings_archive view
func (h *Handlers) ListArchive(c *gin.Context) {
	page, limit, offset := pagination(c)
	rows, err := h.store.Archive(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rows,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
		},
	})
}

// RunBatch runs the pipeline over a list of case numbers
func (h *Handlers) RunBatch(c *gin.Context) {
	var req struct {
		CaseNumbers []string `json:"case_numbers" binding:"required,min=1,max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	ctx, cancel := h.batchContext(c, len(req.CaseNumbers))
	defer cancel()

	report, err := h.newRunner().Run(ctx, req.CaseNumbers)
	h.respondReport(c, report, err)
}

// RunSettings records the calendar settings between two days
func (h *Handlers) RunSettings(c *gin.Context) {
	var req struct {
		After  string `json:"after" binding:"required"`
		Before string `json:"before" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	after, before, err := parseRange(req.After, req.Before)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	days := int(before.Sub(after).Hours()/24) + 1
	if days > maxSettingsDays {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   fmt.Sprintf("range spans %d days, at most %d allowed", days, maxSettingsDays),
		})
		return
	}
	ctx, cancel := h.batchContext(c, days)
	defer cancel()

	report, err := h.newRunner().RunSettings(ctx, after, before)
	h.respondReport(c, report, err)
}

// GetBatch returns a finished report as JSON
func (h *Handlers) GetBatch(c *gin.Context) {
	report, ok := h.reports.Get(cache.ReportKey(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Report not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"report":  report,
	})
}

// GetBatchReport renders a finished report as HTML
func (h *Handlers) GetBatchReport(c *gin.Context) {
	report, ok := h.reports.Get(cache.ReportKey(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Report not found",
		})
		return
	}

	html, err := report.HTML()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (h *Handlers) batchContext(c *gin.Context, units int) (context.Context, context.CancelFunc) {
	if units < 1 {
		units = 1
	}
	return context.WithTimeout(c.Request.Context(), h.cfg.ScraperTimeout*time.Duration(units))
}

func (h *Handlers) respondReport(c *gin.Context, report *pipeline.Report, err error) {
	if report != nil {
		h.reports.Set(cache.ReportKey(report.RunID), report)
	}
	if err != nil {
		h.logger.Error("Batch halted", "error", err)
		c.JSON(statusFor(err), gin.H{
			"success": false,
			"error":   err.Error(),
			"report":  report,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"report":  report,
	})
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"reason":  apperrors.Reason(err),
		"error":   err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrCaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Helper functions

func caseNumberParam(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("number")))
}

func pagination(c *gin.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return page, limit, (page - 1) * limit
}

func parseRange(after, before string) (time.Time, time.Time, error) {
	a, err := time.Parse(dateLayout, after)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("after must be YYYY-MM-DD")
	}
	b, err := time.Parse(dateLayout, before)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("before must be YYYY-MM-DD")
	}
	if b.Before(a) {
		return time.Time{}, time.Time{}, errors.New("before is earlier than after")
	}
	return a, b, nil
}
