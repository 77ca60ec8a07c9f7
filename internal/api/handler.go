package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
)

// Archive is the read side of the aggregation archive
type Archive interface {
	LatestAggregation(ctx context.Context) (*domain.Aggregation, error)
	ListAggregations(ctx context.Context, limit int) ([]domain.AggregationSummary, error)
}

// Handler handles API requests
type Handler struct {
	archive Archive
}

// NewHandler creates a new API handler
func NewHandler(archive Archive) *Handler {
	return &Handler{
		archive: archive,
	}
}

// GetLogBooks returns every logbook of the latest pass
// GET /api/v1/logbooks
func (h *Handler) GetLogBooks(c *gin.Context) {
	agg, err := h.archive.LatestAggregation(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": agg.LogBooks,
		"meta": agg.Summary(),
	})
}

// GetLogBook returns one council's logbook from the latest pass
// GET /api/v1/logbooks/:council
func (h *Handler) GetLogBook(c *gin.Context) {
	council := c.Param("council")

	agg, err := h.archive.LatestAggregation(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	lb, ok := agg.FindLogBook(council)
	if !ok {
		respondError(c, apperrors.NewNotFoundError("logbook "+council))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": lb,
		"meta": agg.Summary(),
	})
}

// GetFailing returns the failing councils of the latest pass
// GET /api/v1/failing
func (h *Handler) GetFailing(c *gin.Context) {
	agg, err := h.archive.LatestAggregation(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": agg.Failing,
		"meta": agg.Summary(),
	})
}

// GetAggregations lists archived passes, newest first
// GET /api/v1/aggregations?limit=
func (h *Handler) GetAggregations(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		respondError(c, err)
		return
	}

	summaries, err := h.archive.ListAggregations(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": summaries,
	})
}

// parseLimit reads the limit query parameter; absent means the archive default
func parseLimit(c *gin.Context) (int, error) {
	valueStr := c.Query("limit")
	if valueStr == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return 0, apperrors.NewBadRequestError("limit must be a positive integer")
	}
	return value, nil
}

// HealthCheck returns the health status of the API
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// respondError sends an error response
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeBadRequest:
			status = http.StatusBadRequest
		case apperrors.ErrCodeRateLimited:
			status = http.StatusTooManyRequests
		case apperrors.ErrCodeFetchFailed:
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrCodeInternal,
			"message": err.Error(),
		},
	})
}
