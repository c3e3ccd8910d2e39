package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sitelens/backend/internal/domain"
	"github.com/sitelens/backend/internal/usecase"
)

const (
	serviceName    = "sitelens-backend"
	serviceVersion = "1.0.0"

	// retryAfterSeconds is advertised when the location dataset is unavailable
	retryAfterSeconds = "5"
)

// InsightsService is the use case consumed by the handlers
type InsightsService interface {
	Categories() []usecase.CategoryInfo
	ScoreWeights() usecase.ScoreWeights
	TargetCustomerAnalysis(ctx context.Context, category domain.Category, locationID string) (*domain.Analysis, error)
	OptimalLocationRecommendation(ctx context.Context, request domain.RecommendationRequest) (*domain.Recommendation, error)
}

// TopKConfig bounds the number of recommendations returned per request
type TopKConfig struct {
	Default int
	Max     int
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	insights InsightsService
	topK     TopKConfig
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler.
// A nil service makes the insight endpoints answer 503.
func NewHandler(insights InsightsService, topK TopKConfig, logger *zap.Logger) *Handler {
	if topK.Default <= 0 {
		topK.Default = 5
	}
	if topK.Max < topK.Default {
		topK.Max = topK.Default
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{insights: insights, topK: topK, logger: logger}
}

// TargetCustomerRequest is the body of POST /api/v1/insights/target-customer
type TargetCustomerRequest struct {
	Category   string `json:"category" binding:"required"`
	LocationID string `json:"locationId" binding:"required"`
}

// OptimalLocationRequest is the body of POST /api/v1/insights/optimal-location
type OptimalLocationRequest struct {
	Category    string  `json:"category" binding:"required"`
	Budget      float64 `json:"budget"`
	Demographic string  `json:"demographic"`
	Area        string  `json:"area"`
	TopK        *int    `json:"topK"` // nil uses the configured default
}

// insightResponse wraps a result with an optional degradation warning
type insightResponse struct {
	Data    interface{} `json:"data"`
	Warning string      `json:"warning,omitempty"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// ListCategories returns the registered categories with their demand weights
func (h *Handler) ListCategories(c *gin.Context) {
	if !h.available(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"categories":   h.insights.Categories(),
		"scoreWeights": h.insights.ScoreWeights(),
	})
}

// TargetCustomer handles target-customer analysis requests
func (h *Handler) TargetCustomer(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var req TargetCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	analysis, err := h.insights.TargetCustomerAnalysis(c.Request.Context(), domain.Category(req.Category), req.LocationID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, insightResponse{Data: analysis, Warning: warningFor(analysis.Narrative)})
}

// OptimalLocation handles optimal-location recommendation requests
func (h *Handler) OptimalLocation(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var req OptimalLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	topK := h.topK.Default
	if req.TopK != nil {
		if *req.TopK < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "topK must not be negative"})
			return
		}
		topK = min(*req.TopK, h.topK.Max)
	}

	rec, err := h.insights.OptimalLocationRecommendation(c.Request.Context(), domain.RecommendationRequest{
		Category:    domain.Category(req.Category),
		Budget:      req.Budget,
		Demographic: req.Demographic,
		Area:        req.Area,
		TopK:        topK,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, insightResponse{Data: rec, Warning: warningFor(rec.Narrative)})
}

func (h *Handler) available(c *gin.Context) bool {
	if h.insights == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "insights service not configured"})
		return false
	}
	return true
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, domain.ErrLocationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case domain.IsClientError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrDataUnavailable):
		c.Header("Retry-After", retryAfterSeconds)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	default:
		h.logger.Error("insight request failed",
			zap.String("request_id", RequestID(c)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func warningFor(n domain.Narrative) string {
	if n.Degraded {
		return domain.ErrNarrativeDegraded.Error()
	}
	return ""
}
