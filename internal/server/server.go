// Package server exposes the scoring pipeline over HTTP: batch predictions,
// model health, readiness and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/enrollhq/leadscore/internal/bundle"
	"github.com/enrollhq/leadscore/internal/predict"
)

// Predictor is the scoring core behind POST /v1/predictions.
type Predictor interface {
	PredictBatchWithRequestID(ctx context.Context, leadIDs []string, requestID string) (*predict.BatchResult, error)
}

// ModelHealth reports registry state for the health and readiness probes.
type ModelHealth interface {
	Health() bundle.Health
}

// Server wraps the HTTP layer around the prediction service.
type Server struct {
	engine    *gin.Engine
	predictor Predictor
	models    ModelHealth
	logger    *zap.Logger
}

// New builds the router. logger may be nil.
func New(predictor Predictor, models ModelHealth, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:    engine,
		predictor: predictor,
		models:    models,
		logger:    logger,
	}

	engine.Use(s.requestID())

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/readyz", s.handleReady)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	v1.POST("/predictions", s.handlePredictions)
	v1.GET("/model", s.handleModel)

	return s
}

// Handler exposes the router for net/http and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// requestID honours an inbound X-Request-ID and generates one otherwise.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// predictionRequest accepts either a bare JSON array of lead ids or an
// object with a lead_ids field. Both arrive from existing CRM integrations.
type predictionRequest struct {
	LeadIDs []string `json:"lead_ids"`
}

func parseLeadIDs(c *gin.Context) ([]string, error) {
	var ids []string
	if err := c.ShouldBindBodyWithJSON(&ids); err == nil {
		return ids, nil
	}
	var req predictionRequest
	if err := c.ShouldBindBodyWithJSON(&req); err != nil {
		return nil, err
	}
	return req.LeadIDs, nil
}

func (s *Server) handlePredictions(c *gin.Context) {
	requestID := c.GetString("request_id")

	ids, err := parseLeadIDs(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, "INVALID_REQUEST", "body must be a JSON array of lead ids or {\"lead_ids\": [...]}")
		return
	}

	start := time.Now()
	res, err := s.predictor.PredictBatchWithRequestID(c.Request.Context(), ids, requestID)
	if err != nil {
		switch {
		case errors.Is(err, predict.ErrEmptyBatch):
			s.fail(c, http.StatusBadRequest, "INVALID_REQUEST", "batch must contain at least one lead id")
		case errors.Is(err, predict.ErrPayloadTooLarge):
			s.fail(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error())
		case errors.Is(err, bundle.ErrModelUnavailable):
			s.fail(c, http.StatusServiceUnavailable, "MODEL_UNAVAILABLE", "no model bundle is loaded")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			s.fail(c, http.StatusRequestTimeout, "REQUEST_CANCELLED", "request was cancelled before the batch completed")
		default:
			s.logger.Error("prediction request failed",
				zap.String("request_id", requestID), zap.Error(err))
			s.fail(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		}
		return
	}

	s.logger.Info("prediction batch served",
		zap.String("request_id", requestID),
		zap.String("model_version", res.ModelUsed),
		zap.Int("total", res.Total),
		zap.Int("successful", res.Successful),
		zap.Duration("latency", time.Since(start)))

	c.JSON(http.StatusOK, res)
}

func (s *Server) handleModel(c *gin.Context) {
	h := s.models.Health()
	if !h.Loaded {
		s.fail(c, http.StatusServiceUnavailable, "MODEL_UNAVAILABLE", "no model bundle is loaded")
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleReady reports ready only once a model bundle has been loaded, so a
// fresh instance is not put behind the balancer while it still 503s every
// prediction.
func (s *Server) handleReady(c *gin.Context) {
	h := s.models.Health()
	if !h.Loaded {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "waiting_for_model",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "ready",
		"model_version": h.Version,
	})
}

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func (s *Server) fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorBody{
		Error:     code,
		Message:   message,
		RequestID: c.GetString("request_id"),
	})
}
