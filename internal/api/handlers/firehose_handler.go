package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/logrouter/internal/api/middleware"
	"example.com/backstage/services/logrouter/internal/models"
)

// Headers set by a Firehose HTTP endpoint delivery
const (
	AccessKeyHeader = "X-Amz-Firehose-Access-Key"
	RequestIDHeader = "X-Amz-Firehose-Request-Id"
)

// Processor runs input records through the pipeline
type Processor interface {
	Process(ctx context.Context, records []models.InputRecord) models.Summary
}

// FirehoseHandler accepts Firehose HTTP endpoint deliveries
type FirehoseHandler struct {
	processor Processor
	accessKey string
	now       func() time.Time
}

// NewFirehoseHandler creates a new Firehose handler. An empty access
// key disables the key check.
func NewFirehoseHandler(processor Processor, accessKey string) *FirehoseHandler {
	return &FirehoseHandler{
		processor: processor,
		accessKey: accessKey,
		now:       time.Now,
	}
}

// HandleDelivery processes one delivery request
func (h *FirehoseHandler) HandleDelivery(c *gin.Context) {
	if h.accessKey != "" {
		key := c.GetHeader(AccessKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.accessKey)) != 1 {
			h.respond(c, http.StatusUnauthorized, c.GetHeader(RequestIDHeader), "invalid access key")
			return
		}
	}

	var req models.FirehoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Str("request_id", middleware.RequestID(c)).Msg("Invalid delivery body")
		h.respond(c, http.StatusBadRequest, c.GetHeader(RequestIDHeader), err.Error())
		return
	}

	summary := h.processor.Process(c.Request.Context(), req.InputRecords())

	log.Debug().
		Str("request_id", middleware.RequestID(c)).
		Str("firehose_request_id", req.RequestID).
		Int("records", len(req.Records)).
		Msg("Delivery processed")

	// a failed bulk call is reported so the delivery stream retries
	if summary.TransportError != "" {
		h.respond(c, http.StatusInternalServerError, req.RequestID, summary.TransportError)
		return
	}
	h.respond(c, http.StatusOK, req.RequestID, "")
}

func (h *FirehoseHandler) respond(c *gin.Context, status int, requestID, message string) {
	c.JSON(status, models.FirehoseResponse{
		RequestID:    requestID,
		Timestamp:    h.now().UnixMilli(),
		ErrorMessage: message,
	})
}

// RegisterRoutes registers the handler's routes
func (h *FirehoseHandler) RegisterRoutes(router gin.IRoutes) {
	router.POST("/firehose", h.HandleDelivery)
}
