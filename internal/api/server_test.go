package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/logrouter/config"
	"example.com/backstage/services/logrouter/internal/api/handlers"
	"example.com/backstage/services/logrouter/internal/api/middleware"
	"example.com/backstage/services/logrouter/internal/metrics"
	"example.com/backstage/services/logrouter/internal/models"
)

// MockProcessor is a mock pipeline
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, records []models.InputRecord) models.Summary {
	args := m.Called(ctx, records)
	return args.Get(0).(models.Summary)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(p handlers.Processor, accessKey string) *Server {
	return NewServer(config.ServerConfig{Address: ":0", AccessKey: accessKey}, p, metrics.NewMetrics())
}

func deliver(t *testing.T, s *Server, body string, headers map[string]string) (*httptest.ResponseRecorder, models.FirehoseResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/firehose", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var res models.FirehoseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return w, res
}

const delivery = `{"requestId":"req-1","timestamp":1700000000000,"records":[{"data":"AAA="},{"data":"BBB="}]}`

func TestFirehoseDelivery(t *testing.T) {
	p := new(MockProcessor)
	p.On("Process", mock.Anything, []models.InputRecord{
		{ID: "req-1-0", Data: "AAA="},
		{ID: "req-1-1", Data: "BBB="},
	}).Return(models.Summary{ProcessedRecords: 2, DocumentsIndexed: 2}).Once()

	w, res := deliver(t, newServer(p, ""), delivery, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", res.RequestID)
	assert.NotZero(t, res.Timestamp)
	assert.Empty(t, res.ErrorMessage)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	p.AssertExpectations(t)
}

func TestFirehoseTransportErrorRequestsRetry(t *testing.T) {
	p := new(MockProcessor)
	p.On("Process", mock.Anything, mock.Anything).
		Return(models.Summary{ProcessedRecords: 2, DocumentErrors: 2, TransportError: "bulk write failed: timeout"})

	w, res := deliver(t, newServer(p, ""), delivery, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, "bulk write failed: timeout", res.ErrorMessage)
}

func TestFirehoseAccessKey(t *testing.T) {
	p := new(MockProcessor)
	p.On("Process", mock.Anything, mock.Anything).Return(models.Summary{})
	s := newServer(p, "s3cret")

	w, res := deliver(t, s, delivery, map[string]string{
		handlers.AccessKeyHeader: "wrong",
		handlers.RequestIDHeader: "hdr-1",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "hdr-1", res.RequestID)
	p.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)

	w, _ = deliver(t, s, delivery, map[string]string{handlers.AccessKeyHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFirehoseMalformedBody(t *testing.T) {
	p := new(MockProcessor)
	s := newServer(p, "")

	w, res := deliver(t, s, `{"records":`, map[string]string{handlers.RequestIDHeader: "hdr-2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "hdr-2", res.RequestID)
	assert.NotEmpty(t, res.ErrorMessage)

	w, _ = deliver(t, s, `{"records":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	p.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestMetricsAndHealth(t *testing.T) {
	m := metrics.NewMetrics()
	m.IncrementCounter(metrics.RecordsProcessed)
	s := NewServer(config.ServerConfig{}, new(MockProcessor), m)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Counters map[string]int64 `json:"counters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Counters[metrics.RecordsProcessed])

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	m.SetHealth("store", false)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
