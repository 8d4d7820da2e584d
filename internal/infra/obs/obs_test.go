package obs

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mujthriftz/internal/app/outbox"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDPropagatesToContextAndOutbox(t *testing.T) {
	var seen string
	var headers map[string]string
	router := gin.New()
	router.Use(Middleware{}.RequestID())
	router.GET("/x", func(c *gin.Context) {
		seen = RequestIDFromContext(c.Request.Context())
		enc, ok := outbox.EncoderFor(c.Request.Context()).(outbox.JSONEventEncoder)
		if ok {
			headers = enc.Headers
		}
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-42")
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", headers["x-request-id"])
}

func TestRequestIDMintedWhenMissing(t *testing.T) {
	router := gin.New()
	router.Use(Middleware{}.RequestID())
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestLoggerMiddlewareRecordsMetricsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	metrics := NewMetrics()
	mw := Middleware{Logger: newLogger("prod", &buf), Metrics: metrics}
	router := gin.New()
	router.Use(mw.RequestID(), mw.LoggerMiddleware())
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/7", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("GET", "/items/:id", "418")))
	assert.Contains(t, buf.String(), `"path":"/items/:id"`)
	assert.Contains(t, buf.String(), `"status":418`)
}

func TestMetricsDomainCounters(t *testing.T) {
	m := NewMetrics()
	m.MessageSent("")
	m.MessageSent("productListing")
	m.ConversationStarted()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.messagesSent.WithLabelValues("unknown")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.conversations))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.realtimeConns))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chat_messages_sent_total")
}

func TestReadyzReportsFailedChecks(t *testing.T) {
	health := HealthHandlers{Checks: map[string]Check{
		"mongo": func(context.Context) error { return nil },
		"kafka": func(context.Context) error { return errors.New("no brokers") },
	}}
	router := gin.New()
	router.GET("/readyz", health.Readyz)
	router.GET("/livez", health.Livez)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no brokers")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
