package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveTick()
	m.ObserveTick()
	m.ObserveError("fetch")
	m.ObserveAlert("query_time", "warning")
	m.ObserveSuppressed("query_time", "warning")
	m.ObserveIngested("http")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.monitorTicks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.monitorTickErrors.WithLabelValues("fetch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertsEmitted.WithLabelValues("query_time", "warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertsSuppressed.WithLabelValues("query_time", "warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recordsIngested.WithLabelValues("http")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTick()
		m.ObserveError("fetch")
		m.ObserveAlert("a", "b")
		m.ObserveSuppressed("a", "b")
		m.ObserveIngested("nats")
	})
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/ping", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("unmatched", "404")))
}
