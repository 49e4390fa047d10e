package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ClpWatch/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type allowN struct {
	left int
	keys []string
}

func (a *allowN) Allow(key string) bool {
	a.keys = append(a.keys, key)
	a.left--
	return a.left >= 0
}

func serve(e *echo.Echo, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "10.0.0.7:5555"
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitRejectsOverBudget(t *testing.T) {
	lim := &allowN{left: 1}
	e := echo.New()
	e.Use(RateLimit(lim))
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/api/v1/watchlist", ok)
	e.GET("/healthz", ok)

	assert.Equal(t, http.StatusOK, serve(e, "/api/v1/watchlist").Code)

	rec := serve(e, "/api/v1/watchlist")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get(echo.HeaderRetryAfter))
	assert.JSONEq(t, `{"status":429,"message":"Too Many Requests"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, serve(e, "/healthz").Code)
	assert.Equal(t, []string{"10.0.0.7", "10.0.0.7"}, lim.keys)
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	e := echo.New()
	e.Use(Recover(logger.Nop()))
	e.GET("/boom", func(echo.Context) error { panic("bad row") })

	rec := serve(e, "/boom")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":500,"message":"Internal Server Error"}`, rec.Body.String())
}

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(Metrics(logger.Nop(), time.Second))
	e.GET("/api/v1/instruments/:symbol", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Param("symbol"))
	})
	e.GET("/fail", func(echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream")
	})

	route := "/api/v1/instruments/:symbol"
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(route, http.MethodGet, "200"))
	serve(e, "/api/v1/instruments/BTCUSDT")
	serve(e, "/api/v1/instruments/ETHUSDT")
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(route, http.MethodGet, "200"))
	assert.Equal(t, 2.0, after-before)

	before = testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/fail", http.MethodGet, "502"))
	rec := serve(e, "/fail")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/fail", http.MethodGet, "502"))-before)
}
