package http

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
}

func TestServerStartServesAndReportsBindErrors(t *testing.T) {
	srv := NewServer([]Handler{pingHandler{}, nil}, WithHost("127.0.0.1"), WithPort(0))
	assert.Empty(t, srv.Addr())
	require.NoError(t, srv.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, srv.Stop(ctx))
	}()

	addr := srv.Addr()
	require.NotEmpty(t, addr)
	for _, path := range []string{"/ping", "/metrics"} {
		resp, err := http.Get("http://" + addr + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	_, port, _ := net.SplitHostPort(addr)
	p, _ := strconv.Atoi(port)
	clash := NewServer(nil, WithHost("127.0.0.1"), WithPort(p))
	assert.ErrorContains(t, clash.Start(), "listen")
}
