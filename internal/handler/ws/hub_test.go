package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ClpWatch/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readReport(t *testing.T, conn *websocket.Conn) models.CycleReport {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var rep models.CycleReport
	require.NoError(t, json.Unmarshal(msg, &rep))
	return rep
}

func TestHubReplaysLatestThenStreams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	hub.Publish(&models.CycleReport{Timestamp: t0, Interval: "1h", Alerts: models.Alerts{Level: models.AlertNone}})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readReport(t, conn)
	assert.True(t, first.Timestamp.Equal(t0))

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(&models.CycleReport{
		Timestamp: t0.Add(30 * time.Second),
		Interval:  "1h",
		Alerts:    models.Alerts{Level: models.AlertExtreme, Extreme: []string{"SOLUSDT"}},
	})
	next := readReport(t, conn)
	assert.Equal(t, models.AlertExtreme, next.Alerts.Level)
	assert.Equal(t, []string{"SOLUSDT"}, next.Alerts.Extreme)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
