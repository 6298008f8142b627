package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "tabpool-backend/core/payment_job"
	"tabpool-backend/middleware"
)

func TestEventStream(t *testing.T) {
	ts := newTestServer(t, true, true)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	header.Set(middleware.HeaderAPIKey, "alice-key")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	job := ts.createJob(t)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var evt core.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "job_created", evt.Type)
	assert.Equal(t, job.ID, evt.JobID)
	assert.Equal(t, owner, evt.Actor)
}

func TestOriginChecker(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/events/ws", nil)
	req.Header.Set("Origin", "https://evil.example")

	assert.True(t, originChecker([]string{"*"})(req))
	assert.True(t, originChecker(nil)(req))
	assert.False(t, originChecker([]string{"https://app.example"})(req))

	req.Header.Set("Origin", "https://app.example")
	assert.True(t, originChecker([]string{"https://app.example"})(req))
}
