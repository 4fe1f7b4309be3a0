package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kenoir/weco-concept-explorer/application/explorer"
	"github.com/kenoir/weco-concept-explorer/application/ports"
	"github.com/kenoir/weco-concept-explorer/application/services"
	"github.com/kenoir/weco-concept-explorer/domain/concept"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, maxSessions int) (*Server, string) {
	t.Helper()
	res := ports.ResolverFunc(func(ctx context.Context, id string) (*concept.Record, error) {
		return &concept.Record{ID: id, Label: "Label " + id, Type: "Subject"}, nil
	})
	builder := services.NewGraphBuilder(res, nil, nil, nil, services.BuilderOptions{})

	cfg := DefaultServerConfig()
	cfg.MaxSessions = maxSessions
	server := NewServer(func(sink explorer.Sink) *explorer.Session {
		return explorer.NewSession(explorer.Dependencies{Resolver: res, Builder: builder}, sink)
	}, cfg, nil)

	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)
	return server, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestServer_SessionLimit(t *testing.T) {
	server, url := newTestServer(t, 1)

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return server.ActiveSessions() == 1 }, time.Second, 5*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_ShutdownClosesSessions(t *testing.T) {
	server, url := newTestServer(t, 0)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return server.ActiveSessions() == 1 }, time.Second, 5*time.Millisecond)

	server.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.Eventually(t, func() bool { return server.ActiveSessions() == 0 }, time.Second, 5*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
