package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"slot-swapper/internal/fanout"
	"slot-swapper/internal/middleware"
	"slot-swapper/internal/ports/notify"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, opts ...Option) (*httptest.Server, *fanout.Registry) {
	t.Helper()
	reg := fanout.NewRegistry(nil)
	h := middleware.AuthContext(nil)(NewHandler(reg, nil, nil, opts...))
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, reg
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHandler_DeliversPublishedEvents(t *testing.T) {
	srv, reg := newServer(t)

	d := ws.Dialer{Header: ws.HandshakeHeaderHTTP(http.Header{"X-Debug-User-ID": {"u1"}})}
	conn, _, _, err := d.Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return reg.Connections("u1") == 1 }, 2*time.Second, 10*time.Millisecond)

	n := reg.Publish(context.Background(), "u1", notify.EventNewSwapRequest, map[string]string{"message": "hola"})
	require.Equal(t, 1, n)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	raw, op, err := wsutil.ReadServerData(conn)
	require.NoError(t, err)
	assert.Equal(t, ws.OpText, op)

	var env struct {
		ID   string            `json:"id"`
		Type notify.EventType  `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, notify.EventNewSwapRequest, env.Type)
	assert.Equal(t, "hola", env.Data["message"])
	assert.NotEmpty(t, env.ID)
}

func TestHandler_UnregistersOnClose(t *testing.T) {
	srv, reg := newServer(t)

	d := ws.Dialer{Header: ws.HandshakeHeaderHTTP(http.Header{"X-Debug-User-ID": {"u2"}})}
	conn, _, _, err := d.Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return reg.Connections("u2") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return reg.Connections("u2") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_RejectsAnonymous(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_DropsSilentPeer(t *testing.T) {
	srv, reg := newServer(t, WithIdleTimeout(150*time.Millisecond))

	// El cliente nunca lee ni escribe: no contesta pings.
	d := ws.Dialer{Header: ws.HandshakeHeaderHTTP(http.Header{"X-Debug-User-ID": {"u3"}})}
	conn, _, _, err := d.Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return reg.Connections("u3") == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return reg.Connections("u3") == 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestConn_AliveRequiresClientFrames(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	server, err := ln.Accept()
	require.NoError(t, err)

	const idle = 300 * time.Millisecond
	c := newConn(server, time.Second, idle)
	defer c.Close()

	done := make(chan error, 1)
	go func() { done <- c.readLoop() }()

	assert.True(t, c.Alive())

	time.Sleep(idle / 2)
	require.NoError(t, ws.WriteFrame(client, ws.MaskFrame(ws.NewPongFrame(nil))))
	time.Sleep(idle / 3)
	// el pong renovó lastSeen aunque ya pasó más de la mitad del idle desde el alta
	assert.True(t, c.Alive())

	// Sin respuestas los pings siguen entrando al buffer TCP, pero la conexión se da por muerta.
	require.Eventually(t, func() bool { return !c.Alive() }, 2*time.Second, 10*time.Millisecond)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("readLoop kept blocking on a silent peer")
	}
}
