package ws

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
)

var errClosed = errors.New("ws: connection closed")

// conn es un fanout.Channel sobre una conexión websocket del lado servidor.
// Todas las escrituras (mensajes, pings, respuestas a control frames) pasan por mu.
// lastSeen es el último frame recibido del cliente (datos, pong o ping).
type conn struct {
	id           string
	nc           net.Conn
	writeTimeout time.Duration
	idleTimeout  time.Duration

	mu       sync.Mutex
	closed   atomic.Bool
	lastSeen atomic.Int64
}

func newConn(nc net.Conn, writeTimeout, idleTimeout time.Duration) *conn {
	c := &conn{id: uuid.NewString(), nc: nc, writeTimeout: writeTimeout, idleTimeout: idleTimeout}
	c.touch()
	return c
}

func (c *conn) touch() { c.lastSeen.Store(time.Now().UnixNano()) }

func (c *conn) idle() time.Duration {
	return time.Since(time.Unix(0, c.lastSeen.Load()))
}

func (c *conn) ID() string { return c.id }

func (c *conn) Send(ctx context.Context, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return errClosed
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.nc.SetWriteDeadline(deadline)
	return wsutil.WriteServerMessage(c.nc, ws.OpText, msg)
}

// Alive da por muerta la conexión si el cliente no contestó nada (ni siquiera
// el pong del sweep anterior) dentro de idleTimeout. Si sigue viva, manda otro ping.
// Una escritura exitosa sola no alcanza: en un TCP semiabierto queda en el buffer.
func (c *conn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return false
	}
	if c.idleTimeout > 0 && c.idle() > c.idleTimeout {
		return false
	}
	_ = c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return ws.WriteFrame(c.nc, ws.NewPingFrame(nil)) == nil
}

func (c *conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.nc.Close()
}

// readLoop consume frames del cliente hasta que cierre. Los datos se ignoran:
// el canal es solo servidor -> cliente. Ping/close se contestan bajo mu.
// Cada frame renueva el read deadline; sin frames por idleTimeout la lectura
// vence y el handler desregistra la conexión.
func (c *conn) readLoop() error {
	control := wsutil.ControlFrameHandler(c.nc, ws.StateServerSide)
	onControl := func(h ws.Header, r io.Reader) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		return control(h, r)
	}

	rd := &wsutil.Reader{
		Source:         c.nc,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: onControl,
	}

	for {
		c.extendReadDeadline()
		hdr, err := rd.NextFrame()
		if err != nil {
			return err
		}
		c.touch()
		if hdr.OpCode.IsControl() {
			if err := onControl(hdr, rd); err != nil {
				return err
			}
			continue
		}
		if err := rd.Discard(); err != nil {
			return err
		}
	}
}

func (c *conn) extendReadDeadline() {
	if c.idleTimeout <= 0 {
		_ = c.nc.SetReadDeadline(time.Time{})
		return
	}
	_ = c.nc.SetReadDeadline(time.Now().Add(c.idleTimeout))
}
