package ws

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"slot-swapper/internal/fanout"
	"slot-swapper/internal/middleware"
	"slot-swapper/internal/platform/httpx"
	"slot-swapper/internal/platform/logger"
	"slot-swapper/internal/ports/auth"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Handler sube la conexión a websocket y la registra en el topic del usuario.
type Handler struct {
	reg          *fanout.Registry
	verifier     auth.AuthVerifier
	log          logger.Logger
	writeTimeout time.Duration
	idleTimeout  time.Duration
}

type Option func(*Handler)

// WithIdleTimeout fija cuánto puede pasar sin frames del cliente antes de darlo por muerto.
// Los clientes contestan los pings del sweep, así que conviene al menos dos intervalos de sweep.
func WithIdleTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.idleTimeout = d
		}
	}
}

func NewHandler(reg *fanout.Registry, verifier auth.AuthVerifier, log logger.Logger, opts ...Option) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	h := &Handler{
		reg:          reg,
		verifier:     verifier,
		log:          log,
		writeTimeout: defaultWriteTimeout,
		idleTimeout:  defaultIdleTimeout,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// ServeHTTP godoc
// @Summary Canal de notificaciones en tiempo real
// @Description Upgrade a websocket. Cada mensaje es un envelope `{id, type, data, sent_at}`; `id` permite descartar duplicados. Los navegadores no pueden mandar headers en el handshake: en ese caso usar `?token=`.
// @Tags realtime
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param token query string false "Token (alternativa al header Authorization)"
// @Success 101
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Router /ws [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	if userID == "" {
		httpx.Unauthorized(w)
		return
	}

	nc, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.log.Warn("websocket upgrade failed", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	// readLoop reemplaza el read deadline que deja el server HTTP en la conexión hijackeada.
	c := newConn(nc, h.writeTimeout, h.idleTimeout)
	h.reg.Register(userID, c)
	h.log.Debug("websocket connected", map[string]any{"user_id": userID, "channel_id": c.ID()})

	defer func() {
		h.reg.Unregister(userID, c)
		_ = c.Close()
		h.log.Debug("websocket disconnected", map[string]any{"user_id": userID, "channel_id": c.ID()})
	}()

	if err := c.readLoop(); err != nil && !isClosed(err) {
		h.log.Debug("websocket read failed", map[string]any{"user_id": userID, "error": err.Error()})
	}
}

func (h *Handler) userID(r *http.Request) string {
	if claims, ok := middleware.GetClaims(r.Context()); ok && strings.TrimSpace(claims.UserID) != "" {
		return claims.UserID
	}
	if h.verifier == nil {
		return ""
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		return ""
	}
	claims, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(claims.UserID)
}

func isClosed(err error) bool {
	var closed wsutil.ClosedError
	return errors.As(err, &closed)
}
