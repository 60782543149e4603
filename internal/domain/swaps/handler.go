package swaps

import (
	"encoding/json"
	"net/http"
	"strings"

	"slot-swapper/internal/middleware"
	"slot-swapper/internal/platform/apperr"
	"slot-swapper/internal/platform/httpx"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/swap-requests", func(sr chi.Router) {
		sr.Post("/", createSwapRequestHandler(svc))
		sr.Get("/incoming", listIncomingHandler(svc))
		sr.Get("/outgoing", listOutgoingHandler(svc))

		sr.Get("/{requestID}", getSwapRequestHandler(svc))
		sr.Post("/{requestID}/accept", acceptSwapRequestHandler(svc))
		sr.Post("/{requestID}/reject", rejectSwapRequestHandler(svc))
		sr.Delete("/{requestID}", cancelSwapRequestHandler(svc))
	})
}

// createSwapRequestRequest: my_event_id es el slot propio que se ofrece,
// their_event_id el slot ajeno que se pide.
type createSwapRequestRequest struct {
	MyEventID    string `json:"my_event_id"`
	TheirEventID string `json:"their_event_id"`
}

// createSwapRequestHandler godoc
// @Summary Proponer un swap
// @Description Crea un swap request PENDING ofreciendo un evento propio SWAPPABLE a cambio de un evento SWAPPABLE de otro usuario. El dueño del evento pedido recibe `newSwapRequest`.
// @Tags swap-requests
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createSwapRequestRequest true "Eventos a intercambiar"
// @Success 201 {object} Detail
// @Failure 400 {object} httpx.ErrorBody "validación / mismo slot / mismo usuario"
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Failure 403 {object} httpx.ErrorBody "el evento ofrecido no es propio"
// @Failure 404 {object} httpx.ErrorBody "evento no encontrado"
// @Failure 409 {object} httpx.ErrorBody "no swappable / request duplicado"
// @Router /swap-requests [post]
func createSwapRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req createSwapRequestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.Fail(w, apperr.KindValidation, "invalid json")
			return
		}

		d, err := svc.Create(r.Context(), uid, req.MyEventID, req.TheirEventID)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		httpx.WriteJSON(w, http.StatusCreated, d)
	}
}

// listIncomingHandler godoc
// @Summary Swap requests recibidos
// @Description Requests PENDING donde el usuario autenticado es el target, más nuevos primero.
// @Tags swap-requests
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} Detail
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Router /swap-requests/incoming [get]
func listIncomingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}

		items, err := svc.ListIncoming(r.Context(), uid)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, items)
	}
}

// listOutgoingHandler godoc
// @Summary Swap requests enviados
// @Description Requests (cualquier estado) creados por el usuario autenticado, más nuevos primero.
// @Tags swap-requests
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} Detail
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Router /swap-requests/outgoing [get]
func listOutgoingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}

		items, err := svc.ListOutgoing(r.Context(), uid)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, items)
	}
}

// getSwapRequestHandler godoc
// @Summary Obtener swap request
// @Tags swap-requests
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param requestID path string true "ID del swap request"
// @Success 200 {object} Detail
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Failure 403 {object} httpx.ErrorBody "no participa del request"
// @Failure 404 {object} httpx.ErrorBody "swap request not found"
// @Router /swap-requests/{requestID} [get]
func getSwapRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}

		d, err := svc.Get(r.Context(), chi.URLParam(r, "requestID"), uid)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, d)
	}
}

// acceptSwapRequestHandler godoc
// @Summary Aceptar swap request
// @Description Solo el target. Intercambia los dueños de ambos eventos de forma atómica y registra el historial. Si algún evento dejó de ser swappable devuelve 409 y el request sigue PENDING.
// @Tags swap-requests
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param requestID path string true "ID del swap request"
// @Success 200 {object} Detail
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Failure 403 {object} httpx.ErrorBody "no es el target"
// @Failure 404 {object} httpx.ErrorBody "swap request not found"
// @Failure 409 {object} httpx.ErrorBody "ya procesado / eventos no swappables"
// @Failure 504 {object} httpx.ErrorBody "timeout"
// @Router /swap-requests/{requestID}/accept [post]
func acceptSwapRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}

		d, err := svc.Accept(r.Context(), chi.URLParam(r, "requestID"), uid)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, d)
	}
}

// rejectSwapRequestHandler godoc
// @Summary Rechazar swap request
// @Tags swap-requests
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param requestID path string true "ID del swap request"
// @Success 200 {object} Detail
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Failure 403 {object} httpx.ErrorBody "no es el target"
// @Failure 404 {object} httpx.ErrorBody "swap request not found"
// @Failure 409 {object} httpx.ErrorBody "ya procesado"
// @Router /swap-requests/{requestID}/reject [post]
func rejectSwapRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}

		d, err := svc.Reject(r.Context(), chi.URLParam(r, "requestID"), uid)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, d)
	}
}

// cancelSwapRequestHandler godoc
// @Summary Cancelar swap request
// @Description Solo el requester, mientras esté PENDING. El registro se borra.
// @Tags swap-requests
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param requestID path string true "ID del swap request"
// @Success 204
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Failure 403 {object} httpx.ErrorBody "no es el requester"
// @Failure 404 {object} httpx.ErrorBody "swap request not found"
// @Failure 409 {object} httpx.ErrorBody "ya procesado"
// @Router /swap-requests/{requestID} [delete]
func cancelSwapRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}

		if err := svc.Cancel(r.Context(), chi.URLParam(r, "requestID"), uid); err != nil {
			httpx.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		httpx.Unauthorized(w)
		return "", false
	}
	return claims.UserID, true
}
