package history

import (
	"net/http"
	"strings"
	"time"

	"slot-swapper/internal/domain/events"
	"slot-swapper/internal/middleware"
	"slot-swapper/internal/platform/httpx"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/history", listHistoryHandler(svc))
	r.Get("/history/{swapRequestID}", getHistoryHandler(svc))
}

// SideView es un lado del swap: el usuario y el evento que entregó.
type SideView struct {
	UserID  string      `json:"user_id"`
	EventID string      `json:"event_id"`
	Event   events.View `json:"event"`
}

// EntryView es un swap completado, con la foto de ambos eventos post-swap.
type EntryView struct {
	ID            string     `json:"id"`
	SwapRequestID string     `json:"swap_request_id"`
	Sides         []SideView `json:"sides"`
	CompletedAt   time.Time  `json:"completed_at"`
}

// listHistoryHandler godoc
// @Summary Historial de swaps
// @Description Swaps completados donde participó el usuario autenticado, más nuevos primero.
// @Tags history
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param limit query int false "Máximo de entradas (1-200). Por defecto 50"
// @Success 200 {array} EntryView
// @Failure 400 {object} httpx.ErrorBody "limit inválido"
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Router /history [get]
func listHistoryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			httpx.Unauthorized(w)
			return
		}

		limit, err := httpx.QueryInt(r, "limit", DefaultLimit, MaxLimit)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		items, err := svc.ListForUser(r.Context(), claims.UserID, limit)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		out := make([]EntryView, 0, len(items))
		for _, e := range items {
			out = append(out, ToEntryView(e))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

// getHistoryHandler godoc
// @Summary Detalle de un swap completado
// @Tags history
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param swapRequestID path string true "ID del swap request aceptado"
// @Success 200 {object} EntryView
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Failure 403 {object} httpx.ErrorBody "no participó del swap"
// @Failure 404 {object} httpx.ErrorBody "history entry not found"
// @Router /history/{swapRequestID} [get]
func getHistoryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			httpx.Unauthorized(w)
			return
		}

		e, err := svc.GetBySwapRequest(r.Context(), chi.URLParam(r, "swapRequestID"), claims.UserID)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, ToEntryView(e))
	}
}

func ToEntryView(e Entry) EntryView {
	sides := make([]SideView, 0, len(e.Sides))
	for _, s := range e.Sides {
		sides = append(sides, SideView{
			UserID:  s.UserID,
			EventID: s.EventID,
			Event:   events.ToView(s.Snapshot),
		})
	}
	return EntryView{
		ID:            e.ID,
		SwapRequestID: e.SwapRequestID,
		Sides:         sides,
		CompletedAt:   e.CompletedAt,
	}
}
