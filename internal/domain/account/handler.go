package account

import (
	"net/http"
	"strings"

	"slot-swapper/internal/middleware"
	"slot-swapper/internal/platform/httpx"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/users", func(ur chi.Router) {
		ur.Get("/stats", statsHandler(svc))
		ur.Get("/export", exportHandler(svc))
	})
}

// statsHandler godoc
// @Summary Resumen del usuario
// @Description Totales de eventos, swaps completados, requests PENDING (enviados y recibidos) y eventos SWAPPABLE.
// @Tags users
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {object} Stats
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Router /users/stats [get]
func statsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			httpx.Unauthorized(w)
			return
		}

		st, err := svc.Stats(r.Context(), claims.UserID)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, st)
	}
}

// exportHandler godoc
// @Summary Exportar mis datos
// @Description Perfil, eventos, swap requests (todos los estados, ambos lados) e historial de swaps del usuario autenticado.
// @Tags users
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {object} Export
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Router /users/export [get]
func exportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			httpx.Unauthorized(w)
			return
		}

		out, err := svc.Export(r.Context(), claims.UserID)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}
