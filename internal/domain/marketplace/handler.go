package marketplace

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"slot-swapper/internal/middleware"
	"slot-swapper/internal/platform/apperr"
	"slot-swapper/internal/platform/httpx"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/marketplace", listMarketplaceHandler(svc))
	r.Get("/marketplace/{eventID}", getMarketplaceSlotHandler(svc))
}

// listMarketplaceHandler godoc
// @Summary Marketplace de slots
// @Description Lista paginada de eventos SWAPPABLE de otros usuarios, con el perfil del dueño.
// @Tags marketplace
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param q query string false "Búsqueda en el título (case-insensitive)"
// @Param from query string false "Inicio mínimo (RFC3339)"
// @Param to query string false "Inicio máximo (RFC3339)"
// @Param min_duration query int false "Duración mínima en minutos"
// @Param max_duration query int false "Duración máxima en minutos"
// @Param page query int false "Página (desde 1)"
// @Param limit query int false "Tamaño de página (1-100). Por defecto 20"
// @Success 200 {object} Page
// @Failure 400 {object} httpx.ErrorBody "filtros inválidos"
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Router /marketplace [get]
func listMarketplaceHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			httpx.Unauthorized(w)
			return
		}

		f, err := parseFilter(r)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		page, err := svc.List(r.Context(), claims.UserID, f)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, page)
	}
}

// getMarketplaceSlotHandler godoc
// @Summary Detalle de un slot del marketplace
// @Tags marketplace
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param eventID path string true "ID del evento"
// @Success 200 {object} Listing
// @Failure 400 {object} httpx.ErrorBody "es un evento propio"
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Failure 404 {object} httpx.ErrorBody "slot not found"
// @Failure 409 {object} httpx.ErrorBody "ya no está disponible"
// @Router /marketplace/{eventID} [get]
func getMarketplaceSlotHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			httpx.Unauthorized(w)
			return
		}

		l, err := svc.Get(r.Context(), claims.UserID, chi.URLParam(r, "eventID"))
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, l)
	}
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{Query: strings.TrimSpace(q.Get("q"))}

	var err error
	if f.Page, err = httpx.QueryInt(r, "page", 1, 0); err != nil {
		return Filter{}, err
	}
	if f.Limit, err = httpx.QueryInt(r, "limit", DefaultLimit, MaxLimit); err != nil {
		return Filter{}, err
	}

	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := strings.TrimSpace(q.Get(p.key))
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Filter{}, apperr.Validation(p.key + " must be RFC3339")
		}
		t = t.UTC()
		*p.dst = &t
	}

	for _, p := range []struct {
		key string
		dst **int
	}{{"min_duration", &f.MinDuration}, {"max_duration", &f.MaxDuration}} {
		v := strings.TrimSpace(q.Get(p.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Filter{}, apperr.Validation(p.key + " must be an integer (minutes)")
		}
		*p.dst = &n
	}

	return f, nil
}
