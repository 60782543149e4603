package events

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"slot-swapper/internal/middleware"
	"slot-swapper/internal/platform/apperr"
	"slot-swapper/internal/platform/httpx"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/events", func(er chi.Router) {
		er.Post("/", createEventHandler(svc))
		er.Get("/", listEventsHandler(svc))
		er.Get("/export.ics", exportEventsHandler(svc))

		er.Get("/{eventID}", getEventHandler(svc))
		er.Patch("/{eventID}", updateEventHandler(svc))
		er.Delete("/{eventID}", deleteEventHandler(svc))
		er.Post("/{eventID}/swappable", markSwappableHandler(svc))
	})
}

// createEventRequest es el cuerpo para crear un evento en el calendario propio.
type createEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"` // RFC3339
	EndTime     string `json:"end_time"`   // RFC3339
	Status      Status `json:"status" enums:"BUSY,SWAPPABLE"`
}

// updateEventRequest: solo los campos presentes se modifican.
// Cualquier otro campo (id, owner_user_id, ...) es rechazado.
type updateEventRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Status      *Status `json:"status" enums:"BUSY,SWAPPABLE"`
}

// createEventHandler godoc
// @Summary Crear evento
// @Description Crea un evento en el calendario del usuario autenticado. Falla con 409 si se solapa con otro evento propio. Autenticación: `X-Debug-User-ID` (dev) o `Authorization: Bearer <token>` (prod).
// @Tags events
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createEventRequest true "Datos del evento; start_time/end_time en RFC3339"
// @Success 201 {object} View
// @Failure 400 {object} httpx.ErrorBody "validación"
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Failure 409 {object} httpx.ErrorBody "conflicto de horario"
// @Router /events [post]
func createEventHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req createEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.Fail(w, apperr.KindValidation, "invalid json")
			return
		}

		start, err := parseTime("start_time", req.StartTime)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		end, err := parseTime("end_time", req.EndTime)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		e, err := svc.Create(r.Context(), uid, CreateInput{
			Title:       req.Title,
			Description: req.Description,
			StartTime:   start,
			EndTime:     end,
			Status:      req.Status,
		})
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		httpx.WriteJSON(w, http.StatusCreated, ToView(e))
	}
}

// listEventsHandler godoc
// @Summary Listar eventos propios
// @Description Lista los eventos del usuario autenticado, con filtros opcionales por estado y rango.
// @Tags events
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param status query string false "BUSY | SWAPPABLE | SWAPPED"
// @Param from query string false "Inicio mínimo (RFC3339)"
// @Param to query string false "Inicio máximo (RFC3339)"
// @Param sort query string false "start_time (default) | end_time | created_at | title"
// @Param order query string false "asc (default) | desc"
// @Success 200 {array} View
// @Failure 400 {object} httpx.ErrorBody "filtros inválidos"
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Router /events [get]
func listEventsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}

		filter, err := parseListFilter(r)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		items, err := svc.List(r.Context(), uid, filter)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, ToViews(items))
	}
}

// exportEventsHandler godoc
// @Summary Exportar calendario (iCalendar)
// @Description Devuelve los eventos del usuario como text/calendar. Acepta los mismos filtros que el listado.
// @Tags events
// @Produce text/calendar
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {string} string "VCALENDAR"
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Router /events/export.ics [get]
func exportEventsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}

		filter, err := parseListFilter(r)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		items, err := svc.List(r.Context(), uid, filter)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="slots.ics"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(ExportICS(items)))
	}
}

// getEventHandler godoc
// @Summary Obtener evento
// @Tags events
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param eventID path string true "ID del evento"
// @Success 200 {object} View
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Failure 403 {object} httpx.ErrorBody "no es el dueño"
// @Failure 404 {object} httpx.ErrorBody "event not found"
// @Router /events/{eventID} [get]
func getEventHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}

		e, err := svc.Get(r.Context(), chi.URLParam(r, "eventID"), uid)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, ToView(e))
	}
}

// updateEventHandler godoc
// @Summary Editar evento
// @Description Edita título, descripción, horario o estado (BUSY/SWAPPABLE). El dueño no se puede cambiar por esta vía. Cambiar el estado con swap requests pendientes devuelve 409.
// @Tags events
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param eventID path string true "ID del evento"
// @Param payload body updateEventRequest true "Campos a modificar"
// @Success 200 {object} View
// @Failure 400 {object} httpx.ErrorBody "validación / campo no editable"
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Failure 403 {object} httpx.ErrorBody "no es el dueño"
// @Failure 404 {object} httpx.ErrorBody "event not found"
// @Failure 409 {object} httpx.ErrorBody "conflicto de horario / swaps pendientes"
// @Router /events/{eventID} [patch]
func updateEventHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req updateEventRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			httpx.Fail(w, apperr.KindValidation, "invalid json or non-editable field")
			return
		}

		p := Patch{
			Title:       req.Title,
			Description: req.Description,
			Status:      req.Status,
		}
		if req.StartTime != nil {
			t, err := parseTime("start_time", *req.StartTime)
			if err != nil {
				httpx.WriteError(w, err)
				return
			}
			p.StartTime = &t
		}
		if req.EndTime != nil {
			t, err := parseTime("end_time", *req.EndTime)
			if err != nil {
				httpx.WriteError(w, err)
				return
			}
			p.EndTime = &t
		}

		e, err := svc.Update(r.Context(), chi.URLParam(r, "eventID"), uid, p)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, ToView(e))
	}
}

// deleteEventHandler godoc
// @Summary Borrar evento
// @Description Borra un evento propio. Con swap requests pendientes devuelve 409.
// @Tags events
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param eventID path string true "ID del evento"
// @Success 204
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Failure 403 {object} httpx.ErrorBody "no es el dueño"
// @Failure 404 {object} httpx.ErrorBody "event not found"
// @Failure 409 {object} httpx.ErrorBody "swaps pendientes"
// @Router /events/{eventID} [delete]
func deleteEventHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "eventID"), uid); err != nil {
			httpx.WriteError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// markSwappableHandler godoc
// @Summary Ofrecer evento en el marketplace
// @Description Pasa el evento a SWAPPABLE. Si ya lo es devuelve 409.
// @Tags events
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param eventID path string true "ID del evento"
// @Success 200 {object} View
// @Failure 401 {object} httpx.ErrorBody "unauthorized"
// @Failure 403 {object} httpx.ErrorBody "no es el dueño"
// @Failure 404 {object} httpx.ErrorBody "event not found"
// @Failure 409 {object} httpx.ErrorBody "ya es swappable"
// @Router /events/{eventID}/swappable [post]
func markSwappableHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := currentUser(w, r)
		if !ok {
			return
		}

		e, err := svc.MarkSwappable(r.Context(), chi.URLParam(r, "eventID"), uid)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, ToView(e))
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

func parseTime(field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, apperr.Validation(field + " is required")
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, apperr.Validation(field + " must be RFC3339")
	}
	return t.UTC(), nil
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{
		Status: Status(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
		Sort:   SortField(strings.TrimSpace(q.Get("sort"))),
	}

	switch strings.ToLower(strings.TrimSpace(q.Get("order"))) {
	case "", "asc":
	case "desc":
		filter.Desc = true
	default:
		return ListFilter{}, apperr.Validation("order must be asc or desc")
	}

	if v := strings.TrimSpace(q.Get("from")); v != "" {
		t, err := parseTime("from", v)
		if err != nil {
			return ListFilter{}, err
		}
		filter.From = &t
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		t, err := parseTime("to", v)
		if err != nil {
			return ListFilter{}, err
		}
		filter.To = &t
	}

	return filter, nil
}
