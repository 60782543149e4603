package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"slot-swapper/internal/platform/apperr"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody es el cuerpo estable de error que ve el cliente.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
	Details []string    `json:"details,omitempty"`
}

// WriteError traduce un error de servicio a status HTTP + cuerpo JSON.
func WriteError(w http.ResponseWriter, err error) {
	err = apperr.Normalize(err)

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.New(apperr.KindInternal, "internal error")
	}

	msg := ae.Error()
	if ae.Kind == apperr.KindInternal {
		// No filtrar detalles de infraestructura.
		msg = "internal error"
	}

	WriteJSON(w, StatusFor(ae.Kind), ErrorBody{Error: ErrorDetail{
		Kind:    ae.Kind,
		Message: msg,
		Details: ae.Details,
	}})
}

// Fail responde un error construido en el propio handler (auth, json inválido, etc.).
func Fail(w http.ResponseWriter, kind apperr.Kind, msg string) {
	WriteJSON(w, StatusFor(kind), ErrorBody{Error: ErrorDetail{Kind: kind, Message: msg}})
}

func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindInvalidOperation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInvalidState:
		return http.StatusConflict
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Unauthorized es el 401 que usan todos los handlers cuando no hay claims.
func Unauthorized(w http.ResponseWriter) {
	WriteJSON(w, http.StatusUnauthorized, ErrorBody{Error: ErrorDetail{Kind: "unauthorized", Message: "unauthorized"}})
}

// QueryInt lee un entero positivo de la query; vacío => def, mayor a max => max.
func QueryInt(r *http.Request, key string, def, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperr.Validation(key + " must be a positive integer")
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}
