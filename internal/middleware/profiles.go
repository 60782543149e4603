package middleware

import (
	"net/http"

	"slot-swapper/internal/platform/logger"
	"slot-swapper/internal/ports/users"
)

// RecordProfiles guarda nombre/email de los claims en el directorio de usuarios,
// para poder denormalizar perfiles en respuestas y emails de otros usuarios.
// Un fallo se loguea y el request sigue.
func RecordProfiles(rec users.Recorder, log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := GetClaims(r.Context()); ok && rec != nil && claims.UserID != "" &&
				(claims.Name != "" || claims.Email != "") {
				p := users.Profile{ID: claims.UserID, Name: claims.Name, Email: claims.Email}
				if err := rec.Remember(r.Context(), p); err != nil {
					log.Warn("remember profile failed", map[string]any{"user_id": claims.UserID, "error": err.Error()})
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
