package users

import (
	"context"
	"strings"
)

// Profile es la vista pública de un usuario (lo que se denormaliza en respuestas
// y en el snapshot de dueño original de un evento intercambiado).
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DisplayName cae al id si el perfil no tiene nombre.
func (p Profile) DisplayName() string {
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	if p.ID != "" {
		return p.ID
	}
	return "Someone"
}

// Directory resuelve perfiles por userID.
type Directory interface {
	Lookup(ctx context.Context, userID string) (Profile, error)
}

// Recorder guarda lo que sabemos de un usuario a partir de sus claims.
type Recorder interface {
	Remember(ctx context.Context, p Profile) error
}
