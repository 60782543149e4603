package identity

import (
	"context"
	"errors"

	"slot-swapper/internal/platform/apperr"
	"slot-swapper/internal/platform/logger"
	"slot-swapper/internal/ports/users"
)

// Directory resuelve perfiles primero en el store local (lo que vino en claims)
// y, si no hay nombre, pregunta al IAM y cachea la respuesta en el store local.
type Directory struct {
	client *Client
	local  LocalDirectory
	log    logger.Logger
}

// LocalDirectory es el directorio persistente (memory / postgres).
type LocalDirectory interface {
	users.Directory
	users.Recorder
}

func NewDirectory(client *Client, local LocalDirectory, log logger.Logger) *Directory {
	if log == nil {
		log = logger.Nop()
	}
	return &Directory{client: client, local: local, log: log}
}

func (d *Directory) Lookup(ctx context.Context, userID string) (users.Profile, error) {
	p, err := d.local.Lookup(ctx, userID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return users.Profile{}, err
	}
	if err == nil && p.Name != "" {
		return p, nil
	}
	if !d.client.IsConfigured() {
		if err != nil {
			return users.Profile{}, err
		}
		return p, nil
	}

	remote, rerr := d.client.GetProfile(ctx, userID)
	if rerr != nil {
		if errors.Is(rerr, ErrUnknownUser) {
			return users.Profile{}, apperr.NotFound("user not found")
		}
		d.log.Warn("identity profile lookup failed", map[string]any{"user_id": userID, "error": rerr.Error()})
		if err != nil {
			return users.Profile{}, err
		}
		return p, nil
	}

	if serr := d.local.Remember(ctx, remote); serr != nil {
		d.log.Warn("cache profile failed", map[string]any{"user_id": userID, "error": serr.Error()})
	}
	if remote.Email == "" {
		remote.Email = p.Email
	}
	return remote, nil
}

func (d *Directory) Remember(ctx context.Context, p users.Profile) error {
	return d.local.Remember(ctx, p)
}
