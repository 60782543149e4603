package memory

import (
	"context"
	"strings"
	"sync"

	"slot-swapper/internal/ports/users"
)

// Directory guarda los perfiles que vamos viendo en los claims.
// Implementa users.Directory y users.Recorder.
type Directory struct {
	mu   sync.RWMutex
	byID map[string]users.Profile
}

func NewDirectory() *Directory {
	return &Directory{byID: make(map[string]users.Profile)}
}

func (d *Directory) Lookup(ctx context.Context, userID string) (users.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.byID[userID]
	if !ok {
		return users.Profile{}, ErrNotFound
	}
	return p, nil
}

// Remember no pisa datos conocidos con vacíos: un request con solo el id
// no borra el nombre/email que vino en uno anterior.
func (d *Directory) Remember(ctx context.Context, p users.Profile) error {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cur := d.byID[id]
	cur.ID = id
	if v := strings.TrimSpace(p.Name); v != "" {
		cur.Name = v
	}
	if v := strings.TrimSpace(p.Email); v != "" {
		cur.Email = v
	}
	d.byID[id] = cur
	return nil
}
