package events

import (
	"context"
	"time"
)

// ConflictChecker decide si un intervalo choca con los compromisos de un usuario.
// Es solo lectura; para que el resultado valga al escribir hay que llamarlo dentro
// de la misma transacción y después de LockOwner.
type ConflictChecker struct {
	repo Repository
}

func NewConflictChecker(repo Repository) *ConflictChecker {
	return &ConflictChecker{repo: repo}
}

func (c *ConflictChecker) HasConflict(ctx context.Context, userID string, start, end time.Time, excludeEventID string) (bool, error) {
	conflicts, err := c.ListConflicts(ctx, userID, start, end, excludeEventID)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

// ListConflicts devuelve los eventos que se solapan, para reportarlos en el error.
func (c *ConflictChecker) ListConflicts(ctx context.Context, userID string, start, end time.Time, excludeEventID string) ([]Event, error) {
	candidates, err := c.repo.ListOverlapping(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	out := make([]Event, 0, len(candidates))
	for _, e := range candidates {
		if excludeEventID != "" && e.ID == excludeEventID {
			continue
		}
		// El repo ya filtra; re-aplicamos el test estricto por si el adapter es más laxo.
		if e.OwnerUserID != userID || !e.Overlaps(start, end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
