package swaps

import (
	"context"
	"time"
)

type Repository interface {
	// Create falla con apperr.ErrConflict si ya hay un PENDING para el mismo par de eventos.
	Create(ctx context.Context, r SwapRequest) error
	GetByID(ctx context.Context, id string) (SwapRequest, error)

	// UpdateStatus transiciona solo si el estado actual es from.
	// Si otro ya lo movió devuelve apperr.ErrInvalidState; así Accept/Reject son exactly-once.
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) error

	// DeletePending borra el request solo si sigue PENDING (apperr.ErrInvalidState si no).
	DeletePending(ctx context.Context, id string) error

	FindPending(ctx context.Context, requesterEventID, targetEventID string) (SwapRequest, bool, error)
	// HasPendingForEvent mira ambos lados (requester o target).
	HasPendingForEvent(ctx context.Context, eventID string) (bool, error)

	// ListIncoming: PENDING donde userID es el target. Más nuevos primero.
	ListIncoming(ctx context.Context, userID string) ([]SwapRequest, error)
	// ListOutgoing: todos los estados donde userID es el requester. Más nuevos primero.
	ListOutgoing(ctx context.Context, userID string) ([]SwapRequest, error)
	// ListForUser: todos los estados, userID de cualquier lado. Más nuevos primero.
	ListForUser(ctx context.Context, userID string) ([]SwapRequest, error)
}
