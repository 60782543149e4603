package history

import "context"

// Repository es append-only: no hay Update ni Delete.
type Repository interface {
	// Append falla con apperr.ErrConflict si ya existe una entrada para el mismo swap request.
	Append(ctx context.Context, e Entry) error
	GetBySwapRequest(ctx context.Context, swapRequestID string) (Entry, error)
	// ListForUser devuelve las entradas donde userID participó, más nuevas primero.
	// limit <= 0 => todas.
	ListForUser(ctx context.Context, userID string, limit int) ([]Entry, error)
}
