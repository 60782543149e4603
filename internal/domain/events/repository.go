package events

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, e Event) error
	Update(ctx context.Context, e Event) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Event, error)
	ListByOwner(ctx context.Context, ownerUserID string, filter ListFilter) ([]Event, error)

	// ListOverlapping devuelve los eventos de ownerUserID que se solapan con [start, end).
	ListOverlapping(ctx context.Context, ownerUserID string, start, end time.Time) ([]Event, error)

	// ListSwappable es la consulta del marketplace.
	ListSwappable(ctx context.Context, filter MarketFilter) ([]Event, int, error)

	// LockOwner serializa check-then-write por usuario dentro de la transacción actual.
	LockOwner(ctx context.Context, ownerUserID string) error
	// LockEvents bloquea los eventos indicados (en orden ascendente de id) hasta el commit.
	LockEvents(ctx context.Context, ids ...string) error
}

type SortField string

const (
	SortStartTime SortField = "start_time"
	SortEndTime   SortField = "end_time"
	SortCreatedAt SortField = "created_at"
	SortTitle     SortField = "title"
)

func (f SortField) Valid() bool {
	switch f {
	case SortStartTime, SortEndTime, SortCreatedAt, SortTitle:
		return true
	default:
		return false
	}
}

type ListFilter struct {
	Status Status // vacío => todos
	From   *time.Time
	To     *time.Time
	Sort   SortField
	Desc   bool
}

type MarketFilter struct {
	ExcludeOwnerID string
	Query          string
	From           *time.Time
	To             *time.Time
	MinDuration    time.Duration
	MaxDuration    *time.Duration // nil => sin tope; 0 es un tope válido
	Offset         int
	Limit          int
}

// PendingLookup evita importar el paquete swaps (rompe ciclos).
type PendingLookup interface {
	HasPendingForEvent(ctx context.Context, eventID string) (bool, error)
}
