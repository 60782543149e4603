package history

import (
	"time"

	"slot-swapper/internal/domain/events"
)

// Side es una de las dos partes de un swap completado: el usuario y el evento que entregó.
// Snapshot es ese evento tal como quedó después del intercambio (ya con el nuevo dueño).
type Side struct {
	UserID   string
	EventID  string
	Snapshot events.Event
}

// Entry registra un swap aceptado. Se escribe una sola vez y nunca se modifica.
type Entry struct {
	ID            string
	SwapRequestID string
	Sides         [2]Side
	CompletedAt   time.Time
}

// Involves indica si userID participó del swap.
func (e Entry) Involves(userID string) bool {
	return e.Sides[0].UserID == userID || e.Sides[1].UserID == userID
}
