package events

import "time"

type Status string

const (
	StatusBusy      Status = "BUSY"
	StatusSwappable Status = "SWAPPABLE"
	StatusSwapped   Status = "SWAPPED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusBusy, StatusSwappable, StatusSwapped:
		return true
	default:
		return false
	}
}

// OwnerSnapshot congela quién era el dueño antes de un swap. No se modifica después.
type OwnerSnapshot struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Event es un compromiso en el calendario de un usuario.
// StartTime/EndTime siempre en UTC; el intervalo es [StartTime, EndTime).
type Event struct {
	ID          string
	OwnerUserID string

	Title       string
	Description string

	StartTime time.Time
	EndTime   time.Time

	Status Status

	// Solo cuando Status == SWAPPED: el evento por el que se intercambió.
	OriginalEventID string
	OriginalOwner   *OwnerSnapshot

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e Event) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// Overlaps usa el test estricto: A y B se solapan sii A.start < B.end && B.start < A.end.
// Intervalos que solo se tocan en un borde no se solapan.
func (e Event) Overlaps(start, end time.Time) bool {
	return e.StartTime.Before(end) && start.Before(e.EndTime)
}
