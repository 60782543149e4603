package swaps

import "time"

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	default:
		return false
	}
}

// SwapRequest es la propuesta de RequesterID de cambiar RequesterEventID por TargetEventID.
// PENDING -> ACCEPTED | REJECTED. Cancelar borra el registro (no hay estado CANCELLED).
type SwapRequest struct {
	ID string

	RequesterID      string
	RequesterEventID string

	TargetUserID  string
	TargetEventID string

	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Involves indica si userID es una de las dos partes.
func (r SwapRequest) Involves(userID string) bool {
	return r.RequesterID == userID || r.TargetUserID == userID
}
