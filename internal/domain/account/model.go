package account

import (
	"time"

	"slot-swapper/internal/domain/events"
	"slot-swapper/internal/domain/history"
	"slot-swapper/internal/domain/swaps"
	"slot-swapper/internal/ports/users"
)

// Stats es el resumen del dashboard del usuario.
type Stats struct {
	TotalEvents     int `json:"total_events"`
	TotalSwaps      int `json:"total_swaps"`
	PendingRequests int `json:"pending_requests"` // de ambos lados
	SwappableEvents int `json:"swappable_events"`
}

// SwapRequestRecord es el request tal como está guardado, sin poblar.
type SwapRequestRecord struct {
	ID               string       `json:"id"`
	RequesterID      string       `json:"requester_id"`
	RequesterEventID string       `json:"requester_event_id"`
	TargetUserID     string       `json:"target_user_id"`
	TargetEventID    string       `json:"target_event_id"`
	Status           swaps.Status `json:"status" enums:"PENDING,ACCEPTED,REJECTED"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func toRecord(r swaps.SwapRequest) SwapRequestRecord {
	return SwapRequestRecord{
		ID:               r.ID,
		RequesterID:      r.RequesterID,
		RequesterEventID: r.RequesterEventID,
		TargetUserID:     r.TargetUserID,
		TargetEventID:    r.TargetEventID,
		Status:           r.Status,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// Export es todo lo que el servicio guarda sobre un usuario.
type Export struct {
	User         users.Profile       `json:"user"`
	Events       []events.View       `json:"events"`
	SwapRequests []SwapRequestRecord `json:"swap_requests"`
	SwapHistory  []history.EntryView `json:"swap_history"`
	ExportedAt   time.Time           `json:"exported_at"`
}
