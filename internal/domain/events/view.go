package events

import "time"

// View es la representación JSON de un evento (API y notificaciones).
type View struct {
	ID              string         `json:"id"`
	OwnerUserID     string         `json:"owner_user_id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         time.Time      `json:"end_time"`
	DurationMinutes int            `json:"duration_minutes"`
	Status          Status         `json:"status" enums:"BUSY,SWAPPABLE,SWAPPED"`
	OriginalEventID string         `json:"original_event_id,omitempty"`
	OriginalOwner   *OwnerSnapshot `json:"original_owner,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func ToView(e Event) View {
	return View{
		ID:              e.ID,
		OwnerUserID:     e.OwnerUserID,
		Title:           e.Title,
		Description:     e.Description,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		DurationMinutes: int(e.Duration().Minutes()),
		Status:          e.Status,
		OriginalEventID: e.OriginalEventID,
		OriginalOwner:   e.OriginalOwner,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func ToViews(items []Event) []View {
	out := make([]View, 0, len(items))
	for _, e := range items {
		out = append(out, ToView(e))
	}
	return out
}

// Notice es el payload de eventCreated / eventUpdated / eventDeleted.
type Notice struct {
	Event   *View  `json:"event,omitempty"`
	EventID string `json:"event_id,omitempty"`
	Message string `json:"message"`
}
