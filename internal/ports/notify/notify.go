package notify

import (
	"context"
	"time"
)

// EventType es el nombre del evento que recibe el cliente en su topic.
type EventType string

const (
	EventNewSwapRequest EventType = "newSwapRequest"
	EventSwapAccepted   EventType = "swapAccepted"
	EventSwapRejected   EventType = "swapRejected"
	EventCreated        EventType = "eventCreated"
	EventUpdated        EventType = "eventUpdated"
	EventDeleted        EventType = "eventDeleted"
)

// Publisher entrega payload a todas las conexiones vivas de userID.
// Devuelve cuántas conexiones lo recibieron; 0 si el usuario no está conectado.
type Publisher interface {
	Publish(ctx context.Context, userID string, t EventType, payload any) int
}

// Envelope es lo que viaja por el cable.
// ID permite al cliente descartar duplicados.
type Envelope struct {
	ID     string    `json:"id"`
	Type   EventType `json:"type"`
	Data   any       `json:"data"`
	SentAt time.Time `json:"sent_at"`
}

// Discard es un Publisher que no entrega nada (tests / modo sin realtime).
type Discard struct{}

func (Discard) Publish(context.Context, string, EventType, any) int { return 0 }
