package swaps

import (
	"context"
	"errors"
	"time"

	"slot-swapper/internal/domain/events"
	"slot-swapper/internal/platform/apperr"
	"slot-swapper/internal/ports/users"
)

// Detail es el request "poblado": ambos eventos y ambos perfiles.
// Es solo de lectura; lo almacenado sigue normalizado.
type Detail struct {
	ID             string        `json:"id"`
	Status         Status        `json:"status" enums:"PENDING,ACCEPTED,REJECTED"`
	Requester      users.Profile `json:"requester"`
	TargetUser     users.Profile `json:"target_user"`
	RequesterEvent *events.View  `json:"requester_event"`
	TargetEvent    *events.View  `json:"target_event"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Notice es el payload de newSwapRequest / swapAccepted / swapRejected.
type Notice struct {
	Request Detail `json:"swap_request"`
	Message string `json:"message"`
}

// composer arma Details con un cache por llamada, para no repetir lookups en listados.
type composer struct {
	svc      *Service
	profiles map[string]users.Profile
	events   map[string]*events.View
}

func (s *Service) newComposer() *composer {
	return &composer{
		svc:      s,
		profiles: make(map[string]users.Profile),
		events:   make(map[string]*events.View),
	}
}

func (c *composer) compose(ctx context.Context, r SwapRequest) (Detail, error) {
	reqEv, err := c.event(ctx, r.RequesterEventID)
	if err != nil {
		return Detail{}, err
	}
	tgtEv, err := c.event(ctx, r.TargetEventID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{
		ID:             r.ID,
		Status:         r.Status,
		Requester:      c.profile(ctx, r.RequesterID),
		TargetUser:     c.profile(ctx, r.TargetUserID),
		RequesterEvent: reqEv,
		TargetEvent:    tgtEv,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

// seed evita releer eventos que el caller ya tiene (p.ej. recién intercambiados).
func (c *composer) seed(items ...events.Event) {
	for _, e := range items {
		v := events.ToView(e)
		c.events[e.ID] = &v
	}
}

// event devuelve nil si el evento ya no existe (request rechazado y evento borrado).
func (c *composer) event(ctx context.Context, id string) (*events.View, error) {
	if v, ok := c.events[id]; ok {
		return v, nil
	}
	e, err := c.svc.calendar.Find(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			c.events[id] = nil
			return nil, nil
		}
		return nil, err
	}
	v := events.ToView(e)
	c.events[id] = &v
	return &v, nil
}

func (c *composer) profile(ctx context.Context, userID string) users.Profile {
	if p, ok := c.profiles[userID]; ok {
		return p
	}
	p := c.svc.lookupProfile(ctx, userID)
	c.profiles[userID] = p
	return p
}
