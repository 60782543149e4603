package marketplace

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"slot-swapper/internal/domain/events"
	"slot-swapper/internal/platform/apperr"
	"slot-swapper/internal/ports/users"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// Tope de los filtros de duración: lo que entra en un time.Duration.
	maxDurationMinutes = math.MaxInt64 / int64(time.Minute)
)

// Filter es lo que acepta el listado. Duraciones en minutos; nil => sin filtro.
type Filter struct {
	Query       string
	From        *time.Time
	To          *time.Time
	MinDuration *int
	MaxDuration *int
	Page        int
	Limit       int
}

// Listing es un slot ofrecido junto con el perfil público de su dueño.
type Listing struct {
	events.View
	Owner users.Profile `json:"owner"`
}

type Page struct {
	Items       []Listing `json:"items"`
	Total       int       `json:"total"`
	TotalPages  int       `json:"total_pages"`
	CurrentPage int       `json:"current_page"`
	Limit       int       `json:"limit"`
}

// Service es la vista de solo lectura de todos los eventos SWAPPABLE ajenos.
type Service struct {
	repo    events.Repository
	dir     users.Directory
	timeout time.Duration
}

func NewService(repo events.Repository, dir users.Directory, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = events.DefaultTimeout
	}
	return &Service{repo: repo, dir: dir, timeout: timeout}
}

func (s *Service) List(ctx context.Context, viewerID string, f Filter) (Page, error) {
	if strings.TrimSpace(viewerID) == "" {
		return Page{}, apperr.Validation("viewer is required")
	}

	mf, page, limit, err := f.normalize()
	if err != nil {
		return Page{}, err
	}
	mf.ExcludeOwnerID = viewerID

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, total, err := s.repo.ListSwappable(ctx, mf)
	if err != nil {
		return Page{}, apperr.Normalize(err)
	}

	profiles := make(map[string]users.Profile)
	out := make([]Listing, 0, len(items))
	for _, e := range items {
		p, ok := profiles[e.OwnerUserID]
		if !ok {
			p = s.profile(ctx, e.OwnerUserID)
			profiles[e.OwnerUserID] = p
		}
		out = append(out, Listing{View: events.ToView(e), Owner: p})
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	return Page{
		Items:       out,
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: page,
		Limit:       limit,
	}, nil
}

func (s *Service) Get(ctx context.Context, viewerID, eventID string) (Listing, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return Listing{}, apperr.Validation("event id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	e, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Listing{}, apperr.NotFound("slot not found")
		}
		return Listing{}, apperr.Normalize(err)
	}
	if e.Status != events.StatusSwappable {
		return Listing{}, apperr.InvalidState("slot is no longer available for swapping")
	}
	if e.OwnerUserID == viewerID {
		return Listing{}, apperr.InvalidOperation("cannot view own event in marketplace")
	}

	return Listing{View: events.ToView(e), Owner: s.profile(ctx, e.OwnerUserID)}, nil
}

func (s *Service) profile(ctx context.Context, userID string) users.Profile {
	if s.dir == nil {
		return users.Profile{ID: userID}
	}
	p, err := s.dir.Lookup(ctx, userID)
	if err != nil {
		return users.Profile{ID: userID}
	}
	p.ID = userID
	return p
}

func (f Filter) normalize() (events.MarketFilter, int, int, error) {
	page := f.Page
	if page <= 0 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page > math.MaxInt/limit {
		return events.MarketFilter{}, 0, 0, apperr.Validation("page is out of range")
	}

	mf := events.MarketFilter{
		Query:  strings.TrimSpace(f.Query),
		From:   f.From,
		To:     f.To,
		Offset: (page - 1) * limit,
		Limit:  limit,
	}

	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return events.MarketFilter{}, 0, 0, apperr.Validation("to must not be before from")
	}
	if f.MinDuration != nil {
		if *f.MinDuration < 0 {
			return events.MarketFilter{}, 0, 0, apperr.Validation("min_duration must not be negative")
		}
		if int64(*f.MinDuration) > maxDurationMinutes {
			return events.MarketFilter{}, 0, 0, apperr.Validation("min_duration is out of range")
		}
		mf.MinDuration = time.Duration(*f.MinDuration) * time.Minute
	}
	if f.MaxDuration != nil {
		if *f.MaxDuration < 0 {
			return events.MarketFilter{}, 0, 0, apperr.Validation("max_duration must not be negative")
		}
		if int64(*f.MaxDuration) > maxDurationMinutes {
			return events.MarketFilter{}, 0, 0, apperr.Validation("max_duration is out of range")
		}
		d := time.Duration(*f.MaxDuration) * time.Minute
		mf.MaxDuration = &d
	}
	if f.MinDuration != nil && f.MaxDuration != nil && *f.MinDuration > *f.MaxDuration {
		return events.MarketFilter{}, 0, 0, apperr.Validation("min_duration must not exceed max_duration")
	}

	return mf, page, limit, nil
}
