package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"slot-swapper/internal/domain/events"
	"slot-swapper/internal/platform/apperr"

	"golang.org/x/text/cases"
)

type eventRepo struct {
	s *Store
}

func NewEventRepo(s *Store) events.Repository {
	return &eventRepo{s: s}
}

func (r *eventRepo) Create(ctx context.Context, e events.Event) error {
	if strings.TrimSpace(e.ID) == "" {
		return apperr.Validation("event id required")
	}
	return r.s.update(ctx, func(t *tx) error {
		if _, exists := r.s.events[e.ID]; exists {
			return apperr.Conflict("event already exists")
		}
		r.s.events[e.ID] = cloneEvent(e)
		t.undo(func() { delete(r.s.events, e.ID) })
		return nil
	})
}

func (r *eventRepo) Update(ctx context.Context, e events.Event) error {
	return r.s.update(ctx, func(t *tx) error {
		prev, ok := r.s.events[e.ID]
		if !ok {
			return ErrNotFound
		}
		r.s.events[e.ID] = cloneEvent(e)
		t.undo(func() { r.s.events[e.ID] = prev })
		return nil
	})
}

func (r *eventRepo) Delete(ctx context.Context, id string) error {
	return r.s.update(ctx, func(t *tx) error {
		prev, ok := r.s.events[id]
		if !ok {
			return ErrNotFound
		}
		delete(r.s.events, id)
		t.undo(func() { r.s.events[id] = prev })
		return nil
	})
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (events.Event, error) {
	var out events.Event
	err := r.s.view(ctx, func() error {
		e, ok := r.s.events[id]
		if !ok {
			return ErrNotFound
		}
		out = cloneEvent(e)
		return nil
	})
	return out, err
}

func (r *eventRepo) ListByOwner(ctx context.Context, ownerUserID string, filter events.ListFilter) ([]events.Event, error) {
	out := make([]events.Event, 0)
	err := r.s.view(ctx, func() error {
		for _, e := range r.s.events {
			if e.OwnerUserID != ownerUserID {
				continue
			}
			if filter.Status != "" && e.Status != filter.Status {
				continue
			}
			if filter.From != nil && e.StartTime.Before(*filter.From) {
				continue
			}
			if filter.To != nil && e.StartTime.After(*filter.To) {
				continue
			}
			out = append(out, cloneEvent(e))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortEvents(out, filter.Sort, filter.Desc)
	return out, nil
}

func (r *eventRepo) ListOverlapping(ctx context.Context, ownerUserID string, start, end time.Time) ([]events.Event, error) {
	out := make([]events.Event, 0)
	err := r.s.view(ctx, func() error {
		for _, e := range r.s.events {
			if e.OwnerUserID == ownerUserID && e.Overlaps(start, end) {
				out = append(out, cloneEvent(e))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortEvents(out, events.SortStartTime, false)
	return out, nil
}

func (r *eventRepo) ListSwappable(ctx context.Context, f events.MarketFilter) ([]events.Event, int, error) {
	// Un Caser no se comparte entre goroutines.
	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(f.Query))

	matched := make([]events.Event, 0)
	err := r.s.view(ctx, func() error {
		for _, e := range r.s.events {
			if e.Status != events.StatusSwappable {
				continue
			}
			if f.ExcludeOwnerID != "" && e.OwnerUserID == f.ExcludeOwnerID {
				continue
			}
			if q != "" && !strings.Contains(fold.String(e.Title), q) {
				continue
			}
			if f.From != nil && e.StartTime.Before(*f.From) {
				continue
			}
			if f.To != nil && e.StartTime.After(*f.To) {
				continue
			}
			d := e.Duration()
			if f.MinDuration > 0 && d < f.MinDuration {
				continue
			}
			if f.MaxDuration != nil && d > *f.MaxDuration {
				continue
			}
			matched = append(matched, cloneEvent(e))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sortEvents(matched, events.SortStartTime, false)

	total := len(matched)
	from := min(max(f.Offset, 0), total)
	to := total
	if f.Limit > 0 && f.Limit < total-from {
		to = from + f.Limit
	}
	return matched[from:to], total, nil
}

// En memoria el gate de la transacción ya es exclusivo: no hay nada más que bloquear.
func (r *eventRepo) LockOwner(ctx context.Context, ownerUserID string) error { return ctx.Err() }

func (r *eventRepo) LockEvents(ctx context.Context, ids ...string) error { return ctx.Err() }

func sortEvents(items []events.Event, field events.SortField, desc bool) {
	less := func(a, b events.Event) bool {
		switch field {
		case events.SortEndTime:
			if !a.EndTime.Equal(b.EndTime) {
				return a.EndTime.Before(b.EndTime)
			}
		case events.SortCreatedAt:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case events.SortTitle:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		default:
			if !a.StartTime.Equal(b.StartTime) {
				return a.StartTime.Before(b.StartTime)
			}
		}
		return a.ID < b.ID
	}

	sort.Slice(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

func cloneEvent(e events.Event) events.Event {
	if e.OriginalOwner != nil {
		o := *e.OriginalOwner
		e.OriginalOwner = &o
	}
	return e
}
