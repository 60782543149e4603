package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"slot-swapper/internal/platform/apperr"
	"slot-swapper/internal/platform/logger"
	"slot-swapper/internal/ports/notify"
	"slot-swapper/internal/ports/txn"

	"github.com/google/uuid"
)

const (
	titleMinLen       = 3
	titleMaxLen       = 100
	descriptionMaxLen = 500

	DefaultTimeout = 10 * time.Second
)

type Options struct {
	Tx        txn.Manager
	Pending   PendingLookup
	Publisher notify.Publisher
	Logger    logger.Logger

	// Timeout acota cada operación contra el store.
	Timeout time.Duration
}

type Service struct {
	repo    Repository
	checker *ConflictChecker
	tx      txn.Manager
	pending PendingLookup
	pub     notify.Publisher
	log     logger.Logger
	now     func() time.Time
	timeout time.Duration
}

func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:    repo,
		checker: NewConflictChecker(repo),
		tx:      opts.Tx,
		pending: opts.Pending,
		pub:     opts.Publisher,
		log:     opts.Logger,
		now:     time.Now,
		timeout: opts.Timeout,
	}
	if s.tx == nil {
		s.tx = txn.Passthrough{}
	}
	if s.pub == nil {
		s.pub = notify.Discard{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	return s
}

// Checker expone el conflict checker (lo usan tests y el motor de swaps).
func (s *Service) Checker() *ConflictChecker { return s.checker }

type CreateInput struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Status      Status // BUSY (default) o SWAPPABLE
}

// Patch es la whitelist de campos editables por el dueño.
// id, owner y timestamps no existen acá a propósito.
type Patch struct {
	Title       *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	Status      *Status
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.StartTime == nil && p.EndTime == nil && p.Status == nil
}

func (s *Service) Create(ctx context.Context, ownerUserID string, in CreateInput) (Event, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return Event{}, apperr.Validation("owner is required")
	}

	title, err := normalizeTitle(in.Title)
	if err != nil {
		return Event{}, err
	}
	desc, err := normalizeDescription(in.Description)
	if err != nil {
		return Event{}, err
	}

	start, end := in.StartTime.UTC(), in.EndTime.UTC()
	if err := validateInterval(start, end); err != nil {
		return Event{}, err
	}

	status := in.Status
	if status == "" {
		status = StatusBusy
	}
	if status != StatusBusy && status != StatusSwappable {
		return Event{}, apperr.Validation("status must be BUSY or SWAPPABLE")
	}

	now := s.now().UTC()
	e := Event{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		Title:       title,
		Description: desc,
		StartTime:   start,
		EndTime:     end,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = s.tx.WithinTx(tctx, func(ctx context.Context) error {
		if err := s.repo.LockOwner(ctx, ownerUserID); err != nil {
			return err
		}
		if err := s.ensureNoConflict(ctx, ownerUserID, start, end, ""); err != nil {
			return err
		}
		return s.repo.Create(ctx, e)
	})
	if err != nil {
		return Event{}, apperr.Normalize(err)
	}

	s.log.Info("event created", map[string]any{"event_id": e.ID, "owner_user_id": ownerUserID})
	v := ToView(e)
	s.publish(ctx, ownerUserID, notify.EventCreated, Notice{Event: &v, Message: "New event created"})

	return e, nil
}

func (s *Service) Get(ctx context.Context, id, requesterID string) (Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Event{}, apperr.Validation("event id is required")
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	e, err := s.load(tctx, id)
	if err != nil {
		return Event{}, err
	}
	if e.OwnerUserID != requesterID {
		return Event{}, apperr.Authorization("not authorized to access this event")
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, ownerUserID string, filter ListFilter) ([]Event, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, apperr.Validation("owner is required")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation("status must be one of BUSY, SWAPPABLE, SWAPPED")
	}
	if filter.Sort == "" {
		filter.Sort = SortStartTime
	}
	if !filter.Sort.Valid() {
		return nil, apperr.Validation("sort must be one of start_time, end_time, created_at, title")
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, err := s.repo.ListByOwner(tctx, ownerUserID, filter)
	if err != nil {
		return nil, apperr.Normalize(err)
	}
	return items, nil
}

func (s *Service) Update(ctx context.Context, id, requesterID string, p Patch) (Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Event{}, apperr.Validation("event id is required")
	}
	if p.Empty() {
		return Event{}, apperr.Validation("nothing to update")
	}
	if p.Status != nil && !p.Status.Valid() {
		return Event{}, apperr.Validation("status must be one of BUSY, SWAPPABLE, SWAPPED")
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var updated Event
	err := s.tx.WithinTx(tctx, func(ctx context.Context) error {
		e, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if e.OwnerUserID != requesterID {
			return apperr.Authorization("not authorized to update this event")
		}
		if err := s.repo.LockOwner(ctx, e.OwnerUserID); err != nil {
			return err
		}

		if p.Title != nil {
			t, err := normalizeTitle(*p.Title)
			if err != nil {
				return err
			}
			e.Title = t
		}
		if p.Description != nil {
			d, err := normalizeDescription(*p.Description)
			if err != nil {
				return err
			}
			e.Description = d
		}

		if p.StartTime != nil || p.EndTime != nil {
			start, end := e.StartTime, e.EndTime
			if p.StartTime != nil {
				start = p.StartTime.UTC()
			}
			if p.EndTime != nil {
				end = p.EndTime.UTC()
			}
			if err := validateInterval(start, end); err != nil {
				return err
			}
			if err := s.ensureNoConflict(ctx, e.OwnerUserID, start, end, e.ID); err != nil {
				return err
			}
			e.StartTime, e.EndTime = start, end
		}

		if p.Status != nil && *p.Status != e.Status {
			if *p.Status == StatusSwapped {
				return apperr.Validation("status SWAPPED can only be set by accepting a swap request")
			}
			if err := s.repo.LockEvents(ctx, e.ID); err != nil {
				return err
			}
			pending, err := s.hasPending(ctx, e.ID)
			if err != nil {
				return err
			}
			if pending {
				return apperr.Conflict("cannot change status of an event with pending swap requests")
			}
			e.Status = *p.Status
		}

		e.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return Event{}, apperr.Normalize(err)
	}

	s.log.Info("event updated", map[string]any{"event_id": updated.ID, "owner_user_id": updated.OwnerUserID})
	v := ToView(updated)
	s.publish(ctx, updated.OwnerUserID, notify.EventUpdated, Notice{Event: &v, Message: "Event updated"})

	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id, requesterID string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperr.Validation("event id is required")
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.tx.WithinTx(tctx, func(ctx context.Context) error {
		e, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if e.OwnerUserID != requesterID {
			return apperr.Authorization("not authorized to delete this event")
		}
		// Mismo lock que toma la creación de swap requests sobre este evento.
		if err := s.repo.LockEvents(ctx, e.ID); err != nil {
			return err
		}
		pending, err := s.hasPending(ctx, e.ID)
		if err != nil {
			return err
		}
		if pending {
			return apperr.Conflict("cannot delete event with pending swap requests")
		}
		return s.repo.Delete(ctx, e.ID)
	})
	if err != nil {
		return apperr.Normalize(err)
	}

	s.log.Info("event deleted", map[string]any{"event_id": id, "owner_user_id": requesterID})
	s.publish(ctx, requesterID, notify.EventDeleted, Notice{EventID: id, Message: "Event deleted"})
	return nil
}

// MarkSwappable pasa BUSY (o SWAPPED, re-circulación permitida) a SWAPPABLE.
func (s *Service) MarkSwappable(ctx context.Context, id, requesterID string) (Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Event{}, apperr.Validation("event id is required")
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var updated Event
	err := s.tx.WithinTx(tctx, func(ctx context.Context) error {
		e, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if e.OwnerUserID != requesterID {
			return apperr.Authorization("not authorized to update this event")
		}
		if err := s.repo.LockEvents(ctx, e.ID); err != nil {
			return err
		}
		if e.Status == StatusSwappable {
			return apperr.InvalidState("event is already swappable")
		}
		// Un SWAPPED puede tener requests viejos apuntándole; hasta que se resuelvan no vuelve al mercado.
		pending, err := s.hasPending(ctx, e.ID)
		if err != nil {
			return err
		}
		if pending {
			return apperr.Conflict("cannot change status of an event with pending swap requests")
		}
		e.Status = StatusSwappable
		e.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return Event{}, apperr.Normalize(err)
	}

	s.log.Info("event marked swappable", map[string]any{"event_id": updated.ID, "owner_user_id": updated.OwnerUserID})
	v := ToView(updated)
	s.publish(ctx, updated.OwnerUserID, notify.EventUpdated, Notice{Event: &v, Message: "Event marked as swappable"})

	return updated, nil
}

// Find lee un evento sin chequear dueño. Lo usan el motor de swaps y el marketplace.
func (s *Service) Find(ctx context.Context, id string) (Event, error) {
	return s.load(ctx, id)
}

// LockEvents bloquea eventos hasta el fin de la transacción del ctx.
func (s *Service) LockEvents(ctx context.Context, ids ...string) error {
	return s.repo.LockEvents(ctx, ids...)
}

// LockForExchange toma, en el orden global, los locks que necesita un intercambio:
// primero los dueños actuales (ascendente) y luego los eventos (ascendente).
func (s *Service) LockForExchange(ctx context.Context, eventAID, eventBID string) error {
	a, err := s.loadPair(ctx, eventAID)
	if err != nil {
		return err
	}
	b, err := s.loadPair(ctx, eventBID)
	if err != nil {
		return err
	}

	owners := []string{a.OwnerUserID, b.OwnerUserID}
	sort.Strings(owners)
	for i, o := range owners {
		if i > 0 && o == owners[i-1] {
			continue
		}
		if err := s.repo.LockOwner(ctx, o); err != nil {
			return err
		}
	}
	return s.repo.LockEvents(ctx, eventAID, eventBID)
}

// ExchangeOwnership intercambia los dueños de dos eventos SWAPPABLE.
// Solo lo llama el motor de swaps, dentro de su transacción (WithinTx se une a ella).
// snapshots trae el perfil de cada dueño actual, indexado por userID.
func (s *Service) ExchangeOwnership(ctx context.Context, eventAID, eventBID string, snapshots map[string]OwnerSnapshot) (Event, Event, error) {
	if eventAID == eventBID {
		return Event{}, Event{}, apperr.InvalidOperation("cannot swap a slot with itself")
	}

	var outA, outB Event
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.LockForExchange(ctx, eventAID, eventBID); err != nil {
			return err
		}

		// Releer ya con los locks tomados.
		a, err := s.loadPair(ctx, eventAID)
		if err != nil {
			return err
		}
		b, err := s.loadPair(ctx, eventBID)
		if err != nil {
			return err
		}

		if a.Status != StatusSwappable || b.Status != StatusSwappable {
			return apperr.InvalidState("one or both events are no longer swappable")
		}
		if a.OwnerUserID == b.OwnerUserID {
			return apperr.InvalidOperation("cannot swap with yourself")
		}

		// Cada nuevo dueño no puede quedar con solapamientos.
		if err := s.ensureNoConflict(ctx, b.OwnerUserID, a.StartTime, a.EndTime, b.ID); err != nil {
			return err
		}
		if err := s.ensureNoConflict(ctx, a.OwnerUserID, b.StartTime, b.EndTime, a.ID); err != nil {
			return err
		}

		prevA := snapshotFor(a.OwnerUserID, snapshots)
		prevB := snapshotFor(b.OwnerUserID, snapshots)
		now := s.now().UTC()

		a.OwnerUserID, b.OwnerUserID = b.OwnerUserID, a.OwnerUserID
		a.Status, b.Status = StatusSwapped, StatusSwapped
		a.OriginalEventID, b.OriginalEventID = b.ID, a.ID
		a.OriginalOwner, b.OriginalOwner = &prevA, &prevB
		a.UpdatedAt, b.UpdatedAt = now, now

		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		outA, outB = a, b
		return nil
	})
	if err != nil {
		return Event{}, Event{}, apperr.Normalize(err)
	}
	return outA, outB, nil
}

func (s *Service) ensureNoConflict(ctx context.Context, ownerUserID string, start, end time.Time, excludeID string) error {
	conflicts, err := s.checker.ListConflicts(ctx, ownerUserID, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}

	titles := make([]string, 0, len(conflicts))
	details := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		titles = append(titles, c.Title)
		details = append(details, c.ID)
	}
	return apperr.Conflict(
		fmt.Sprintf("event conflicts with existing event(s): %s", strings.Join(titles, ", ")),
		details...,
	)
}

func (s *Service) load(ctx context.Context, id string) (Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Event{}, apperr.NotFound("event not found")
		}
		return Event{}, err
	}
	return e, nil
}

func (s *Service) loadPair(ctx context.Context, id string) (Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Event{}, apperr.InvalidState("one or both events are no longer swappable")
		}
		return Event{}, err
	}
	return e, nil
}

func (s *Service) hasPending(ctx context.Context, eventID string) (bool, error) {
	if s.pending == nil {
		return false, nil
	}
	return s.pending.HasPendingForEvent(ctx, eventID)
}

func (s *Service) publish(ctx context.Context, userID string, t notify.EventType, payload any) {
	n := s.pub.Publish(ctx, userID, t, payload)
	s.log.Debug("notification published", map[string]any{"user_id": userID, "type": string(t), "delivered": n})
}

func snapshotFor(userID string, snapshots map[string]OwnerSnapshot) OwnerSnapshot {
	snap, ok := snapshots[userID]
	if !ok {
		return OwnerSnapshot{ID: userID}
	}
	snap.ID = userID
	return snap
}

func normalizeTitle(raw string) (string, error) {
	t := strings.TrimSpace(raw)
	if t == "" {
		return "", apperr.Validation("title is required")
	}
	n := len([]rune(t))
	if n < titleMinLen || n > titleMaxLen {
		return "", apperr.Validation(fmt.Sprintf("title must be between %d and %d characters", titleMinLen, titleMaxLen))
	}
	return t, nil
}

func normalizeDescription(raw string) (string, error) {
	d := strings.TrimSpace(raw)
	if len([]rune(d)) > descriptionMaxLen {
		return "", apperr.Validation(fmt.Sprintf("description must be at most %d characters", descriptionMaxLen))
	}
	return d, nil
}

func validateInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Validation("start_time and end_time are required")
	}
	if !start.Before(end) {
		return apperr.Validation("end time must be after start time")
	}
	return nil
}
