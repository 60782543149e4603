package account

import (
	"context"
	"strings"
	"time"

	"slot-swapper/internal/domain/events"
	"slot-swapper/internal/domain/history"
	"slot-swapper/internal/domain/swaps"
	"slot-swapper/internal/platform/apperr"
	"slot-swapper/internal/ports/users"

	"golang.org/x/sync/errgroup"
)

// Service arma vistas agregadas de un usuario leyendo los repos de cada módulo.
// Es solo lectura.
type Service struct {
	events  events.Repository
	swaps   swaps.Repository
	history history.Repository
	dir     users.Directory
	now     func() time.Time
	timeout time.Duration
}

func NewService(ev events.Repository, sw swaps.Repository, hist history.Repository, dir users.Directory, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		events:  ev,
		swaps:   sw,
		history: hist,
		dir:     dir,
		now:     time.Now,
		timeout: timeout,
	}
}

// snapshot son las tres lecturas que comparten Stats y Export, hechas en paralelo.
type snapshot struct {
	events   []events.Event
	requests []swaps.SwapRequest
	history  []history.Entry
}

func (s *Service) load(ctx context.Context, userID string) (snapshot, error) {
	var snap snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.events.ListByOwner(gctx, userID, events.ListFilter{Sort: events.SortStartTime})
		snap.events = items
		return err
	})
	g.Go(func() error {
		items, err := s.swaps.ListForUser(gctx, userID)
		snap.requests = items
		return err
	})
	g.Go(func() error {
		items, err := s.history.ListForUser(gctx, userID, 0)
		snap.history = items
		return err
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, apperr.Normalize(err)
	}
	return snap, nil
}

func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Stats{}, apperr.Validation("user id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	snap, err := s.load(ctx, userID)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{TotalEvents: len(snap.events), TotalSwaps: len(snap.history)}
	for _, e := range snap.events {
		if e.Status == events.StatusSwappable {
			st.SwappableEvents++
		}
	}
	for _, r := range snap.requests {
		if r.Status == swaps.StatusPending {
			st.PendingRequests++
		}
	}
	return st, nil
}

// Export devuelve eventos, requests (ambos lados, todos los estados) e historial.
// Si el directorio no conoce al usuario el perfil sale solo con el id.
func (s *Service) Export(ctx context.Context, userID string) (Export, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Export{}, apperr.Validation("user id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	snap, err := s.load(ctx, userID)
	if err != nil {
		return Export{}, err
	}

	out := Export{
		User:         s.profile(ctx, userID),
		Events:       events.ToViews(snap.events),
		SwapRequests: make([]SwapRequestRecord, 0, len(snap.requests)),
		SwapHistory:  make([]history.EntryView, 0, len(snap.history)),
		ExportedAt:   s.now().UTC(),
	}
	for _, r := range snap.requests {
		out.SwapRequests = append(out.SwapRequests, toRecord(r))
	}
	for _, e := range snap.history {
		out.SwapHistory = append(out.SwapHistory, history.ToEntryView(e))
	}
	return out, nil
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
