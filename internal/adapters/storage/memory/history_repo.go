package memory

import (
	"context"
	"sort"

	"slot-swapper/internal/domain/history"
	"slot-swapper/internal/platform/apperr"
)

type historyRepo struct {
	s *Store
}

func NewHistoryRepo(s *Store) history.Repository {
	return &historyRepo{s: s}
}

func (r *historyRepo) Append(ctx context.Context, e history.Entry) error {
	return r.s.update(ctx, func(t *tx) error {
		if _, exists := r.s.history[e.ID]; exists {
			return apperr.Conflict("history entry already exists")
		}
		if _, exists := r.s.historyBySwap[e.SwapRequestID]; exists {
			return apperr.Conflict("history already recorded for swap request")
		}
		e.Sides[0].Snapshot = cloneEvent(e.Sides[0].Snapshot)
		e.Sides[1].Snapshot = cloneEvent(e.Sides[1].Snapshot)
		r.s.history[e.ID] = e
		r.s.historyBySwap[e.SwapRequestID] = e.ID
		t.undo(func() {
			delete(r.s.history, e.ID)
			delete(r.s.historyBySwap, e.SwapRequestID)
		})
		return nil
	})
}

func (r *historyRepo) GetBySwapRequest(ctx context.Context, swapRequestID string) (history.Entry, error) {
	var out history.Entry
	err := r.s.view(ctx, func() error {
		id, ok := r.s.historyBySwap[swapRequestID]
		if !ok {
			return ErrNotFound
		}
		out = r.s.history[id]
		return nil
	})
	return out, err
}

func (r *historyRepo) ListForUser(ctx context.Context, userID string, limit int) ([]history.Entry, error) {
	out := make([]history.Entry, 0)
	err := r.s.view(ctx, func() error {
		for _, e := range r.s.history {
			if e.Involves(userID) {
				out = append(out, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.After(out[j].CompletedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
