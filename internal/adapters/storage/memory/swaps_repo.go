package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"slot-swapper/internal/domain/swaps"
	"slot-swapper/internal/platform/apperr"
)

type swapRepo struct {
	s *Store
}

func NewSwapRepo(s *Store) swaps.Repository {
	return &swapRepo{s: s}
}

func (r *swapRepo) Create(ctx context.Context, req swaps.SwapRequest) error {
	if strings.TrimSpace(req.ID) == "" {
		return apperr.Validation("swap request id required")
	}
	return r.s.update(ctx, func(t *tx) error {
		if _, exists := r.s.swaps[req.ID]; exists {
			return apperr.Conflict("swap request already exists")
		}
		if req.Status == swaps.StatusPending {
			if _, ok := r.findPending(req.RequesterEventID, req.TargetEventID); ok {
				return apperr.Conflict("swap request already exists")
			}
		}
		r.s.swaps[req.ID] = req
		t.undo(func() { delete(r.s.swaps, req.ID) })
		return nil
	})
}

func (r *swapRepo) GetByID(ctx context.Context, id string) (swaps.SwapRequest, error) {
	var out swaps.SwapRequest
	err := r.s.view(ctx, func() error {
		req, ok := r.s.swaps[id]
		if !ok {
			return ErrNotFound
		}
		out = req
		return nil
	})
	return out, err
}

func (r *swapRepo) UpdateStatus(ctx context.Context, id string, from, to swaps.Status, at time.Time) error {
	return r.s.update(ctx, func(t *tx) error {
		prev, ok := r.s.swaps[id]
		if !ok {
			return ErrNotFound
		}
		if prev.Status != from {
			return apperr.New(apperr.KindInvalidState, "swap request status changed")
		}
		next := prev
		next.Status = to
		next.UpdatedAt = at
		r.s.swaps[id] = next
		t.undo(func() { r.s.swaps[id] = prev })
		return nil
	})
}

func (r *swapRepo) DeletePending(ctx context.Context, id string) error {
	return r.s.update(ctx, func(t *tx) error {
		prev, ok := r.s.swaps[id]
		if !ok {
			return ErrNotFound
		}
		if prev.Status != swaps.StatusPending {
			return apperr.New(apperr.KindInvalidState, "swap request status changed")
		}
		delete(r.s.swaps, id)
		t.undo(func() { r.s.swaps[id] = prev })
		return nil
	})
}

func (r *swapRepo) FindPending(ctx context.Context, requesterEventID, targetEventID string) (swaps.SwapRequest, bool, error) {
	var out swaps.SwapRequest
	var found bool
	err := r.s.view(ctx, func() error {
		out, found = r.findPending(requesterEventID, targetEventID)
		return nil
	})
	return out, found, err
}

func (r *swapRepo) HasPendingForEvent(ctx context.Context, eventID string) (bool, error) {
	var found bool
	err := r.s.view(ctx, func() error {
		for _, req := range r.s.swaps {
			if req.Status != swaps.StatusPending {
				continue
			}
			if req.RequesterEventID == eventID || req.TargetEventID == eventID {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *swapRepo) ListIncoming(ctx context.Context, userID string) ([]swaps.SwapRequest, error) {
	return r.list(ctx, func(req swaps.SwapRequest) bool {
		return req.TargetUserID == userID && req.Status == swaps.StatusPending
	})
}

func (r *swapRepo) ListOutgoing(ctx context.Context, userID string) ([]swaps.SwapRequest, error) {
	return r.list(ctx, func(req swaps.SwapRequest) bool {
		return req.RequesterID == userID
	})
}

func (r *swapRepo) ListForUser(ctx context.Context, userID string) ([]swaps.SwapRequest, error) {
	return r.list(ctx, func(req swaps.SwapRequest) bool {
		return req.Involves(userID)
	})
}

func (r *swapRepo) list(ctx context.Context, keep func(swaps.SwapRequest) bool) ([]swaps.SwapRequest, error) {
	out := make([]swaps.SwapRequest, 0)
	err := r.s.view(ctx, func() error {
		for _, req := range r.s.swaps {
			if keep(req) {
				out = append(out, req)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Más nuevos primero; id para que el orden sea estable.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// findPending asume que el caller ya tiene el gate.
func (r *swapRepo) findPending(requesterEventID, targetEventID string) (swaps.SwapRequest, bool) {
	for _, req := range r.s.swaps {
		if req.Status == swaps.StatusPending &&
			req.RequesterEventID == requesterEventID &&
			req.TargetEventID == targetEventID {
			return req, true
		}
	}
	return swaps.SwapRequest{}, false
}
