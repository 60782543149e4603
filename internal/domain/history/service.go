package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"slot-swapper/internal/platform/apperr"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Service struct {
	repo    Repository
	timeout time.Duration
}

func NewService(repo Repository, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{repo: repo, timeout: timeout}
}

// Record agrega la entrada de un swap aceptado.
// Se llama dentro de la transacción de Accept, así que no abre otra ni acota el ctx.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.SwapRequestID) == "" {
		return apperr.Validation("history entry requires id and swap request id")
	}
	for _, side := range e.Sides {
		if side.UserID == "" || side.EventID == "" {
			return apperr.Validation("history entry requires both sides")
		}
	}
	if e.Sides[0].EventID == e.Sides[1].EventID {
		return apperr.Validation("history sides must reference different events")
	}
	if e.CompletedAt.IsZero() {
		return apperr.Validation("history entry requires completed_at")
	}
	e.CompletedAt = e.CompletedAt.UTC()
	return s.repo.Append(ctx, e)
}

func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("user id is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, err := s.repo.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Normalize(err)
	}
	return items, nil
}

// GetBySwapRequest solo devuelve la entrada a quienes participaron del swap.
func (s *Service) GetBySwapRequest(ctx context.Context, swapRequestID, callerID string) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	e, err := s.repo.GetBySwapRequest(ctx, strings.TrimSpace(swapRequestID))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Entry{}, apperr.NotFound("history entry not found")
		}
		return Entry{}, apperr.Normalize(err)
	}
	if !e.Involves(callerID) {
		return Entry{}, apperr.Authorization("not a participant of this swap")
	}
	return e, nil
}
