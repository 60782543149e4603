package postgres

import (
	"context"
	"errors"
	"time"

	"slot-swapper/internal/domain/swaps"
	"slot-swapper/internal/platform/apperr"

	"github.com/jmoiron/sqlx"
)

const swapColumns = `
	id,
	requester_id, requester_event_id,
	target_user_id, target_event_id,
	status,
	created_at, updated_at`

type swapRow struct {
	ID               string    `db:"id"`
	RequesterID      string    `db:"requester_id"`
	RequesterEventID string    `db:"requester_event_id"`
	TargetUserID     string    `db:"target_user_id"`
	TargetEventID    string    `db:"target_event_id"`
	Status           string    `db:"status"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r swapRow) toDomain() swaps.SwapRequest {
	return swaps.SwapRequest{
		ID:               r.ID,
		RequesterID:      r.RequesterID,
		RequesterEventID: r.RequesterEventID,
		TargetUserID:     r.TargetUserID,
		TargetEventID:    r.TargetEventID,
		Status:           swaps.Status(r.Status),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

type SwapsRepo struct {
	db *sqlx.DB
}

func NewSwapsRepo(db *sqlx.DB) *SwapsRepo {
	return &SwapsRepo{db: db}
}

// Create choca contra el índice único parcial si ya hay un PENDING para el par.
func (r *SwapsRepo) Create(ctx context.Context, s swaps.SwapRequest) error {
	_, err := ext(ctx, r.db).ExecContext(ctx, `
		INSERT INTO swap_requests (`+swapColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		s.ID,
		s.RequesterID,
		s.RequesterEventID,
		s.TargetUserID,
		s.TargetEventID,
		string(s.Status),
		s.CreatedAt,
		s.UpdatedAt,
	)
	return mapErr(err, "swap request already exists")
}

func (r *SwapsRepo) GetByID(ctx context.Context, id string) (swaps.SwapRequest, error) {
	var row swapRow
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &row, `SELECT `+swapColumns+` FROM swap_requests WHERE id = $1`, id)
	if err != nil {
		return swaps.SwapRequest{}, mapErr(err, "")
	}
	return row.toDomain(), nil
}

// UpdateStatus es condicional: solo una de N transacciones concurrentes ve la fila en from.
func (r *SwapsRepo) UpdateStatus(ctx context.Context, id string, from, to swaps.Status, at time.Time) error {
	res, err := ext(ctx, r.db).ExecContext(ctx, `
		UPDATE swap_requests
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), at)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 1 {
		return nil
	}
	return r.missOrChanged(ctx, id)
}

func (r *SwapsRepo) DeletePending(ctx context.Context, id string) error {
	res, err := ext(ctx, r.db).ExecContext(ctx, `
		DELETE FROM swap_requests WHERE id = $1 AND status = 'PENDING'
	`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 1 {
		return nil
	}
	return r.missOrChanged(ctx, id)
}

func (r *SwapsRepo) FindPending(ctx context.Context, requesterEventID, targetEventID string) (swaps.SwapRequest, bool, error) {
	var row swapRow
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &row, `
		SELECT `+swapColumns+`
		FROM swap_requests
		WHERE requester_event_id = $1 AND target_event_id = $2 AND status = 'PENDING'
	`, requesterEventID, targetEventID)
	if err != nil {
		if errors.Is(mapErr(err, ""), apperr.ErrNotFound) {
			return swaps.SwapRequest{}, false, nil
		}
		return swaps.SwapRequest{}, false, err
	}
	return row.toDomain(), true, nil
}

func (r *SwapsRepo) HasPendingForEvent(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &exists, `
		SELECT EXISTS (
			SELECT 1 FROM swap_requests
			WHERE status = 'PENDING' AND (requester_event_id = $1 OR target_event_id = $1)
		)
	`, eventID)
	return exists, err
}

func (r *SwapsRepo) ListIncoming(ctx context.Context, userID string) ([]swaps.SwapRequest, error) {
	return r.selectSwaps(ctx, `
		SELECT `+swapColumns+`
		FROM swap_requests
		WHERE target_user_id = $1 AND status = 'PENDING'
		ORDER BY created_at DESC, id
	`, userID)
}

func (r *SwapsRepo) ListOutgoing(ctx context.Context, userID string) ([]swaps.SwapRequest, error) {
	return r.selectSwaps(ctx, `
		SELECT `+swapColumns+`
		FROM swap_requests
		WHERE requester_id = $1
		ORDER BY created_at DESC, id
	`, userID)
}

func (r *SwapsRepo) ListForUser(ctx context.Context, userID string) ([]swaps.SwapRequest, error) {
	return r.selectSwaps(ctx, `
		SELECT `+swapColumns+`
		FROM swap_requests
		WHERE requester_id = $1 OR target_user_id = $1
		ORDER BY created_at DESC, id
	`, userID)
}

func (r *SwapsRepo) selectSwaps(ctx context.Context, query string, args ...any) ([]swaps.SwapRequest, error) {
	var rows []swapRow
	if err := sqlx.SelectContext(ctx, ext(ctx, r.db), &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]swaps.SwapRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// missOrChanged distingue "no existe" de "otro lo movió primero".
func (r *SwapsRepo) missOrChanged(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return apperr.New(apperr.KindInvalidState, "swap request status changed")
}
