package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"slot-swapper/internal/domain/events"
	"slot-swapper/internal/domain/history"

	"github.com/jmoiron/sqlx"
)

const historyColumns = `
	id, swap_request_id,
	user_a_id, event_a_id, snapshot_a,
	user_b_id, event_b_id, snapshot_b,
	completed_at`

// snapshotDoc es la forma JSONB de un evento congelado en el historial.
type snapshotDoc struct {
	ID              string                `json:"id"`
	OwnerUserID     string                `json:"owner_user_id"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	StartTime       time.Time             `json:"start_time"`
	EndTime         time.Time             `json:"end_time"`
	Status          string                `json:"status"`
	OriginalEventID string                `json:"original_event_id,omitempty"`
	OriginalOwner   *events.OwnerSnapshot `json:"original_owner,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func encodeSnapshot(e events.Event) (string, error) {
	b, err := json.Marshal(snapshotDoc{
		ID:              e.ID,
		OwnerUserID:     e.OwnerUserID,
		Title:           e.Title,
		Description:     e.Description,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		Status:          string(e.Status),
		OriginalEventID: e.OriginalEventID,
		OriginalOwner:   e.OriginalOwner,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("postgres: encode snapshot: %w", err)
	}
	return string(b), nil
}

func decodeSnapshot(b []byte) (events.Event, error) {
	var d snapshotDoc
	if err := json.Unmarshal(b, &d); err != nil {
		return events.Event{}, fmt.Errorf("postgres: decode snapshot: %w", err)
	}
	return events.Event{
		ID:              d.ID,
		OwnerUserID:     d.OwnerUserID,
		Title:           d.Title,
		Description:     d.Description,
		StartTime:       d.StartTime.UTC(),
		EndTime:         d.EndTime.UTC(),
		Status:          events.Status(d.Status),
		OriginalEventID: d.OriginalEventID,
		OriginalOwner:   d.OriginalOwner,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}, nil
}

type historyRow struct {
	ID            string    `db:"id"`
	SwapRequestID string    `db:"swap_request_id"`
	UserAID       string    `db:"user_a_id"`
	EventAID      string    `db:"event_a_id"`
	SnapshotA     []byte    `db:"snapshot_a"`
	UserBID       string    `db:"user_b_id"`
	EventBID      string    `db:"event_b_id"`
	SnapshotB     []byte    `db:"snapshot_b"`
	CompletedAt   time.Time `db:"completed_at"`
}

func (r historyRow) toDomain() (history.Entry, error) {
	a, err := decodeSnapshot(r.SnapshotA)
	if err != nil {
		return history.Entry{}, err
	}
	b, err := decodeSnapshot(r.SnapshotB)
	if err != nil {
		return history.Entry{}, err
	}
	return history.Entry{
		ID:            r.ID,
		SwapRequestID: r.SwapRequestID,
		Sides: [2]history.Side{
			{UserID: r.UserAID, EventID: r.EventAID, Snapshot: a},
			{UserID: r.UserBID, EventID: r.EventBID, Snapshot: b},
		},
		CompletedAt: r.CompletedAt.UTC(),
	}, nil
}

// HistoryRepo es append-only: no expone UPDATE ni DELETE.
type HistoryRepo struct {
	db *sqlx.DB
}

func NewHistoryRepo(db *sqlx.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

func (r *HistoryRepo) Append(ctx context.Context, e history.Entry) error {
	a, err := encodeSnapshot(e.Sides[0].Snapshot)
	if err != nil {
		return err
	}
	b, err := encodeSnapshot(e.Sides[1].Snapshot)
	if err != nil {
		return err
	}

	_, err = ext(ctx, r.db).ExecContext(ctx, `
		INSERT INTO swap_history (`+historyColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		e.ID,
		e.SwapRequestID,
		e.Sides[0].UserID,
		e.Sides[0].EventID,
		a,
		e.Sides[1].UserID,
		e.Sides[1].EventID,
		b,
		e.CompletedAt,
	)
	return mapErr(err, "history already recorded for swap request")
}

func (r *HistoryRepo) GetBySwapRequest(ctx context.Context, swapRequestID string) (history.Entry, error) {
	var row historyRow
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &row, `
		SELECT `+historyColumns+` FROM swap_history WHERE swap_request_id = $1
	`, swapRequestID)
	if err != nil {
		return history.Entry{}, mapErr(err, "")
	}
	return row.toDomain()
}

func (r *HistoryRepo) ListForUser(ctx context.Context, userID string, limit int) ([]history.Entry, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM swap_history
		WHERE user_a_id = $1 OR user_b_id = $1
		ORDER BY completed_at DESC, id`
	args := []any{userID}
	// limit <= 0 => todas.
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	var rows []historyRow
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &rows, query, args...)
	if err != nil {
		return nil, err
	}

	out := make([]history.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
