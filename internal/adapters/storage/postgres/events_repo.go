package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"slot-swapper/internal/domain/events"

	"github.com/jmoiron/sqlx"
)

const eventColumns = `
	id, owner_user_id,
	title, description,
	start_time, end_time,
	status,
	original_event_id, original_owner,
	created_at, updated_at`

type eventRow struct {
	ID              string         `db:"id"`
	OwnerUserID     string         `db:"owner_user_id"`
	Title           string         `db:"title"`
	Description     string         `db:"description"`
	StartTime       time.Time      `db:"start_time"`
	EndTime         time.Time      `db:"end_time"`
	Status          string         `db:"status"`
	OriginalEventID sql.NullString `db:"original_event_id"`
	OriginalOwner   []byte         `db:"original_owner"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r eventRow) toDomain() (events.Event, error) {
	e := events.Event{
		ID:              r.ID,
		OwnerUserID:     r.OwnerUserID,
		Title:           r.Title,
		Description:     r.Description,
		StartTime:       r.StartTime.UTC(),
		EndTime:         r.EndTime.UTC(),
		Status:          events.Status(r.Status),
		OriginalEventID: r.OriginalEventID.String,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	if len(r.OriginalOwner) > 0 {
		var snap events.OwnerSnapshot
		if err := json.Unmarshal(r.OriginalOwner, &snap); err != nil {
			return events.Event{}, fmt.Errorf("postgres: decode original_owner of %s: %w", r.ID, err)
		}
		e.OriginalOwner = &snap
	}
	return e, nil
}

type EventsRepo struct {
	db *sqlx.DB
}

func NewEventsRepo(db *sqlx.DB) *EventsRepo {
	return &EventsRepo{db: db}
}

func (r *EventsRepo) Create(ctx context.Context, e events.Event) error {
	owner, err := encodeOwner(e.OriginalOwner)
	if err != nil {
		return err
	}
	_, err = ext(ctx, r.db).ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		e.ID,
		e.OwnerUserID,
		e.Title,
		e.Description,
		e.StartTime,
		e.EndTime,
		string(e.Status),
		nullString(e.OriginalEventID),
		owner,
		e.CreatedAt,
		e.UpdatedAt,
	)
	return mapErr(err, "event already exists")
}

func (r *EventsRepo) Update(ctx context.Context, e events.Event) error {
	owner, err := encodeOwner(e.OriginalOwner)
	if err != nil {
		return err
	}
	res, err := ext(ctx, r.db).ExecContext(ctx, `
		UPDATE events
		SET
			owner_user_id = $2,
			title = $3,
			description = $4,
			start_time = $5,
			end_time = $6,
			status = $7,
			original_event_id = $8,
			original_owner = $9,
			updated_at = $10
		WHERE id = $1
	`,
		e.ID,
		e.OwnerUserID,
		e.Title,
		e.Description,
		e.StartTime,
		e.EndTime,
		string(e.Status),
		nullString(e.OriginalEventID),
		owner,
		e.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *EventsRepo) Delete(ctx context.Context, id string) error {
	res, err := ext(ctx, r.db).ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (events.Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return events.Event{}, ErrNotFound
	}

	var row eventRow
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &row, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	if err != nil {
		return events.Event{}, mapErr(err, "")
	}
	return row.toDomain()
}

var sortColumns = map[events.SortField]string{
	events.SortStartTime: "start_time",
	events.SortEndTime:   "end_time",
	events.SortCreatedAt: "created_at",
	events.SortTitle:     "title",
}

func (r *EventsRepo) ListByOwner(ctx context.Context, ownerUserID string, filter events.ListFilter) ([]events.Event, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + eventColumns + ` FROM events WHERE owner_user_id = $1`)

	args := []any{ownerUserID}
	argN := 2

	if filter.Status != "" {
		sb.WriteString(fmt.Sprintf(" AND status = $%d", argN))
		args = append(args, string(filter.Status))
		argN++
	}
	if filter.From != nil {
		sb.WriteString(fmt.Sprintf(" AND start_time >= $%d", argN))
		args = append(args, *filter.From)
		argN++
	}
	if filter.To != nil {
		sb.WriteString(fmt.Sprintf(" AND start_time <= $%d", argN))
		args = append(args, *filter.To)
	}

	col, ok := sortColumns[filter.Sort]
	if !ok {
		col = "start_time"
	}
	dir := "ASC"
	if filter.Desc {
		dir = "DESC"
	}
	sb.WriteString(" ORDER BY " + col + " " + dir + ", id " + dir)

	return r.selectEvents(ctx, sb.String(), args...)
}

func (r *EventsRepo) ListOverlapping(ctx context.Context, ownerUserID string, start, end time.Time) ([]events.Event, error) {
	// Solapamiento estricto: a.start < b.end AND b.start < a.end.
	return r.selectEvents(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE owner_user_id = $1
		  AND start_time < $3
		  AND $2 < end_time
		ORDER BY start_time, id
	`, ownerUserID, start, end)
}

func (r *EventsRepo) ListSwappable(ctx context.Context, f events.MarketFilter) ([]events.Event, int, error) {
	where := strings.Builder{}
	where.WriteString(" WHERE status = 'SWAPPABLE'")

	args := []any{}
	argN := 1

	if f.ExcludeOwnerID != "" {
		where.WriteString(fmt.Sprintf(" AND owner_user_id <> $%d", argN))
		args = append(args, f.ExcludeOwnerID)
		argN++
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where.WriteString(fmt.Sprintf(" AND title ILIKE $%d", argN))
		args = append(args, "%"+escapeLike(q)+"%")
		argN++
	}
	if f.From != nil {
		where.WriteString(fmt.Sprintf(" AND start_time >= $%d", argN))
		args = append(args, *f.From)
		argN++
	}
	if f.To != nil {
		where.WriteString(fmt.Sprintf(" AND start_time <= $%d", argN))
		args = append(args, *f.To)
		argN++
	}
	if f.MinDuration > 0 {
		where.WriteString(fmt.Sprintf(" AND EXTRACT(EPOCH FROM (end_time - start_time)) >= $%d", argN))
		args = append(args, f.MinDuration.Seconds())
		argN++
	}
	if f.MaxDuration != nil {
		where.WriteString(fmt.Sprintf(" AND EXTRACT(EPOCH FROM (end_time - start_time)) <= $%d", argN))
		args = append(args, f.MaxDuration.Seconds())
		argN++
	}

	var total int
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &total, `SELECT COUNT(*) FROM events`+where.String(), args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + eventColumns + ` FROM events` + where.String() + " ORDER BY start_time, id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, f.Limit)
		argN++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argN)
		args = append(args, f.Offset)
	}

	items, err := r.selectEvents(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// LockOwner toma un advisory lock de transacción por usuario.
// Serializa el check de conflictos + escritura entre requests del mismo dueño.
func (r *EventsRepo) LockOwner(ctx context.Context, ownerUserID string) error {
	_, err := ext(ctx, r.db).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "owner:"+ownerUserID)
	return err
}

// LockEvents bloquea las filas en orden ascendente de id (orden global, sin deadlocks entre pares).
func (r *EventsRepo) LockEvents(ctx context.Context, ids ...string) error {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	if len(uniq) == 0 {
		return nil
	}
	sort.Strings(uniq)

	placeholders := make([]string, 0, len(uniq))
	args := make([]any, 0, len(uniq))
	for i, id := range uniq {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, id)
	}

	var locked []string
	return sqlx.SelectContext(ctx, ext(ctx, r.db), &locked,
		`SELECT id FROM events WHERE id IN (`+strings.Join(placeholders, ",")+`) ORDER BY id FOR UPDATE`,
		args...,
	)
}

func (r *EventsRepo) selectEvents(ctx context.Context, query string, args ...any) ([]events.Event, error) {
	var rows []eventRow
	if err := sqlx.SelectContext(ctx, ext(ctx, r.db), &rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]events.Event, 0, len(rows))
	for _, row := range rows {
		e, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func encodeOwner(o *events.OwnerSnapshot) (any, error) {
	if o == nil {
		return nil, nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode original_owner: %w", err)
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
