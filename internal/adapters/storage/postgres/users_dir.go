package postgres

import (
	"context"
	"strings"

	"slot-swapper/internal/ports/users"

	"github.com/jmoiron/sqlx"
)

// Directory persiste los perfiles vistos en los claims.
type Directory struct {
	db *sqlx.DB
}

func NewDirectory(db *sqlx.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) Lookup(ctx context.Context, userID string) (users.Profile, error) {
	var p users.Profile
	err := sqlx.GetContext(ctx, d.db, &p, `SELECT id, name, email FROM user_profiles WHERE id = $1`, userID)
	if err != nil {
		return users.Profile{}, mapErr(err, "")
	}
	return p, nil
}

// Remember hace upsert sin pisar nombre/email conocidos con vacíos.
func (d *Directory) Remember(ctx context.Context, p users.Profile) error {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return nil
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO user_profiles (id, name, email, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), user_profiles.name),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), user_profiles.email),
			updated_at = now()
	`, id, strings.TrimSpace(p.Name), strings.TrimSpace(p.Email))
	return err
}
