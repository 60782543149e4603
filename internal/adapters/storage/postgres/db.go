package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"slot-swapper/internal/platform/apperr"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// DriverName es el nombre con el que pgx/stdlib se registra en database/sql.
const DriverName = "pgx"

var (
	ErrNotFound = apperr.New(apperr.KindNotFound, "not found")
)

// Open abre una conexión pool a Postgres usando pgx (database/sql) y la envuelve con sqlx.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, err
	}

	// defaults razonables para MVP (ajustable luego)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sqlx.NewDb(db, DriverName), nil
}

const uniqueViolation = "23505"

// mapErr traduce errores del driver a los tipos del dominio.
func mapErr(err error, conflictMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperr.Conflict(conflictMsg)
	}
	return err
}
