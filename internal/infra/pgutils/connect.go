package pgutils

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/pulsecards/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

func OpenDB(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open(DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}
