// Package mysql owns the shared connection pool and the QueryGateway that
// every repository-style caller goes through.
package mysql

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"akatsuki/api/internal/config"
)

const pingTimeout = 5 * time.Second

// NewPool opens the process-wide pool. It is created once at startup and
// closed by the caller at shutdown.
func NewPool(ctx context.Context, cfg config.MySQLConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("mysql: open pool: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return db, nil
}
