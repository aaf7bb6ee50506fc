package workers

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"akatsuki/api/internal/logging"
)

// Pinger is the slice of *sqlx.DB the monitor needs.
type Pinger interface {
	PingContext(ctx context.Context) error
	Stats() sql.DBStats
}

// PoolMonitor periodically pings the shared MySQL pool and reports its
// occupancy. It never mutates the pool.
type PoolMonitor struct {
	db       Pinger
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration

	healthy bool
}

func NewPoolMonitor(db Pinger, logger *slog.Logger, interval time.Duration) *PoolMonitor {
	return &PoolMonitor{
		db:       db,
		logger:   logger,
		interval: interval,
		timeout:  5 * time.Second, // 🛡️ SLA: Don't let one stuck ping hang the worker
		healthy:  true,
	}
}

func (m *PoolMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *PoolMonitor) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.db.PingContext(pingCtx)
	stats := m.db.Stats()
	attrs := []any{
		slog.Int("open", stats.OpenConnections),
		slog.Int("in_use", stats.InUse),
		slog.Int("idle", stats.Idle),
		slog.Int64("wait_count", stats.WaitCount),
		slog.Duration("wait_duration", stats.WaitDuration),
	}

	switch {
	case err != nil:
		// Only the transition is critical; repeated failures stay at error.
		if m.healthy {
			logging.Critical(ctx, m.logger, "MySQL pool unreachable", append(attrs, slog.Any("error", err))...)
		} else {
			m.logger.ErrorContext(ctx, "MySQL pool still unreachable", append(attrs, slog.Any("error", err))...)
		}
		m.healthy = false
	case !m.healthy:
		m.logger.InfoContext(ctx, "MySQL pool recovered", attrs...)
		m.healthy = true
	case stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections:
		m.logger.WarnContext(ctx, "MySQL pool saturated", append(attrs, slog.Int("max_open", stats.MaxOpenConnections))...)
	default:
		m.logger.DebugContext(ctx, "MySQL pool ok", attrs...)
	}
}
