package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"akatsuki/api/internal/core/domain"
	"akatsuki/api/internal/logging"
)

const lastInsertIDQuery = "SELECT LAST_INSERT_ID() AS last_insert_id"

// Gateway implements domain.QueryGateway on top of the shared sqlx pool.
// Each call checks out one connection and always hands it back.
type Gateway struct {
	db     *sqlx.DB
	logger *slog.Logger
}

var _ domain.QueryGateway = (*Gateway)(nil)

func NewGateway(db *sqlx.DB, logger *slog.Logger) *Gateway {
	return &Gateway{db: db, logger: logger}
}

// QueryMany fetches every row produced by query.
func (g *Gateway) QueryMany(ctx context.Context, method, query string, args ...any) ([]domain.Row, error) {
	if err := checkSQL(method, query); err != nil {
		return nil, err
	}

	conn, err := g.db.Connx(ctx)
	if err != nil {
		return nil, g.fail(ctx, method, query, err)
	}
	defer conn.Close()

	rows, err := conn.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, g.fail(ctx, method, query, err)
	}
	defer rows.Close()

	out := make([]domain.Row, 0)
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, g.fail(ctx, method, query, err)
		}
		out = append(out, normalize(row))
	}
	if err := rows.Err(); err != nil {
		return nil, g.fail(ctx, method, query, err)
	}
	return out, nil
}

// QueryOne fetches the first row produced by query. An empty result is
// domain.ErrNotFound, which is not logged.
func (g *Gateway) QueryOne(ctx context.Context, method, query string, args ...any) (domain.Row, error) {
	if err := checkSQL(method, query); err != nil {
		return nil, err
	}

	conn, err := g.db.Connx(ctx)
	if err != nil {
		return nil, g.fail(ctx, method, query, err)
	}
	defer conn.Close()

	row := make(map[string]any)
	if err := conn.QueryRowxContext(ctx, query, args...).MapScan(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", method, domain.ErrNotFound)
		}
		return nil, g.fail(ctx, method, query, err)
	}
	return normalize(row), nil
}

// Execute runs query inside its own transaction and commits it.
func (g *Gateway) Execute(ctx context.Context, method, query string, args ...any) error {
	if err := checkSQL(method, query); err != nil {
		return err
	}

	conn, err := g.db.Connx(ctx)
	if err != nil {
		return g.fail(ctx, method, query, err)
	}
	defer conn.Close()

	if _, err := execCommit(ctx, conn, query, args); err != nil {
		return g.fail(ctx, method, query, err)
	}
	return nil
}

// ExecuteReturningID runs and commits query, then reads LAST_INSERT_ID() on
// the same connection. A failure after the commit wraps
// domain.ErrLastInsertIDUnknown: the row exists, only its id is lost.
func (g *Gateway) ExecuteReturningID(ctx context.Context, method, query string, args ...any) (int64, error) {
	if err := checkSQL(method, query); err != nil {
		return 0, err
	}

	conn, err := g.db.Connx(ctx)
	if err != nil {
		return 0, g.fail(ctx, method, query, err)
	}
	defer conn.Close()

	if _, err := execCommit(ctx, conn, query, args); err != nil {
		return 0, g.fail(ctx, method, query, err)
	}

	var id int64
	if err := conn.QueryRowxContext(ctx, lastInsertIDQuery).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.New("no row returned")
		}
		g.logFailure(ctx, method, lastInsertIDQuery, err)
		return 0, fmt.Errorf("%s: %w: %w", method, domain.ErrLastInsertIDUnknown, err)
	}
	return id, nil
}

// execCommit keeps statement execution strictly before commit. The deferred
// rollback is a no-op once Commit has succeeded.
func execCommit(ctx context.Context, conn *sqlx.Conn, query string, args []any) (sql.Result, error) {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func checkSQL(method, query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%s: %w: empty sql", method, domain.ErrInvalidInput)
	}
	return nil
}

func (g *Gateway) fail(ctx context.Context, method, query string, err error) error {
	g.logFailure(ctx, method, query, err)
	return fmt.Errorf("%s: %w: %w", method, domain.ErrDriver, err)
}

func (g *Gateway) logFailure(ctx context.Context, method, query string, err error) {
	code, msg := driverDetail(err)
	logging.Critical(ctx, g.logger, "MySQL error",
		slog.String("method", method),
		slog.String("sql", query),
		slog.Int("code", code),
		slog.String("message", msg),
	)
}

// driverDetail extracts the server error number and message when the failure
// came from MySQL itself.
func driverDetail(err error) (int, string) {
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return int(myErr.Number), myErr.Message
	}
	return 0, err.Error()
}

// normalize turns the []byte values returned by the text protocol into strings.
func normalize(row map[string]any) domain.Row {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return domain.Row(row)
}
