package runner

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/mickamy/pgdot/internal/errs"
)

// Options customises how EXPLAIN is executed.
type Options struct {
	// Analyze executes the statement to collect actual timings.
	Analyze bool
	// Buffers adds shared/local buffer counters; only meaningful with Analyze.
	Buffers bool
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Querier is the subset of *pgx.Conn used to run EXPLAIN.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Statement wraps sqlStatement in EXPLAIN (FORMAT JSON, COSTS, VERBOSE, SUMMARY ...).
func Statement(sqlStatement string, opts Options) string {
	parts := []string{"FORMAT JSON", "COSTS", "VERBOSE", "SUMMARY"}
	if opts.Analyze {
		parts = append(parts, "ANALYZE")
		if opts.Buffers {
			parts = append(parts, "BUFFERS")
		}
	}
	return "EXPLAIN (" + strings.Join(parts, ", ") + ") " + strings.TrimSpace(sqlStatement)
}

// Run connects to dsn and returns the EXPLAIN JSON of sqlStatement.
func Run(ctx context.Context, dsn, sqlStatement string, opts Options) ([]byte, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errs.New(errs.CodeInvalidRequest, "runner: empty DSN")
	}
	if strings.TrimSpace(sqlStatement) == "" {
		return nil, errs.New(errs.CodeInvalidRequest, "runner: empty sql statement")
	}

	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeConnectionFailed, "runner: connect")
	}
	defer func() { _ = conn.Close(context.WithoutCancel(ctx)) }()

	return Explain(ctx, conn, sqlStatement, opts)
}

// Explain issues the EXPLAIN statement through q and returns the raw JSON document.
func Explain(ctx context.Context, q Querier, sqlStatement string, opts Options) ([]byte, error) {
	query := strings.TrimSpace(sqlStatement)
	if query == "" {
		return nil, errs.New(errs.CodeInvalidRequest, "runner: empty sql statement")
	}

	explainSQL := Statement(query, opts)
	opts.Logger.Debug().Str("statement", explainSQL).Msg("running explain")

	start := time.Now()
	var payload []byte
	if err := q.QueryRow(ctx, explainSQL).Scan(&payload); err != nil {
		return nil, errs.Wrap(err, errs.CodeQueryFailed, "runner: query")
	}
	opts.Logger.Debug().
		Dur("elapsed", time.Since(start)).
		Int("bytes", len(payload)).
		Msg("explain finished")
	return payload, nil
}
