package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"fundamentals-merge/internal/series"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createSchemaSQL = `
    CREATE TABLE IF NOT EXISTS quarterly_values (
        symbol      TEXT        NOT NULL,
        period_date DATE        NOT NULL,
        column_name TEXT        NOT NULL,
        column_pos  INTEGER     NOT NULL,
        value       NUMERIC,
        updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (symbol, period_date, column_name)
    );
    CREATE TABLE IF NOT EXISTS merge_runs (
        id          BIGSERIAL   PRIMARY KEY,
        symbol      TEXT        NOT NULL,
        source_file TEXT        NOT NULL,
        status      TEXT        NOT NULL,
        first_date  DATE,
        last_date   DATE,
        row_count   INTEGER     NOT NULL DEFAULT 0,
        retried     BOOLEAN     NOT NULL DEFAULT FALSE,
        output_path TEXT        NOT NULL DEFAULT '',
        error       TEXT,
        created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE INDEX IF NOT EXISTS merge_runs_created_at_idx ON merge_runs (created_at DESC);`

	deleteSymbolValuesSQL = `DELETE FROM quarterly_values WHERE symbol = $1;`

	insertValueSQL = `INSERT INTO quarterly_values (
        symbol,
        period_date,
        column_name,
        column_pos,
        value
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (symbol, period_date, column_name) DO UPDATE
    SET column_pos = EXCLUDED.column_pos,
        value      = EXCLUDED.value,
        updated_at = now();`

	listSymbolValuesSQL = `SELECT
        period_date,
        column_name,
        column_pos,
        value::text
    FROM quarterly_values
    WHERE symbol = $1
    ORDER BY period_date, column_pos;`

	insertRunSQL = `INSERT INTO merge_runs (
        symbol,
        source_file,
        status,
        first_date,
        last_date,
        row_count,
        retried,
        output_path,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    RETURNING id, created_at;`

	listRecentRunsSQL = `SELECT
        id,
        symbol,
        source_file,
        status,
        first_date,
        last_date,
        row_count,
        retried,
        output_path,
        error,
        created_at
    FROM merge_runs
    ORDER BY created_at DESC, id DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// TableStore persists merged tables in long format.
type TableStore interface {
	ReplaceTable(ctx context.Context, symbol string, table *series.Table) error
	LoadTable(ctx context.Context, symbol string) (*series.Table, error)
}

// RunStore records per-file outcomes.
type RunStore interface {
	RecordRun(ctx context.Context, run RunRecord) (RunRecord, error)
	ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to merged tables and run history.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the lock dies with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// ReplaceTable swaps every stored value of symbol for the rows of table in one transaction.
func (s *Store) ReplaceTable(ctx context.Context, symbol string, table *series.Table) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(deleteSymbolValuesSQL, symbol)
		for _, row := range table.Rows {
			for pos, name := range table.Columns {
				var value interface{}
				if v := row.Values[pos]; v.Valid {
					value = v.Decimal.String()
				}
				batch.Queue(insertValueSQL, symbol, row.Date, name, pos, value)
			}
		}

		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("replace table %s: %w", symbol, err)
			}
		}
		return results.Close()
	})
}

// LoadTable rebuilds the stored table of symbol. Columns keep their stored order.
func (s *Store) LoadTable(ctx context.Context, symbol string) (*series.Table, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSymbolValuesSQL, symbol)
	if queryErr != nil {
		return nil, fmt.Errorf("load table %s: %w", symbol, queryErr)
	}
	defer rows.Close()

	type cell struct {
		date  time.Time
		name  string
		pos   int
		value decimal.NullDecimal
	}

	var cells []cell
	width := 0
	for rows.Next() {
		var (
			c     cell
			value sql.NullString
		)
		if err := rows.Scan(&c.date, &c.name, &c.pos, &value); err != nil {
			return nil, err
		}
		if value.Valid {
			d, err := decimal.NewFromString(value.String)
			if err != nil {
				return nil, fmt.Errorf("parse %s value: %w", c.name, err)
			}
			c.value = series.Value(d)
		}
		if c.pos+1 > width {
			width = c.pos + 1
		}
		cells = append(cells, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	columns := make([]string, width)
	for _, c := range cells {
		columns[c.pos] = c.name
	}

	table := series.New(columns...)
	for _, c := range cells {
		date := time.Date(c.date.Year(), c.date.Month(), c.date.Day(), 0, 0, 0, 0, time.UTC)
		if last, ok := table.LastDate(); !ok || !last.Equal(date) {
			table.Append(date)
		}
		table.Rows[len(table.Rows)-1].Values[c.pos] = c.value
	}
	return table, nil
}

// RecordRun persists the outcome of one workbook.
func (s *Store) RecordRun(ctx context.Context, run RunRecord) (RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return RunRecord{}, err
	}

	var errMsg interface{}
	if run.Error != nil {
		errMsg = *run.Error
	}

	row := pool.QueryRow(ctx, insertRunSQL,
		run.Symbol,
		run.SourceFile,
		run.Status,
		run.FirstDate,
		run.LastDate,
		run.Rows,
		run.Retried,
		run.OutputPath,
		errMsg,
	)
	if scanErr := row.Scan(&run.ID, &run.CreatedAt); scanErr != nil {
		return RunRecord{}, fmt.Errorf("record run: %w", scanErr)
	}
	return run, nil
}

// ListRecentRuns lists the most recent runs, newest first.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0, limit)
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

func scanRun(rows pgx.Rows) (RunRecord, error) {
	var (
		run       RunRecord
		firstDate sql.NullTime
		lastDate  sql.NullTime
		errMsg    sql.NullString
	)

	if err := rows.Scan(
		&run.ID,
		&run.Symbol,
		&run.SourceFile,
		&run.Status,
		&firstDate,
		&lastDate,
		&run.Rows,
		&run.Retried,
		&run.OutputPath,
		&errMsg,
		&run.CreatedAt,
	); err != nil {
		return RunRecord{}, err
	}

	if firstDate.Valid {
		value := firstDate.Time
		run.FirstDate = &value
	}
	if lastDate.Valid {
		value := lastDate.Time
		run.LastDate = &value
	}
	if errMsg.Valid {
		msg := errMsg.String
		run.Error = &msg
	}
	return run, nil
}

var (
	_ TableStore     = (*Store)(nil)
	_ RunStore       = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
