package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	round_id     TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	detail_json  TEXT NOT NULL,
	epoch_count  INTEGER NOT NULL,
	ledger_count INTEGER NOT NULL,
	evaluated_at TEXT NOT NULL,
	digest       TEXT NOT NULL,
	recorded_at  TEXT NOT NULL
);
`

// SQLite enforces append-only at the table level. Postgres deployments are
// expected to grant INSERT/SELECT only.
const sqliteGuards = `
CREATE TRIGGER IF NOT EXISTS audit_log_no_update BEFORE UPDATE ON audit_log
BEGIN SELECT RAISE(ABORT, 'audit_log is append-only'); END;
CREATE TRIGGER IF NOT EXISTS audit_log_no_delete BEFORE DELETE ON audit_log
BEGIN SELECT RAISE(ABORT, 'audit_log is append-only'); END;
`

// #endregion schema

// #region sink-struct
// Drivers accepted by OpenSQLSink.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// SQLSink appends audit records to the audit_log table.
type SQLSink struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// #endregion sink-struct

// #region constructor
// OpenSQLSink opens the database, applies pragmas for SQLite, and migrates.
func OpenSQLSink(ctx context.Context, driver, dsn string) (*SQLSink, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported audit driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == DriverSQLite {
		// One writer connection: concurrent rounds queue on the pool instead
		// of racing for the SQLite write lock.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma busy_timeout: %w", err)
		}
	}
	s := NewSQLSink(db, driver)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLSink wraps an already-open database. The caller runs Migrate.
func NewSQLSink(db *sql.DB, driver string) *SQLSink {
	return &SQLSink{db: db, driver: driver, now: time.Now}
}

// Migrate creates the audit table if it does not exist.
func (s *SQLSink) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if s.driver == DriverSQLite {
		if _, err := s.db.ExecContext(ctx, sqliteGuards); err != nil {
			return fmt.Errorf("migrate guards: %w", err)
		}
	}
	return nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *SQLSink) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *SQLSink) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region append
// Append inserts rec. A duplicate round id is rejected by the primary key, so
// a record can never be overwritten.
func (s *SQLSink) Append(ctx context.Context, rec Record) error {
	if rec.RoundID == "" {
		return errors.New("append audit: empty round id")
	}
	if rec.Digest == "" {
		sealed, err := Seal(rec)
		if err != nil {
			return fmt.Errorf("append audit: %w", err)
		}
		rec = sealed
	}
	detail, err := json.Marshal(rec.Detail)
	if err != nil {
		return fmt.Errorf("append audit: marshal detail: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO audit_log (round_id, kind, outcome, detail_json, epoch_count, ledger_count, evaluated_at, digest, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.RoundID,
		string(rec.Kind),
		rec.Outcome,
		string(detail),
		rec.EpochCount,
		rec.LedgerCount,
		rec.EvaluatedAt.UTC().Format(time.RFC3339Nano),
		rec.Digest,
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append audit %s: %w", rec.RoundID, err)
	}
	return nil
}

// #endregion append

// #region read
// Get returns the record for one round.
func (s *SQLSink) Get(ctx context.Context, roundID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT round_id, kind, outcome, detail_json, epoch_count, ledger_count, evaluated_at, digest
		 FROM audit_log WHERE round_id = ?`), roundID)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("get audit %s: %w", roundID, err)
	}
	return rec, nil
}

// List returns the most recent records, newest first.
func (s *SQLSink) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT round_id, kind, outcome, detail_json, epoch_count, ledger_count, evaluated_at, digest
		 FROM audit_log ORDER BY recorded_at DESC, round_id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of records per outcome.
func (s *SQLSink) Count(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM audit_log GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count audit: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var rec Record
	var kind, detail, evaluatedAt string
	if err := sc.Scan(&rec.RoundID, &kind, &rec.Outcome, &detail, &rec.EpochCount, &rec.LedgerCount, &evaluatedAt, &rec.Digest); err != nil {
		return Record{}, err
	}
	rec.Kind = Kind(kind)
	if err := json.Unmarshal([]byte(detail), &rec.Detail); err != nil {
		return Record{}, fmt.Errorf("unmarshal detail: %w", err)
	}
	rec.EvaluatedAt, _ = time.Parse(time.RFC3339Nano, evaluatedAt)
	return rec, nil
}

// #endregion read

// #region helpers
// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLSink) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// #endregion helpers
