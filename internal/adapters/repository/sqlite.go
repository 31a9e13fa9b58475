package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/okian/starsim/internal/domain/cutpoint"
	"github.com/okian/starsim/internal/domain/measure"
	"github.com/okian/starsim/pkg/metrics"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS contracts (
	contract_id      TEXT    NOT NULL,
	year             INTEGER NOT NULL,
	contract_name    TEXT    NOT NULL DEFAULT '',
	marketing_name   TEXT    NOT NULL DEFAULT '',
	parent_org_name  TEXT    NOT NULL DEFAULT '',
	org_type_name    TEXT    NOT NULL DEFAULT '',
	has_part_c       INTEGER NOT NULL,
	has_part_d       INTEGER NOT NULL,
	overall_star     REAL,
	part_c_star      REAL,
	part_d_star      REAL,
	total_enrollment INTEGER NOT NULL DEFAULT 0,
	state_enrollment TEXT,
	snp              INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (contract_id, year)
);

CREATE TABLE IF NOT EXISTS measure_rows (
	contract_id TEXT    NOT NULL,
	year        INTEGER NOT NULL,
	measure     TEXT    NOT NULL,
	domain_id   TEXT    NOT NULL DEFAULT '',
	domain_name TEXT    NOT NULL DEFAULT '',
	score       REAL,
	star        REAL,
	weight      INTEGER NOT NULL,
	is_part_c   INTEGER NOT NULL,
	is_part_d   INTEGER NOT NULL,
	PRIMARY KEY (contract_id, year, measure)
);

CREATE INDEX IF NOT EXISTS idx_measure_rows_history ON measure_rows (contract_id, measure, year);

CREATE TABLE IF NOT EXISTS cut_points (
	measure          TEXT    NOT NULL,
	year             INTEGER NOT NULL,
	is_pdp           INTEGER NOT NULL,
	star             INTEGER NOT NULL,
	lower_bound      REAL    NOT NULL,
	upper_bound      REAL    NOT NULL,
	higher_is_better INTEGER NOT NULL,
	PRIMARY KEY (measure, year, is_pdp, star)
);
`

// SQLiteStore persists snapshots in a SQLite database. Cut points are cached
// in memory after every load because every recommendation reads them.
type SQLiteStore struct {
	db     *sql.DB
	opts   storeOptions
	cuts   atomic.Pointer[cutpoint.Table]
	closed atomic.Bool
}

// OpenSQLite opens or creates the database at path and ensures the schema.
// Use MemoryDSN for a throwaway database.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dsn := path
	if path != MemoryDSN {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = abs + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == MemoryDSN {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLiteStore{db: db, opts: o}
	if err := s.refreshCutPoints(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Load validates snap and replaces all stored data in one transaction.
func (s *SQLiteStore) Load(ctx context.Context, snap Snapshot) error {
	const op = "repository.sqlite.load"
	if s.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	st, err := build(snap)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_snapshot")
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"measure_rows", "contracts", "cut_points"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := insertContracts(ctx, tx, st.ordered); err != nil {
		return err
	}
	if err := insertRows(ctx, tx, st.rows.Rows()); err != nil {
		return err
	}
	if err := insertCutPoints(ctx, tx, st.cuts.Points()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}

	s.cuts.Store(st.cuts)
	recordLoad(ctx, s.opts, op, st.counts(), start)
	return nil
}

func insertContracts(ctx context.Context, tx *sql.Tx, cs []measure.Contract) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO contracts (
		contract_id, year, contract_name, marketing_name, parent_org_name, org_type_name,
		has_part_c, has_part_d, overall_star, part_c_star, part_d_star,
		total_enrollment, state_enrollment, snp
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare contracts: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range cs {
		var states sql.NullString
		if len(c.StateEnrollment) > 0 {
			b, err := json.Marshal(c.StateEnrollment)
			if err != nil {
				return fmt.Errorf("encode state enrollment for %s: %w", c.ContractID, err)
			}
			states = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			c.ContractID, c.Year, c.ContractName, c.MarketingName, c.ParentOrgName, c.OrgTypeName,
			c.HasPartC, c.HasPartD, nullable(c.OverallStar), nullable(c.PartCStar), nullable(c.PartDStar),
			c.TotalEnrollment, states, c.SNP,
		); err != nil {
			return fmt.Errorf("insert contract %s/%d: %w", c.ContractID, c.Year, err)
		}
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, rows []measure.Row) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO measure_rows (
		contract_id, year, measure, domain_id, domain_name, score, star, weight, is_part_c, is_part_d
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare measure rows: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ContractID, r.Year, r.Measure, r.DomainID, r.DomainName,
			nullable(r.Score), nullable(r.Star), r.Weight, r.IsPartC, r.IsPartD,
		); err != nil {
			return fmt.Errorf("insert row %s/%d/%q: %w", r.ContractID, r.Year, r.Measure, err)
		}
	}
	return nil
}

func insertCutPoints(ctx context.Context, tx *sql.Tx, points []cutpoint.CutPoint) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cut_points (
		measure, year, is_pdp, star, lower_bound, upper_bound, higher_is_better
	) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cut points: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, cp := range points {
		if _, err := stmt.ExecContext(ctx,
			cp.Measure, cp.Year, cp.IsPDP, cp.Star, cp.Lower, cp.Upper, cp.HigherIsBetter,
		); err != nil {
			return fmt.Errorf("insert cut point %q/%d star %d: %w", cp.Measure, cp.Year, cp.Star, err)
		}
	}
	return nil
}

const contractColumns = `contract_id, year, contract_name, marketing_name, parent_org_name, org_type_name,
	has_part_c, has_part_d, overall_star, part_c_star, part_d_star, total_enrollment, state_enrollment, snp`

// Contracts returns contract summaries for year, or all years when zero.
func (s *SQLiteStore) Contracts(ctx context.Context, year int) ([]measure.Contract, error) {
	defer observe("contracts", time.Now())
	if s.closed.Load() {
		return nil, ErrClosed
	}
	q := `SELECT ` + contractColumns + ` FROM contracts`
	var args []any
	if year != 0 {
		q += ` WHERE year = ?`
		args = append(args, year)
	}
	q += ` ORDER BY year, contract_id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []measure.Contract{}
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Contract returns one contract-year.
func (s *SQLiteStore) Contract(ctx context.Context, contractID string, year int) (measure.Contract, error) {
	const op = "repository.sqlite.contract"
	defer observe("contract", time.Now())
	if s.closed.Load() {
		return measure.Contract{}, ErrClosed
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE contract_id = ? AND year = ?`, contractID, year)
	c, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return measure.Contract{}, notFound(op, contractID, year)
	}
	return c, err
}

// MeasureRows returns the rows of a contract-year in load order.
func (s *SQLiteStore) MeasureRows(ctx context.Context, contractID string, year int) ([]measure.Row, error) {
	if _, err := s.Contract(ctx, contractID, year); err != nil {
		return nil, err
	}
	defer observe("measure_rows", time.Now())
	return s.queryRows(ctx,
		`SELECT contract_id, year, measure, domain_id, domain_name, score, star, weight, is_part_c, is_part_d
		 FROM measure_rows WHERE contract_id = ? AND year = ? ORDER BY rowid`, contractID, year)
}

// MeasureHistory returns one contract's rows for a measure, oldest first.
func (s *SQLiteStore) MeasureHistory(ctx context.Context, contractID, measureName string) ([]measure.Row, error) {
	defer observe("measure_history", time.Now())
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.queryRows(ctx,
		`SELECT contract_id, year, measure, domain_id, domain_name, score, star, weight, is_part_c, is_part_d
		 FROM measure_rows WHERE contract_id = ? AND measure = ? ORDER BY year`, contractID, measureName)
}

func (s *SQLiteStore) queryRows(ctx context.Context, q string, args ...any) ([]measure.Row, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query measure rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []measure.Row
	for rows.Next() {
		var (
			r           measure.Row
			score, star sql.NullFloat64
		)
		if err := rows.Scan(&r.ContractID, &r.Year, &r.Measure, &r.DomainID, &r.DomainName,
			&score, &star, &r.Weight, &r.IsPartC, &r.IsPartD); err != nil {
			return nil, fmt.Errorf("scan measure row: %w", err)
		}
		r.Score, r.Star = ptr(score), ptr(star)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CutPoints returns the cached cut-point table.
func (s *SQLiteStore) CutPoints(_ context.Context) (*cutpoint.Table, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.cuts.Load(), nil
}

func (s *SQLiteStore) refreshCutPoints(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT measure, year, is_pdp, star, lower_bound, upper_bound, higher_is_better FROM cut_points ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("query cut points: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var points []cutpoint.CutPoint
	for rows.Next() {
		var cp cutpoint.CutPoint
		if err := rows.Scan(&cp.Measure, &cp.Year, &cp.IsPDP, &cp.Star, &cp.Lower, &cp.Upper, &cp.HigherIsBetter); err != nil {
			return fmt.Errorf("scan cut point: %w", err)
		}
		points = append(points, cp)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read cut points: %w", err)
	}
	t, err := cutpoint.NewTable(points)
	if err != nil {
		return err
	}
	s.cuts.Store(t)
	return nil
}

// Counts returns record counts. Query failures count as zero.
func (s *SQLiteStore) Counts(ctx context.Context) Counts {
	var c Counts
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"contracts", &c.Contracts},
		{"measure_rows", &c.Rows},
		{"cut_points", &c.CutPoints},
	} {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dst); err != nil {
			metrics.RecordErrorByComponent("repository", "count_failed")
		}
	}
	return c
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContract(sc scanner) (measure.Contract, error) {
	var (
		c                     measure.Contract
		overall, partC, partD sql.NullFloat64
		states                sql.NullString
	)
	if err := sc.Scan(&c.ContractID, &c.Year, &c.ContractName, &c.MarketingName, &c.ParentOrgName, &c.OrgTypeName,
		&c.HasPartC, &c.HasPartD, &overall, &partC, &partD, &c.TotalEnrollment, &states, &c.SNP); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("scan contract: %w", err)
	}
	c.OverallStar, c.PartCStar, c.PartDStar = ptr(overall), ptr(partC), ptr(partD)
	if states.Valid {
		if err := json.Unmarshal([]byte(states.String), &c.StateEnrollment); err != nil {
			return c, fmt.Errorf("decode state enrollment for %s: %w", c.ContractID, err)
		}
	}
	return c, nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return measure.Float(n.Float64)
}
