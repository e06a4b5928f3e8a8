package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadfinder/internal/discovery"
	"github.com/sells-group/leadfinder/internal/enrich"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	postcode      TEXT NOT NULL DEFAULT '',
	lat           REAL NOT NULL,
	lng           REAL NOT NULL,
	radius_meters INTEGER NOT NULL,
	keywords      TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	candidates    INTEGER NOT NULL DEFAULT 0,
	leads         INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS candidates (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	place_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	name     TEXT NOT NULL,
	data     TEXT NOT NULL,
	PRIMARY KEY (run_id, place_id)
);

CREATE TABLE IF NOT EXISTS leads (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	place_id       TEXT NOT NULL,
	position       INTEGER NOT NULL,
	name           TEXT NOT NULL,
	company        TEXT NOT NULL DEFAULT '',
	company_number TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	url            TEXT NOT NULL DEFAULT '',
	mobiles        TEXT NOT NULL,
	emails         TEXT NOT NULL,
	directors      TEXT NOT NULL,
	score          REAL,
	PRIMARY KEY (run_id, place_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, spec RunSpec) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	keywords, err := json.Marshal(nonNil(spec.Keywords))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal keywords")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, postcode, lat, lng, radius_meters, keywords, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, spec.Postcode, spec.Center.Lat, spec.Center.Lng, spec.RadiusMeters, string(keywords),
		string(RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{
		ID:        id,
		RunSpec:   spec,
		Status:    RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, candidates, leads int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, candidates = ?, leads = ?, updated_at = ? WHERE id = ?`,
		string(RunStatusComplete), candidates, leads, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

const sqliteRunColumns = `id, postcode, lat, lng, radius_meters, keywords, status, candidates, leads, error, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "sqlite: get run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveCandidates replaces the run's candidates in one transaction.
func (s *SQLiteStore) SaveCandidates(ctx context.Context, runID string, candidates []discovery.Candidate) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE run_id = ?`, runID); err != nil {
			return eris.Wrap(err, "sqlite: clear candidates")
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO candidates (run_id, place_id, position, name, data) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare candidate insert")
		}
		defer stmt.Close() //nolint:errcheck

		for i, c := range candidates {
			data, err := json.Marshal(c)
			if err != nil {
				return eris.Wrapf(err, "sqlite: marshal candidate %s", c.ID())
			}
			if _, err := stmt.ExecContext(ctx, runID, c.ID(), i, c.Name, string(data)); err != nil {
				return eris.Wrapf(err, "sqlite: insert candidate %s", c.ID())
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, runID string) ([]discovery.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM candidates WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list candidates")
	}
	defer rows.Close() //nolint:errcheck

	var out []discovery.Candidate
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		var c discovery.Candidate
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal candidate")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list candidates iterate")
}

// SaveLeads upserts leads by (run, place ID).
func (s *SQLiteStore) SaveLeads(ctx context.Context, runID string, leads []enrich.Lead) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO leads (`+leadColumnList+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare lead insert")
		}
		defer stmt.Close() //nolint:errcheck

		for i, l := range leads {
			args, err := leadRow(runID, i, l)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return eris.Wrapf(err, "sqlite: insert lead %s", l.PlaceID)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListLeads(ctx context.Context, runID string) ([]enrich.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT place_id, name, company, company_number, website, url, mobiles, emails, directors, score
		 FROM leads WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var out []enrich.Lead
	for rows.Next() {
		var l enrich.Lead
		var mobiles, emails, directors string
		var score sql.NullFloat64
		if err := rows.Scan(&l.PlaceID, &l.Name, &l.Company, &l.CompanyNumber, &l.Website, &l.URL,
			&mobiles, &emails, &directors, &score); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		if err := decodeLead(&l, mobiles, emails, directors); err != nil {
			return nil, err
		}
		if score.Valid {
			v := score.Float64
			l.Score = &v
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var keywords, status string
	err := row.Scan(&r.ID, &r.Postcode, &r.Center.Lat, &r.Center.Lng, &r.RadiusMeters, &keywords,
		&status, &r.Candidates, &r.Leads, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = RunStatus(status)
	if err := json.Unmarshal([]byte(keywords), &r.Keywords); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal keywords")
	}
	return &r, nil
}
