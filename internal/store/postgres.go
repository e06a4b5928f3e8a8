package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadfinder/internal/db"
	"github.com/sells-group/leadfinder/internal/discovery"
	"github.com/sells-group/leadfinder/internal/enrich"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	postcode      TEXT NOT NULL DEFAULT '',
	lat           DOUBLE PRECISION NOT NULL,
	lng           DOUBLE PRECISION NOT NULL,
	radius_meters INTEGER NOT NULL,
	keywords      TEXT[] NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	candidates    INTEGER NOT NULL DEFAULT 0,
	leads         INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS candidates (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	place_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	name     TEXT NOT NULL,
	data     JSONB NOT NULL,
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
	mobiles        JSONB NOT NULL,
	emails         JSONB NOT NULL,
	directors      JSONB NOT NULL,
	score          DOUBLE PRECISION,
	PRIMARY KEY (run_id, place_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, spec RunSpec) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, postcode, lat, lng, radius_meters, keywords, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, spec.Postcode, spec.Center.Lat, spec.Center.Lng, spec.RadiusMeters, nonNil(spec.Keywords),
		string(RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &Run{
		ID:        id,
		RunSpec:   spec,
		Status:    RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, candidates, leads int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, candidates = $2, leads = $3, updated_at = $4 WHERE id = $5`,
		string(RunStatusComplete), candidates, leads, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	return nil
}

const postgresRunColumns = `id, postcode, lat, lng, radius_meters, keywords, status, candidates, leads, error, created_at, updated_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postgresRunColumns+` FROM runs WHERE id = $1`, runID)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "postgres: get run %s", runID)
	}
	return r, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM runs WHERE 1=1`
	var args []any
	argN := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argN)
		args = append(args, string(filter.Status))
		argN++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argN)
	args = append(args, listLimit(filter))
	argN++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

var candidateColumns = []string{"run_id", "place_id", "position", "name", "data"}

// SaveCandidates replaces the run's candidates, COPYing the new set inside
// one transaction.
func (s *PostgresStore) SaveCandidates(ctx context.Context, runID string, candidates []discovery.Candidate) error {
	rows := make([][]any, 0, len(candidates))
	for i, c := range candidates {
		data, err := json.Marshal(c)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal candidate %s", c.ID())
		}
		rows = append(rows, []any{runID, c.ID(), i, c.Name, string(data)})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM candidates WHERE run_id = $1`, runID); err != nil {
		return eris.Wrap(err, "postgres: clear candidates")
	}
	if _, err := db.CopyFrom(ctx, tx, "candidates", candidateColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: save candidates")
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit candidates")
}

func (s *PostgresStore) ListCandidates(ctx context.Context, runID string) ([]discovery.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM candidates WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list candidates")
	}
	defer rows.Close()

	var out []discovery.Candidate
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		var c discovery.Candidate
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal candidate")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list candidates iterate")
}

// SaveLeads upserts leads by (run, place ID).
func (s *PostgresStore) SaveLeads(ctx context.Context, runID string, leads []enrich.Lead) error {
	rows := make([][]any, 0, len(leads))
	for i, l := range leads {
		row, err := leadRow(runID, i, l)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      leadColumns,
		ConflictKeys: []string{"run_id", "place_id"},
	}, rows)
	return eris.Wrap(err, "postgres: save leads")
}

func (s *PostgresStore) ListLeads(ctx context.Context, runID string) ([]enrich.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT place_id, name, company, company_number, website, url, mobiles, emails, directors, score
		 FROM leads WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var out []enrich.Lead
	for rows.Next() {
		var l enrich.Lead
		var mobiles, emails, directors string
		if err := rows.Scan(&l.PlaceID, &l.Name, &l.Company, &l.CompanyNumber, &l.Website, &l.URL,
			&mobiles, &emails, &directors, &l.Score); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		if err := decodeLead(&l, mobiles, emails, directors); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func scanPostgresRun(row pgx.Row) (*Run, error) {
	var r Run
	var status string
	err := row.Scan(&r.ID, &r.Postcode, &r.Center.Lat, &r.Center.Lng, &r.RadiusMeters, &r.Keywords,
		&status, &r.Candidates, &r.Leads, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	r.Status = RunStatus(status)
	return &r, nil
}
