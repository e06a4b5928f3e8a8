package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "leads",
		Columns:      []string{"run_id", "place_id"},
		ConflictKeys: []string{"run_id", "place_id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "leads",
		ConflictKeys: []string{"place_id"},
	}, [][]any{{"r1", "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "leads",
		Columns: []string{"run_id", "place_id"},
	}, [][]any{{"r1", "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"run_id", "place_id", "name"}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_leads" \(LIKE "leads" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_leads"}, cols).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "leads" .* ON CONFLICT \("run_id", "place_id"\) DO UPDATE SET "name" = EXCLUDED\."name"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "leads",
		Columns:      cols,
		ConflictKeys: []string{"run_id", "place_id"},
	}, [][]any{{"r1", "a", "A"}, {"r1", "b", "B"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_leads"}, []string{"place_id"}).WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "leads",
		Columns:      []string{"place_id"},
		ConflictKeys: []string{"place_id"},
		UpdateCols:   []string{"place_id"},
	}, [][]any{{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for leads")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTempTable(t *testing.T) {
	assert.Equal(t, "_tmp_upsert_leads", TempTable("leads"))
	assert.Equal(t, "_tmp_upsert_leadfinder_leads", TempTable("leadfinder.leads"))
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, `"leads"`, identifier("leads").Sanitize())
	assert.Equal(t, `"leadfinder"."leads"`, identifier("leadfinder.leads").Sanitize())
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"run_id", "place_id", "name"`, quoteAndJoin([]string{"run_id", "place_id", "name"}))
}

func TestMergeSQL(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "leads",
		Columns:      []string{"run_id", "place_id", "name", "emails"},
		ConflictKeys: []string{"run_id", "place_id"},
	}
	assert.Equal(t,
		`INSERT INTO "leads" ("run_id", "place_id", "name", "emails") SELECT "run_id", "place_id", "name", "emails" `+
			`FROM "_tmp_upsert_leads" ON CONFLICT ("run_id", "place_id") DO UPDATE SET "name" = EXCLUDED."name", "emails" = EXCLUDED."emails"`,
		MergeSQL(cfg))

	cfg.UpdateCols = []string{"emails"}
	assert.Contains(t, MergeSQL(cfg), `DO UPDATE SET "emails" = EXCLUDED."emails"`)

	keysOnly := UpsertConfig{Table: "leads", Columns: []string{"place_id"}, ConflictKeys: []string{"place_id"}}
	assert.Contains(t, MergeSQL(keysOnly), `ON CONFLICT ("place_id") DO NOTHING`)
}
