package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pable/go-cr-meta/internal/aggregator"
	"github.com/pable/go-cr-meta/internal/model"
	"github.com/pable/go-cr-meta/internal/snapshot"
)

// newMockPostgres returns a Postgres-dialect DB over sqlmock. Migrations are
// not run.
func newMockPostgres(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &DB{conn: conn, dialect: Postgres}, mock
}

func TestRebind(t *testing.T) {
	pg := &DB{dialect: Postgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &DB{dialect: SQLite}
	assert.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))
}

func TestPostgresReplaceSnapshotCommits(t *testing.T) {
	db, mock := newMockPostgres(t)
	s := snapshot.Assemble(nil, aggregator.New(nil))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE TABLE player_type_cards, meta_type_cards")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO deck_types(deck_type) VALUES ($1)"))
	for _, dt := range s.DeckTypes {
		prep.ExpectExec().WithArgs(string(dt)).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, db.ReplaceSnapshot(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceSnapshotRollsBack(t *testing.T) {
	db, mock := newMockPostgres(t)

	agg := aggregator.New(nil)
	d := model.Deck{Hash: "h1", Type: model.DeckTypeCycle}
	for i := int64(1); i <= 8; i++ {
		d.Cards = append(d.Cards, model.CardObservation{CardID: i, Variant: model.VariantNormal, Slot: int(i)})
	}
	agg.Observe("#AAA", d, true)
	s := snapshot.Assemble(nil, agg)

	boom := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO deck_types"))
	for range s.DeckTypes {
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO cards(card_id, card_name) VALUES ($1, $2)")).
		ExpectExec().WillReturnError(boom)
	mock.ExpectRollback()

	err := db.ReplaceSnapshot(context.Background(), s)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "insert cards")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTruncateFailureAborts(t *testing.T) {
	db, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE TABLE").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := db.ReplaceSnapshot(context.Background(), snapshot.Assemble(nil, aggregator.New(nil)))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetOverrideUsesNumberedPlaceholders(t *testing.T) {
	db, mock := newMockPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1, $2, $3, $4)")).
		WithArgs("abc", "Siege", "note", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.SetOverride(context.Background(), "abc", model.DeckTypeSiege, "note"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrateReleasesConnection(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	mock.ExpectQuery(regexp.QuoteMeta("SELECT CURRENT_DATABASE()")).
		WillReturnRows(sqlmock.NewRows([]string{"current_database"}).AddRow("crmeta"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT CURRENT_SCHEMA()")).
		WillReturnError(errors.New("schema lookup failed"))

	err = migrateUp(conn, Postgres)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema lookup failed")
	assert.Zero(t, conn.Stats().InUse, "migration connection must go back to the pool")
	assert.NoError(t, mock.ExpectationsWereMet())
}
