package position

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/trivault/trivault/internal/domain"
)

func setupRepo(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE positions (
			holder            TEXT PRIMARY KEY,
			total_contributed INTEGER NOT NULL DEFAULT 0,
			last_update       TEXT NOT NULL
		);
	`)
	require.NoError(t, err)

	return NewRepository(db, zerolog.New(nil).Level(zerolog.Disabled)), db
}

func addInTx(t *testing.T, repo *Repository, db *sql.DB, holder string, delta int64) error {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err)

	if err := repo.AddTx(tx, holder, delta); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func TestRepository_GetAbsentHolder(t *testing.T) {
	repo, _ := setupRepo(t)

	pos, err := repo.Get("nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", pos.Holder)
	assert.Equal(t, int64(0), pos.TotalContributed)
}

func TestRepository_AddAccumulates(t *testing.T) {
	repo, db := setupRepo(t)

	require.NoError(t, addInTx(t, repo, db, "alice", 500))
	require.NoError(t, addInTx(t, repo, db, "alice", 300))
	require.NoError(t, addInTx(t, repo, db, "alice", -200))

	pos, err := repo.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(600), pos.TotalContributed)
}

func TestRepository_AddRejectsNegativeTotal(t *testing.T) {
	repo, db := setupRepo(t)

	require.NoError(t, addInTx(t, repo, db, "alice", 100))

	err := addInTx(t, repo, db, "alice", -101)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	pos, err := repo.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), pos.TotalContributed)
}

func TestRepository_GetAll(t *testing.T) {
	repo, db := setupRepo(t)

	require.NoError(t, addInTx(t, repo, db, "alice", 100))
	require.NoError(t, addInTx(t, repo, db, "bob", 200))

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
