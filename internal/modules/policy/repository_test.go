package policy

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/trivault/trivault/internal/domain"
)

func setupRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE policies (
			holder     TEXT PRIMARY KEY,
			p_options  INTEGER NOT NULL,
			p_lp       INTEGER NOT NULL,
			p_staking  INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)
	require.NoError(t, err)

	return NewRepository(db, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestRepository_GetUnset(t *testing.T) {
	repo := setupRepo(t)

	p, err := repo.Get("alice")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRepository_SetAndGet(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.Set("alice", Policy{Options: 50, LP: 30, Staking: 20}))

	p, err := repo.Get("alice")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, [3]int{50, 30, 20}, p.Percentages())
}

func TestRepository_SetOverwrites(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.Set("alice", Policy{Options: 40, LP: 40, Staking: 20}))
	require.NoError(t, repo.Set("alice", Policy{Options: 10, LP: 10, Staking: 80}))

	p, err := repo.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, [3]int{10, 10, 80}, p.Percentages())
}

func TestRepository_SetRejectsInvalid(t *testing.T) {
	repo := setupRepo(t)

	err := repo.Set("alice", Policy{Options: 50, LP: 50, Staking: 50})
	assert.ErrorIs(t, err, domain.ErrInvalidPolicy)

	p, err := repo.Get("alice")
	require.NoError(t, err)
	assert.Nil(t, p)
}
