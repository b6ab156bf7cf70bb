package assets

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/trivault/trivault/internal/domain"
)

func setupLedger(t *testing.T) *Ledger {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE accounts (
			account    TEXT PRIMARY KEY,
			balance    INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
			updated_at TEXT NOT NULL
		);

		CREATE TABLE allowances (
			owner      TEXT NOT NULL,
			spender    TEXT NOT NULL,
			amount     INTEGER NOT NULL DEFAULT 0 CHECK (amount >= 0),
			updated_at TEXT NOT NULL,
			PRIMARY KEY (owner, spender)
		);
	`)
	require.NoError(t, err)

	return NewLedger(db, "USDQ", zerolog.New(nil).Level(zerolog.Disabled))
}

func TestLedger_MintAndBalance(t *testing.T) {
	l := setupLedger(t)

	require.NoError(t, l.Mint("alice", 1000))

	balance, err := l.BalanceOf("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)
}

func TestLedger_UnknownAccountHoldsZero(t *testing.T) {
	l := setupLedger(t)

	balance, err := l.BalanceOf("nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestLedger_MintRejectsNonPositive(t *testing.T) {
	l := setupLedger(t)

	assert.ErrorIs(t, l.Mint("alice", 0), domain.ErrInvalidAmount)
	assert.ErrorIs(t, l.Mint("alice", -5), domain.ErrInvalidAmount)
}

func TestLedger_Transfer(t *testing.T) {
	l := setupLedger(t)
	require.NoError(t, l.Mint("alice", 1000))

	require.NoError(t, l.Transfer("alice", "bob", 400))

	aliceBalance, _ := l.BalanceOf("alice")
	bobBalance, _ := l.BalanceOf("bob")
	assert.Equal(t, int64(600), aliceBalance)
	assert.Equal(t, int64(400), bobBalance)
}

func TestLedger_TransferInsufficientBalance(t *testing.T) {
	l := setupLedger(t)
	require.NoError(t, l.Mint("alice", 100))

	err := l.Transfer("alice", "bob", 101)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// Nothing moved
	aliceBalance, _ := l.BalanceOf("alice")
	bobBalance, _ := l.BalanceOf("bob")
	assert.Equal(t, int64(100), aliceBalance)
	assert.Equal(t, int64(0), bobBalance)
}

func TestLedger_TransferFromConsumesAllowance(t *testing.T) {
	l := setupLedger(t)
	require.NoError(t, l.Mint("alice", 1000))
	require.NoError(t, l.Approve("alice", "vault", 600))

	require.NoError(t, l.TransferFrom("alice", "vault", "vault", 400))

	remaining, err := l.Allowance("alice", "vault")
	require.NoError(t, err)
	assert.Equal(t, int64(200), remaining)

	vaultBalance, _ := l.BalanceOf("vault")
	assert.Equal(t, int64(400), vaultBalance)
}

func TestLedger_TransferFromWithoutAllowance(t *testing.T) {
	l := setupLedger(t)
	require.NoError(t, l.Mint("alice", 1000))

	err := l.TransferFrom("alice", "vault", "vault", 100)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	aliceBalance, _ := l.BalanceOf("alice")
	assert.Equal(t, int64(1000), aliceBalance)
}

func TestLedger_TransferFromAllowanceBelowAmount(t *testing.T) {
	l := setupLedger(t)
	require.NoError(t, l.Mint("alice", 1000))
	require.NoError(t, l.Approve("alice", "vault", 99))

	err := l.TransferFrom("alice", "vault", "vault", 100)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// Allowance untouched on failure
	remaining, _ := l.Allowance("alice", "vault")
	assert.Equal(t, int64(99), remaining)
}

func TestLedger_ApproveOverwrites(t *testing.T) {
	l := setupLedger(t)

	require.NoError(t, l.Approve("alice", "vault", 500))
	require.NoError(t, l.Approve("alice", "vault", 100))

	remaining, err := l.Allowance("alice", "vault")
	require.NoError(t, err)
	assert.Equal(t, int64(100), remaining)
}
