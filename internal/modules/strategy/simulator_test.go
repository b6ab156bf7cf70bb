package strategy

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/trivault/trivault/internal/domain"
	"github.com/trivault/trivault/internal/modules/assets"
)

func setupSimulator(t *testing.T, yieldBps int) (*Simulator, *assets.Ledger) {
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

	ledger := assets.NewLedger(db, "USDQ", testLog())
	sim := NewSimulator(SimulatorConfig{
		Kind:         KindStaking,
		VaultAccount: assets.VaultAccount,
		YieldBps:     yieldBps,
		Ledger:       ledger,
	}, testLog())

	return sim, ledger
}

func TestSimulator_AcceptPullsApprovedFunds(t *testing.T) {
	sim, ledger := setupSimulator(t, 0)

	require.NoError(t, ledger.Mint(assets.VaultAccount, 500))
	require.NoError(t, ledger.Approve(assets.VaultAccount, sim.Account(), 500))

	require.NoError(t, sim.Accept(500))

	value, err := sim.CurrentValue()
	require.NoError(t, err)
	assert.Equal(t, int64(500), value)
}

func TestSimulator_AcceptZeroAmount(t *testing.T) {
	sim, _ := setupSimulator(t, 0)

	assert.ErrorIs(t, sim.Accept(0), domain.ErrInvalidAmount)
}

func TestSimulator_AcceptWithoutApproval(t *testing.T) {
	sim, ledger := setupSimulator(t, 0)
	require.NoError(t, ledger.Mint(assets.VaultAccount, 500))

	assert.ErrorIs(t, sim.Accept(500), domain.ErrInsufficientBalance)
}

func TestSimulator_ReleaseReturnsFunds(t *testing.T) {
	sim, ledger := setupSimulator(t, 0)
	require.NoError(t, ledger.Mint(assets.VaultAccount, 500))
	require.NoError(t, ledger.Approve(assets.VaultAccount, sim.Account(), 500))
	require.NoError(t, sim.Accept(500))

	require.NoError(t, sim.Release(200))

	value, _ := sim.CurrentValue()
	assert.Equal(t, int64(300), value)
	vaultBalance, _ := ledger.BalanceOf(assets.VaultAccount)
	assert.Equal(t, int64(200), vaultBalance)
}

func TestSimulator_ReleaseExceedsBalance(t *testing.T) {
	sim, ledger := setupSimulator(t, 0)
	require.NoError(t, ledger.Mint(sim.Account(), 100))

	assert.ErrorIs(t, sim.Release(101), domain.ErrInsufficientBalance)
}

func TestSimulator_AccrueMintsYield(t *testing.T) {
	// 100 bps per tick on 10000 units accrues 100
	sim, ledger := setupSimulator(t, 100)
	require.NoError(t, ledger.Mint(sim.Account(), 10000))

	accrued, err := sim.Accrue()
	require.NoError(t, err)
	assert.Equal(t, int64(100), accrued)

	value, _ := sim.CurrentValue()
	assert.Equal(t, int64(10100), value)
}

func TestSimulator_AccrueRoundsDownToZero(t *testing.T) {
	// 1 bp on a tiny balance accrues nothing
	sim, ledger := setupSimulator(t, 1)
	require.NoError(t, ledger.Mint(sim.Account(), 100))

	accrued, err := sim.Accrue()
	require.NoError(t, err)
	assert.Equal(t, int64(0), accrued)

	value, _ := sim.CurrentValue()
	assert.Equal(t, int64(100), value)
}

func TestSimulator_AccrueOnEmptyBalance(t *testing.T) {
	sim, _ := setupSimulator(t, 100)

	accrued, err := sim.Accrue()
	require.NoError(t, err)
	assert.Equal(t, int64(0), accrued)
}
