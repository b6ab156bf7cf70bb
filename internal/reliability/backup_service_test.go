package reliability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trivault/trivault/internal/database"
	"github.com/trivault/trivault/internal/modules/policy"
	"github.com/trivault/trivault/internal/modules/position"
)

type stubState struct {
	policies map[string][3]int
	perSlot  [3]int64
}

func (s *stubState) GetPosition(holder string) (position.Position, error) {
	return position.Position{Holder: holder}, nil
}

func (s *stubState) GetPolicy(holder string) (policy.Policy, bool, error) {
	pct, ok := s.policies[holder]
	if !ok {
		return policy.Default(), false, nil
	}
	return policy.Policy{Options: pct[0], LP: pct[1], Staking: pct[2]}, true, nil
}

func (s *stubState) Breakdown() ([3]int64, error) {
	return s.perSlot, nil
}

type backupFixture struct {
	svc       *BackupService
	positions *position.Repository
	stateDB   *database.DB
	backupDir string
}

func setupBackupService(t *testing.T) *backupFixture {
	t.Helper()

	log := zerolog.New(nil).Level(zerolog.Disabled)
	dataDir := t.TempDir()
	backupDir := filepath.Join(dataDir, "backups")

	stateDB, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "state.db"),
		Profile: database.ProfileStandard,
		Name:    "state",
	})
	require.NoError(t, err)
	t.Cleanup(func() { stateDB.Close() })
	require.NoError(t, stateDB.Migrate())

	positions := position.NewRepository(stateDB.Conn(), log)

	state := &stubState{
		policies: map[string][3]int{"alice": {50, 30, 20}},
		perSlot:  [3]int64{500, 300, 200},
	}

	svc := NewBackupService(
		map[string]*database.DB{"state": stateDB},
		positions,
		state,
		backupDir,
		log,
	)
	return &backupFixture{svc: svc, positions: positions, stateDB: stateDB, backupDir: backupDir}
}

func (f *backupFixture) addPosition(t *testing.T, holder string, amount int64) {
	t.Helper()

	tx, err := f.stateDB.Begin()
	require.NoError(t, err)
	require.NoError(t, f.positions.AddTx(tx, holder, amount))
	require.NoError(t, tx.Commit())
}

func TestBackupService_RunProducesSetAndExport(t *testing.T) {
	f := setupBackupService(t)
	f.addPosition(t, "alice", 1000)

	result, err := f.svc.Run()
	require.NoError(t, err)
	assert.Equal(t, 2, result.Files)
	assert.Greater(t, result.SizeBytes, int64(0))

	// One database copy and one state export
	_, err = os.Stat(filepath.Join(result.Dir, "state.db"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(result.Dir, "state.msgpack"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(f.backupDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBackupService_ExportRoundTrip(t *testing.T) {
	f := setupBackupService(t)
	f.addPosition(t, "alice", 1000)

	_, err := f.svc.Run()
	require.NoError(t, err)

	export, err := f.svc.LatestExport()
	require.NoError(t, err)

	require.Len(t, export.Positions, 1)
	assert.Equal(t, "alice", export.Positions[0].Holder)
	assert.Equal(t, int64(1000), export.Positions[0].TotalContributed)

	assert.Equal(t, [3]int{50, 30, 20}, export.Policies["alice"])
	assert.Equal(t, int64(500), export.PerSlot["options"])
	assert.Equal(t, int64(300), export.PerSlot["lp"])
	assert.Equal(t, int64(200), export.PerSlot["staking"])
}

func TestBackupService_LatestExportWithoutBackups(t *testing.T) {
	f := setupBackupService(t)

	_, err := f.svc.LatestExport()
	assert.Error(t, err)
}
