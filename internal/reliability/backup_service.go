package reliability

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/trivault/trivault/internal/database"
	"github.com/trivault/trivault/internal/modules/policy"
	"github.com/trivault/trivault/internal/modules/position"
	"github.com/trivault/trivault/internal/modules/strategy"
)

// keepBackups is how many timestamped backup sets survive rotation
const keepBackups = 14

// StateProvider supplies the vault state included in the portable export
type StateProvider interface {
	GetPosition(holder string) (position.Position, error)
	GetPolicy(holder string) (policy.Policy, bool, error)
	Breakdown() ([3]int64, error)
}

// StateExport is the portable snapshot of vault state, encoded with msgpack.
// It restores the logical state without the database files.
type StateExport struct {
	TakenAt   time.Time           `msgpack:"taken_at"`
	PerSlot   map[string]int64    `msgpack:"per_slot"`
	Positions []position.Position `msgpack:"positions"`
	Policies  map[string][3]int   `msgpack:"policies"`
}

// BackupService produces timestamped backup sets: one consistent copy of
// each database plus a msgpack state export.
type BackupService struct {
	databases map[string]*database.DB
	positions *position.Repository
	state     StateProvider
	backupDir string
	log       zerolog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(
	databases map[string]*database.DB,
	positions *position.Repository,
	state StateProvider,
	backupDir string,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		databases: databases,
		positions: positions,
		state:     state,
		backupDir: backupDir,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// BackupResult describes one completed backup set
type BackupResult struct {
	Dir       string `json:"dir"`
	SizeBytes int64  `json:"size_bytes"`
	Files     int    `json:"files"`
}

// Run creates one timestamped backup set, then rotates old sets
func (s *BackupService) Run() (*BackupResult, error) {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	timestamp := time.Now().Format("2006-01-02_150405")
	setDir := filepath.Join(s.backupDir, timestamp)
	if err := os.MkdirAll(setDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	result := &BackupResult{Dir: setDir}

	for name, db := range s.databases {
		dest := filepath.Join(setDir, name+".db")
		if err := s.backupDatabase(db, dest); err != nil {
			s.log.Error().Err(err).Str("database", name).Msg("Failed to backup database")
			continue
		}
		if info, err := os.Stat(dest); err == nil {
			result.SizeBytes += info.Size()
			result.Files++
		}
	}

	exportPath := filepath.Join(setDir, "state.msgpack")
	if err := s.exportState(exportPath); err != nil {
		s.log.Error().Err(err).Msg("Failed to export vault state")
	} else if info, err := os.Stat(exportPath); err == nil {
		result.SizeBytes += info.Size()
		result.Files++
	}

	if result.Files == 0 {
		os.RemoveAll(setDir)
		return nil, fmt.Errorf("backup produced no files")
	}

	if err := s.rotate(); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate old backups")
	}

	s.log.Info().
		Dur("duration", time.Since(startTime)).
		Str("dir", setDir).
		Int64("size_bytes", result.SizeBytes).
		Msg("Backup completed")

	return result, nil
}

// backupDatabase writes a consistent single-file copy via VACUUM INTO,
// after checkpointing the WAL so the copy carries every committed write.
func (s *BackupService) backupDatabase(db *database.DB, dest string) error {
	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		s.log.Warn().Err(err).Str("database", db.Name()).Msg("Pre-backup checkpoint failed")
	}

	if _, err := db.Exec("VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("vacuum-into failed for %s: %w", db.Name(), err)
	}
	return nil
}

// exportState writes the msgpack state export
func (s *BackupService) exportState(dest string) error {
	positions, err := s.positions.GetAll()
	if err != nil {
		return fmt.Errorf("failed to load positions: %w", err)
	}

	policies := make(map[string][3]int, len(positions))
	for _, pos := range positions {
		pol, stored, err := s.state.GetPolicy(pos.Holder)
		if err != nil {
			return fmt.Errorf("failed to load policy for %s: %w", pos.Holder, err)
		}
		if stored {
			policies[pos.Holder] = pol.Percentages()
		}
	}

	breakdown, err := s.state.Breakdown()
	if err != nil {
		return fmt.Errorf("failed to read strategy values: %w", err)
	}
	perSlot := make(map[string]int64, 3)
	for i, name := range strategy.SlotNames() {
		perSlot[name] = breakdown[i]
	}

	export := StateExport{
		TakenAt:   time.Now().UTC(),
		PerSlot:   perSlot,
		Positions: positions,
		Policies:  policies,
	}

	data, err := msgpack.Marshal(&export)
	if err != nil {
		return fmt.Errorf("failed to encode state export: %w", err)
	}

	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("failed to write state export: %w", err)
	}
	return nil
}

// rotate removes the oldest backup sets beyond the retention count
func (s *BackupService) rotate() error {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return fmt.Errorf("failed to read backup directory: %w", err)
	}

	var sets []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			sets = append(sets, e.Name())
		}
	}
	if len(sets) <= keepBackups {
		return nil
	}

	// Timestamped names sort chronologically
	sort.Strings(sets)
	for _, name := range sets[:len(sets)-keepBackups] {
		path := filepath.Join(s.backupDir, name)
		if err := os.RemoveAll(path); err != nil {
			s.log.Error().Err(err).Str("path", path).Msg("Failed to remove old backup")
			continue
		}
		s.log.Debug().Str("path", path).Msg("Removed old backup")
	}
	return nil
}

// LatestExport decodes the most recent msgpack state export, if any
func (s *BackupService) LatestExport() (*StateExport, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var sets []string
	for _, e := range entries {
		if e.IsDir() {
			sets = append(sets, e.Name())
		}
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("no backups found")
	}
	sort.Strings(sets)

	data, err := os.ReadFile(filepath.Join(s.backupDir, sets[len(sets)-1], "state.msgpack"))
	if err != nil {
		return nil, fmt.Errorf("failed to read state export: %w", err)
	}

	var export StateExport
	if err := msgpack.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to decode state export: %w", err)
	}
	return &export, nil
}
