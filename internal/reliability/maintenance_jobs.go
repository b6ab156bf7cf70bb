package reliability

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/trivault/trivault/internal/database"
	"github.com/trivault/trivault/internal/modules/analytics"
)

// snapshotRetention is how long value snapshots stay in history.db
const snapshotRetention = 90 * 24 * time.Hour

// minFreeDiskBytes halts maintenance when free space falls below it
const minFreeDiskBytes = 100 * 1024 * 1024

// MaintenanceJob performs the nightly database maintenance pass
type MaintenanceJob struct {
	databases map[string]*database.DB
	health    *DatabaseHealthService
	snapshots *analytics.Repository
	dataDir   string
	log       zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(
	databases map[string]*database.DB,
	health *DatabaseHealthService,
	snapshots *analytics.Repository,
	dataDir string,
	log zerolog.Logger,
) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		health:    health,
		snapshots: snapshots,
		dataDir:   dataDir,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// Name identifies the job to the scheduler
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance pass: integrity checks with recovery,
// WAL checkpoints, snapshot pruning and a disk space check
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for name := range j.databases {
		if err := j.health.CheckAndRecover(ctx, name); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("Failed to recover database")
			return fmt.Errorf("failed to recover %s: %w", name, err)
		}
	}

	for name, db := range j.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}
	}

	if _, err := j.snapshots.Prune(time.Now().Add(-snapshotRetention)); err != nil {
		j.log.Warn().Err(err).Msg("Snapshot pruning failed")
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.log.Info().Dur("duration", time.Since(startTime)).Msg("Maintenance completed")
	return nil
}

// checkDiskSpace fails when the data directory's filesystem runs low
func (j *MaintenanceJob) checkDiskSpace() error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(j.dataDir, &stat); err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	free := int64(stat.Bavail) * int64(stat.Bsize)
	if free < minFreeDiskBytes {
		return fmt.Errorf("critically low disk space: %d bytes free", free)
	}

	j.log.Debug().Int64("free_bytes", free).Msg("Disk space ok")
	return nil
}
