package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/trivault/trivault/internal/events"
	"github.com/trivault/trivault/internal/modules/analytics"
	"github.com/trivault/trivault/internal/modules/strategy"
	"github.com/trivault/trivault/internal/reliability"
)

// AccrualJob drives one yield tick on each simulated strategy
type AccrualJob struct {
	simulators []*strategy.Simulator
	log        zerolog.Logger
}

// NewAccrualJob creates the yield accrual job
func NewAccrualJob(simulators []*strategy.Simulator, log zerolog.Logger) *AccrualJob {
	return &AccrualJob{
		simulators: simulators,
		log:        log.With().Str("job", "accrual").Logger(),
	}
}

// Name identifies the job to the scheduler
func (j *AccrualJob) Name() string {
	return "yield_accrual"
}

// Run applies one accrual tick per simulator. A failing simulator does not
// block the others.
func (j *AccrualJob) Run() error {
	for _, sim := range j.simulators {
		accrued, err := sim.Accrue()
		if err != nil {
			j.log.Error().Err(err).Str("strategy", sim.Name()).Msg("Accrual failed")
			continue
		}
		if accrued > 0 {
			j.log.Debug().Str("strategy", sim.Name()).Int64("accrued", accrued).Msg("Yield accrued")
		}
	}
	return nil
}

// ValueProvider supplies the per-slot values the snapshot job records
type ValueProvider interface {
	Breakdown() ([3]int64, error)
}

// SnapshotJob records one value snapshot per run
type SnapshotJob struct {
	values    ValueProvider
	snapshots *analytics.Repository
	events    *events.Manager
	log       zerolog.Logger
}

// NewSnapshotJob creates the value snapshot job
func NewSnapshotJob(values ValueProvider, snapshots *analytics.Repository, eventManager *events.Manager, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		values:    values,
		snapshots: snapshots,
		events:    eventManager,
		log:       log.With().Str("job", "snapshot").Logger(),
	}
}

// Name identifies the job to the scheduler
func (j *SnapshotJob) Name() string {
	return "value_snapshot"
}

// Run reads the per-slot values and appends one snapshot row
func (j *SnapshotJob) Run() error {
	perSlot, err := j.values.Breakdown()
	if err != nil {
		return err
	}
	total := perSlot[0] + perSlot[1] + perSlot[2]

	if err := j.snapshots.Record(total, perSlot); err != nil {
		return err
	}

	j.events.EmitTyped(events.ValueSnapshotTaken, "analytics", &events.ValueSnapshotTakenData{
		TotalValue: total,
		PerSlot:    perSlot,
	})
	return nil
}

// BackupJob runs the backup service and uploads the result when configured
type BackupJob struct {
	cloud  *reliability.CloudBackupService
	events *events.Manager
	log    zerolog.Logger
}

// NewBackupJob creates the backup job
func NewBackupJob(cloud *reliability.CloudBackupService, eventManager *events.Manager, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		cloud:  cloud,
		events: eventManager,
		log:    log.With().Str("job", "backup").Logger(),
	}
}

// Name identifies the job to the scheduler
func (j *BackupJob) Name() string {
	return "backup"
}

// Run creates one backup set, uploading it when S3 is configured
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, uploaded, err := j.cloud.CreateAndUpload(ctx)
	if err != nil {
		return err
	}

	j.events.EmitTyped(events.BackupCreated, "reliability", &events.BackupCreatedData{
		Filename:  result.Dir,
		SizeBytes: result.SizeBytes,
		Uploaded:  uploaded,
	})
	return nil
}
