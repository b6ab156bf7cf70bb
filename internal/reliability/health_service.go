// Package reliability covers health monitoring, maintenance and backups for
// the vault's databases.
package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/trivault/trivault/internal/database"
)

// DatabaseHealthService monitors the health of every open database
type DatabaseHealthService struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// HealthReport is the result of one database's health check
type HealthReport struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	WALBytes  int64  `json:"wal_bytes"`
}

// NewDatabaseHealthService creates a new database health service
func NewDatabaseHealthService(databases map[string]*database.DB, log zerolog.Logger) *DatabaseHealthService {
	return &DatabaseHealthService{
		databases: databases,
		log:       log.With().Str("service", "health").Logger(),
	}
}

// CheckAll runs an integrity check against every database and reports
// per-database results. It never aborts early; a corrupt database still
// leaves the others checked.
func (s *DatabaseHealthService) CheckAll(ctx context.Context) []HealthReport {
	reports := make([]HealthReport, 0, len(s.databases))

	for name, db := range s.databases {
		report := HealthReport{Name: name, Healthy: true}

		checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := db.HealthCheck(checkCtx); err != nil {
			report.Healthy = false
			report.Error = err.Error()
			s.log.Error().Err(err).Str("database", name).Msg("Health check failed")
		}
		cancel()

		if stats, err := db.GetStats(); err == nil {
			report.SizeBytes = stats.SizeBytes
			report.WALBytes = stats.WALSizeBytes
		}

		reports = append(reports, report)
	}

	return reports
}

// CheckAndRecover checks one database and attempts a WAL checkpoint when the
// integrity check fails. Recovery beyond a checkpoint means restoring from
// backup, which is an operator decision.
func (s *DatabaseHealthService) CheckAndRecover(ctx context.Context, name string) error {
	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("unknown database: %s", name)
	}

	if err := db.HealthCheck(ctx); err == nil {
		return nil
	}

	s.log.Warn().Str("database", name).Msg("Integrity check failed, attempting WAL checkpoint")
	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		return fmt.Errorf("WAL checkpoint during recovery failed: %w", err)
	}

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database %s still unhealthy after checkpoint: %w", name, err)
	}

	s.log.Info().Str("database", name).Msg("Database recovered via WAL checkpoint")
	return nil
}
