// Package analytics stores periodic value snapshots and derives summary
// statistics from them.
package analytics

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Snapshot is one recorded observation of the vault's value
type Snapshot struct {
	ID           int64     `json:"id"`
	TotalValue   int64     `json:"total_value"`
	OptionsValue int64     `json:"options_value"`
	LPValue      int64     `json:"lp_value"`
	StakingValue int64     `json:"staking_value"`
	TakenAt      time.Time `json:"taken_at"`
}

// Repository handles snapshot database operations
// Database: history.db (value_snapshots table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "analytics").Logger(),
	}
}

// Record appends a snapshot of per-slot and total values
func (r *Repository) Record(total int64, perSlot [3]int64) error {
	now := time.Now().Format(time.RFC3339)
	_, err := r.db.Exec(`
		INSERT INTO value_snapshots (total_value, options_value, lp_value, staking_value, taken_at)
		VALUES (?, ?, ?, ?, ?)
	`, total, perSlot[0], perSlot[1], perSlot[2], now)
	if err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}
	return nil
}

// Recent returns up to limit snapshots, oldest first so the series reads
// in time order
func (r *Repository) Recent(limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 288
	}

	rows, err := r.db.Query(`
		SELECT id, total_value, options_value, lp_value, staking_value, taken_at
		FROM (
			SELECT id, total_value, options_value, lp_value, staking_value, taken_at
			FROM value_snapshots
			ORDER BY id DESC
			LIMIT ?
		)
		ORDER BY id ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		var takenAt string
		if err := rows.Scan(&s.ID, &s.TotalValue, &s.OptionsValue, &s.LPValue, &s.StakingValue, &takenAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.TakenAt, _ = time.Parse(time.RFC3339, takenAt)
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// Prune deletes snapshots older than the cutoff, returning rows removed
func (r *Repository) Prune(olderThan time.Time) (int64, error) {
	res, err := r.db.Exec(
		"DELETE FROM value_snapshots WHERE taken_at < ?",
		olderThan.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		r.log.Debug().Int64("removed", n).Msg("Pruned old snapshots")
	}
	return n, nil
}
