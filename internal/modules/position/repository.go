package position

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/trivault/trivault/internal/domain"
)

// Repository handles position ledger database operations
// Database: state.db (positions table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new position repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "position").Logger(),
	}
}

// Get returns the holder's position. A holder with no prior deposits gets a
// zero-valued entry; position rows are created lazily and never deleted.
func (r *Repository) Get(holder string) (Position, error) {
	pos := Position{Holder: holder}
	var lastUpdate string

	err := r.db.QueryRow(
		"SELECT total_contributed, last_update FROM positions WHERE holder = ?",
		holder,
	).Scan(&pos.TotalContributed, &lastUpdate)
	if err == sql.ErrNoRows {
		return pos, nil
	}
	if err != nil {
		return pos, fmt.Errorf("failed to get position for %s: %w", holder, err)
	}

	pos.LastUpdate, _ = time.Parse(time.RFC3339, lastUpdate)
	return pos, nil
}

// AddTx adjusts the holder's contributed capital by delta inside tx and
// stamps the last-update time. A negative delta that would take the total
// below zero fails with ErrInsufficientBalance and writes nothing.
func (r *Repository) AddTx(tx *sql.Tx, holder string, delta int64) error {
	pos := Position{Holder: holder}
	var lastUpdate string

	err := tx.QueryRow(
		"SELECT total_contributed, last_update FROM positions WHERE holder = ?",
		holder,
	).Scan(&pos.TotalContributed, &lastUpdate)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to read position for %s: %w", holder, err)
	}

	next := pos.TotalContributed + delta
	if next < 0 {
		return domain.ErrInsufficientBalance
	}

	now := time.Now().Format(time.RFC3339)
	_, err = tx.Exec(`
		INSERT INTO positions (holder, total_contributed, last_update)
		VALUES (?, ?, ?)
		ON CONFLICT(holder) DO UPDATE SET
			total_contributed = excluded.total_contributed,
			last_update = excluded.last_update
	`, holder, next, now)
	if err != nil {
		return fmt.Errorf("failed to update position for %s: %w", holder, err)
	}

	return nil
}

// Touch stamps the holder's last-update time without changing the total.
// Used by rebalances, which move capital without contributing or removing it.
func (r *Repository) Touch(holder string) error {
	now := time.Now().Format(time.RFC3339)
	_, err := r.db.Exec(
		"UPDATE positions SET last_update = ? WHERE holder = ?",
		now, holder,
	)
	if err != nil {
		return fmt.Errorf("failed to touch position for %s: %w", holder, err)
	}
	return nil
}

// GetAll returns every position row, used by backups and analytics
func (r *Repository) GetAll() ([]Position, error) {
	rows, err := r.db.Query("SELECT holder, total_contributed, last_update FROM positions")
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var pos Position
		var lastUpdate string
		if err := rows.Scan(&pos.Holder, &pos.TotalContributed, &lastUpdate); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		pos.LastUpdate, _ = time.Parse(time.RFC3339, lastUpdate)
		positions = append(positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}
