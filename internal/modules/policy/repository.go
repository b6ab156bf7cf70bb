package policy

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository handles policy database operations
// Database: state.db (policies table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new policy repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "policy").Logger(),
	}
}

// Get returns the holder's policy, or nil when the holder has never set one.
// The unset state is distinct from a zero-everywhere policy.
func (r *Repository) Get(holder string) (*Policy, error) {
	var p Policy
	var updatedAt string

	err := r.db.QueryRow(
		"SELECT p_options, p_lp, p_staking, updated_at FROM policies WHERE holder = ?",
		holder,
	).Scan(&p.Options, &p.LP, &p.Staking, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy for %s: %w", holder, err)
	}

	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// Set validates and upserts the holder's policy. Idempotent; does not
// require an existing position.
func (r *Repository) Set(holder string, p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	now := time.Now().Format(time.RFC3339)
	_, err := r.db.Exec(`
		INSERT INTO policies (holder, p_options, p_lp, p_staking, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(holder) DO UPDATE SET
			p_options = excluded.p_options,
			p_lp = excluded.p_lp,
			p_staking = excluded.p_staking,
			updated_at = excluded.updated_at
	`, holder, p.Options, p.LP, p.Staking, now)
	if err != nil {
		return fmt.Errorf("failed to set policy for %s: %w", holder, err)
	}

	r.log.Debug().
		Str("holder", holder).
		Int("p_options", p.Options).
		Int("p_lp", p.LP).
		Int("p_staking", p.Staking).
		Msg("Policy set")

	return nil
}

// SetTx is the transactional variant of Set, used when a policy write must
// commit atomically with other state changes.
func (r *Repository) SetTx(tx *sql.Tx, holder string, p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	now := time.Now().Format(time.RFC3339)
	_, err := tx.Exec(`
		INSERT INTO policies (holder, p_options, p_lp, p_staking, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(holder) DO UPDATE SET
			p_options = excluded.p_options,
			p_lp = excluded.p_lp,
			p_staking = excluded.p_staking,
			updated_at = excluded.updated_at
	`, holder, p.Options, p.LP, p.Staking, now)
	if err != nil {
		return fmt.Errorf("failed to set policy for %s: %w", holder, err)
	}

	return nil
}
