package vault

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Operation kinds recorded in the journal
const (
	OpDeposit          = "deposit"
	OpWithdraw         = "withdraw"
	OpSetPolicy        = "set_policy"
	OpRebalance        = "rebalance"
	OpPartialRebalance = "partial_rebalance"
)

// Operation is one journal row
type Operation struct {
	UUID      string `json:"uuid"`
	Holder    string `json:"holder"`
	Kind      string `json:"kind"`
	Amount    int64  `json:"amount"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Journal is the append-only operation log in state.db. Rows commit in the
// same transaction as the position and policy writes they describe.
type Journal struct {
	db *sql.DB
}

// NewJournal creates the operation journal
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// AppendTx records an operation inside an open transaction
func (j *Journal) AppendTx(tx *sql.Tx, holder, kind string, amount int64, detail string) error {
	_, err := tx.Exec(`
		INSERT INTO operations (uuid, holder, kind, amount, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), holder, kind, amount, detail, time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append operation: %w", err)
	}
	return nil
}

// List returns the holder's most recent operations, newest first
func (j *Journal) List(holder string, limit int) ([]Operation, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.Query(`
		SELECT uuid, holder, kind, amount, COALESCE(detail, ''), created_at
		FROM operations
		WHERE holder = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, holder, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.UUID, &op.Holder, &op.Kind, &op.Amount, &op.Detail, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
