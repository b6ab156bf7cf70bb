// Package assets provides the underlying fungible-asset ledger the vault
// debits and credits. Standard transfer semantics with an explicit
// allowance step preceding any third-party debit.
package assets

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/trivault/trivault/internal/domain"
)

// VaultAccount is the ledger account holding funds the vault has custody of
// but has not yet placed with a strategy.
const VaultAccount = "vault"

// Ledger handles asset account operations
// Database: ledger.db (accounts, allowances tables)
type Ledger struct {
	db    *sql.DB
	asset string // identity of the underlying asset
	log   zerolog.Logger
}

// NewLedger creates a new asset ledger
func NewLedger(db *sql.DB, asset string, log zerolog.Logger) *Ledger {
	return &Ledger{
		db:    db,
		asset: asset,
		log:   log.With().Str("service", "asset_ledger").Logger(),
	}
}

// Asset returns the identity of the underlying asset
func (l *Ledger) Asset() string {
	return l.asset
}

// BalanceOf returns the account's balance; unknown accounts hold zero
func (l *Ledger) BalanceOf(account string) (int64, error) {
	var balance int64
	err := l.db.QueryRow("SELECT balance FROM accounts WHERE account = ?", account).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance of %s: %w", account, err)
	}
	return balance, nil
}

// Mint credits freshly issued units to an account. Administrative operation;
// the engine itself never mints.
func (l *Ledger) Mint(account string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin mint: %w", err)
	}
	defer tx.Rollback()

	if err := creditTx(tx, account, amount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mint: %w", err)
	}

	l.log.Info().Str("account", account).Int64("amount", amount).Msg("Minted units")
	return nil
}

// Approve sets the spender's allowance over the owner's balance
func (l *Ledger) Approve(owner, spender string, amount int64) error {
	if amount < 0 {
		return domain.ErrInvalidAmount
	}

	now := time.Now().Format(time.RFC3339)
	_, err := l.db.Exec(`
		INSERT INTO allowances (owner, spender, amount, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner, spender) DO UPDATE SET
			amount = excluded.amount,
			updated_at = excluded.updated_at
	`, owner, spender, amount, now)
	if err != nil {
		return fmt.Errorf("failed to approve %s for %s: %w", spender, owner, err)
	}

	return nil
}

// Allowance returns the spender's remaining allowance over the owner's balance
func (l *Ledger) Allowance(owner, spender string) (int64, error) {
	var amount int64
	err := l.db.QueryRow(
		"SELECT amount FROM allowances WHERE owner = ? AND spender = ?",
		owner, spender,
	).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get allowance: %w", err)
	}
	return amount, nil
}

// Transfer moves amount from one account to another
func (l *Ledger) Transfer(from, to string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback()

	if err := debitTx(tx, from, amount); err != nil {
		return err
	}
	if err := creditTx(tx, to, amount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}

	return nil
}

// TransferFrom moves amount from the owner's account on the spender's
// authority, consuming allowance. Fails without sufficient allowance or
// balance; nothing moves on failure.
func (l *Ledger) TransferFrom(owner, spender, to string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transfer-from: %w", err)
	}
	defer tx.Rollback()

	var allowance int64
	err = tx.QueryRow(
		"SELECT amount FROM allowances WHERE owner = ? AND spender = ?",
		owner, spender,
	).Scan(&allowance)
	if err == sql.ErrNoRows {
		allowance = 0
	} else if err != nil {
		return fmt.Errorf("failed to read allowance: %w", err)
	}

	if allowance < amount {
		return fmt.Errorf("%w: allowance %d below %d", domain.ErrInsufficientBalance, allowance, amount)
	}

	now := time.Now().Format(time.RFC3339)
	if _, err := tx.Exec(
		"UPDATE allowances SET amount = amount - ?, updated_at = ? WHERE owner = ? AND spender = ?",
		amount, now, owner, spender,
	); err != nil {
		return fmt.Errorf("failed to consume allowance: %w", err)
	}

	if err := debitTx(tx, owner, amount); err != nil {
		return err
	}
	if err := creditTx(tx, to, amount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer-from: %w", err)
	}

	return nil
}

func debitTx(tx *sql.Tx, account string, amount int64) error {
	var balance int64
	err := tx.QueryRow("SELECT balance FROM accounts WHERE account = ?", account).Scan(&balance)
	if err == sql.ErrNoRows {
		balance = 0
	} else if err != nil {
		return fmt.Errorf("failed to read balance of %s: %w", account, err)
	}

	if balance < amount {
		return fmt.Errorf("%w: account %s holds %d, needs %d", domain.ErrInsufficientBalance, account, balance, amount)
	}

	now := time.Now().Format(time.RFC3339)
	if _, err := tx.Exec(
		"UPDATE accounts SET balance = balance - ?, updated_at = ? WHERE account = ?",
		amount, now, account,
	); err != nil {
		return fmt.Errorf("failed to debit %s: %w", account, err)
	}

	return nil
}

func creditTx(tx *sql.Tx, account string, amount int64) error {
	now := time.Now().Format(time.RFC3339)
	_, err := tx.Exec(`
		INSERT INTO accounts (account, balance, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at = excluded.updated_at
	`, account, amount, now)
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", account, err)
	}
	return nil
}
