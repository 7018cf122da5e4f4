package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for profit ledger persistence.
// Balance updates must run inside the caller's transaction so they commit or
// roll back together with the auction state change that caused them.
type Repository interface {
	// GetBalanceForUpdate returns the account's balance with the row locked,
	// creating a zero-balance row if the account has no history yet.
	GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, account uuid.UUID) (int64, error)

	// SetBalance overwrites the account's balance within the transaction.
	SetBalance(ctx context.Context, tx pgx.Tx, account uuid.UUID, balance int64) error

	// GetBalance reads the account's balance outside any transaction.
	// Accounts with no history have balance 0.
	GetBalance(ctx context.Context, account uuid.UUID) (int64, error)
}

// Ledger tracks the signed net cash flow of each account through the engine:
// negative while funds are escrowed as a bidder, positive after receiving
// proceeds or refunds. It is an audit figure, not a custody balance.
type Ledger struct {
	repo Repository
}

// NewLedger creates a new profit ledger over the given repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// Credit increases the account's running total by amount.
func (l *Ledger) Credit(ctx context.Context, tx pgx.Tx, account uuid.UUID, amount int64) error {
	balance, err := l.repo.GetBalanceForUpdate(ctx, tx, account)
	if err != nil {
		return fmt.Errorf("failed to read ledger balance: %w", err)
	}

	newBalance, err := checkedAdd(balance, amount)
	if err != nil {
		return err
	}

	return l.repo.SetBalance(ctx, tx, account, newBalance)
}

// Debit decreases the account's running total by amount.
func (l *Ledger) Debit(ctx context.Context, tx pgx.Tx, account uuid.UUID, amount int64) error {
	balance, err := l.repo.GetBalanceForUpdate(ctx, tx, account)
	if err != nil {
		return fmt.Errorf("failed to read ledger balance: %w", err)
	}

	newBalance, err := checkedSub(balance, amount)
	if err != nil {
		return err
	}

	return l.repo.SetBalance(ctx, tx, account, newBalance)
}

// Balance returns the account's current running total.
func (l *Ledger) Balance(ctx context.Context, account uuid.UUID) (int64, error) {
	return l.repo.GetBalance(ctx, account)
}
