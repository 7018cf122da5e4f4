package ledger

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepository struct {
	balances map[uuid.UUID]int64
}

func newStubRepository() *stubRepository {
	return &stubRepository{balances: make(map[uuid.UUID]int64)}
}

func (r *stubRepository) GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, account uuid.UUID) (int64, error) {
	return r.balances[account], nil
}

func (r *stubRepository) SetBalance(ctx context.Context, tx pgx.Tx, account uuid.UUID, balance int64) error {
	r.balances[account] = balance
	return nil
}

func (r *stubRepository) GetBalance(ctx context.Context, account uuid.UUID) (int64, error) {
	return r.balances[account], nil
}

func TestLedgerCreditAndDebit(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepository()
	l := NewLedger(repo)
	account := uuid.New()

	require.NoError(t, l.Debit(ctx, nil, account, 150))

	balance, err := l.Balance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(-150), balance)

	require.NoError(t, l.Credit(ctx, nil, account, 150))

	balance, err = l.Balance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestLedgerRejectsOverflow(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepository()
	l := NewLedger(repo)
	account := uuid.New()
	repo.balances[account] = math.MaxInt64

	err := l.Credit(ctx, nil, account, 1)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	// The balance is untouched on a rejected update.
	balance, err := l.Balance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), balance)
}

func TestLedgerRejectsUnderflow(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepository()
	l := NewLedger(repo)
	account := uuid.New()
	repo.balances[account] = math.MinInt64

	err := l.Debit(ctx, nil, account, 1)
	assert.ErrorIs(t, err, ErrArithmeticUnderflow)

	balance, err := l.Balance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), balance)
}
