package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/videostreampro/adserver/app/dto"
	"github.com/videostreampro/adserver/models"
	"github.com/videostreampro/adserver/utils"
)

type walletEnv struct {
	walletRepo      *fakeWalletRepo
	transactionRepo *fakeTransactionRepo
	clk             *clock.TestClock
	flow            WalletFlow
}

func newWalletEnv(t *testing.T) *walletEnv {
	t.Helper()
	walletRepo := newFakeWalletRepo()
	transactionRepo := newFakeTransactionRepo()
	clk := clock.NewTestClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return &walletEnv{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		clk:             clk,
		flow:            NewWalletFlow(walletRepo, transactionRepo, fakeTxManager{}, clk),
	}
}

func TestAddFundsCreatesWalletAndLedgerEntry(t *testing.T) {
	env := newWalletEnv(t)
	ctx := context.Background()

	transaction, err := env.flow.AddFunds(ctx, "owner-1", utils.Money(2500), "ref-1", "")
	require.NoError(t, err)
	require.NotNil(t, transaction)
	assert.Equal(t, models.TransactionTypeCredit, transaction.Type)
	assert.Equal(t, models.TransactionStatusCompleted, transaction.Status)
	assert.Equal(t, int64(2500), transaction.Amount)
	assert.Equal(t, "ref-1", transaction.ReferenceID)
	assert.Equal(t, "wallet top-up", transaction.Description)

	wallet, err := env.walletRepo.ByOwnerID(ctx, "owner-1")
	require.NoError(t, err)
	require.NotNil(t, wallet)
	assert.Equal(t, int64(2500), wallet.Balance)
}

func TestTransactRejectsNonPositiveAmount(t *testing.T) {
	env := newWalletEnv(t)
	ctx := context.Background()

	wallet, err := env.walletRepo.GetOrCreate(ctx, "owner-1")
	require.NoError(t, err)

	_, err = env.flow.Transact(ctx, wallet.ID, models.TransactionTypeCredit, 0, TransactionMeta{})
	assert.ErrorIs(t, err, ErrAmountNotPositive)

	_, err = env.flow.Transact(ctx, wallet.ID, models.TransactionTypeDebit, -5, TransactionMeta{})
	assert.ErrorIs(t, err, ErrAmountNotPositive)
}

func TestTransactUnknownWallet(t *testing.T) {
	env := newWalletEnv(t)

	_, err := env.flow.Transact(context.Background(), 99, models.TransactionTypeCredit, 10, TransactionMeta{})
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestDebitUnderflowLeavesBalanceIntact(t *testing.T) {
	env := newWalletEnv(t)
	ctx := context.Background()

	_, err := env.flow.AddFunds(ctx, "owner-1", utils.Money(100), "", "")
	require.NoError(t, err)

	_, err = env.flow.DeductCampaignBudget(ctx, "owner-1", 7, utils.Money(500))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	wallet, err := env.walletRepo.ByOwnerID(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), wallet.Balance)

	// Only the successful credit landed in the ledger.
	count, err := env.transactionRepo.Count(ctx, models.TransactionFilter{WalletID: &wallet.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestBalanceMatchesCompletedLedgerSums(t *testing.T) {
	env := newWalletEnv(t)
	ctx := context.Background()

	_, err := env.flow.AddFunds(ctx, "owner-1", utils.Money(10000), "", "")
	require.NoError(t, err)
	_, err = env.flow.DeductCampaignBudget(ctx, "owner-1", 1, utils.Money(4000))
	require.NoError(t, err)
	_, err = env.flow.RefundCampaignBudget(ctx, "owner-1", 1, utils.Money(1500))
	require.NoError(t, err)
	_, err = env.flow.DeductAdBudget(ctx, "owner-1", 1, 2, utils.Money(500))
	require.NoError(t, err)

	wallet, err := env.walletRepo.ByOwnerID(ctx, "owner-1")
	require.NoError(t, err)

	credits, err := env.transactionRepo.SumCompletedByType(ctx, wallet.ID, models.TransactionTypeCredit)
	require.NoError(t, err)
	debits, err := env.transactionRepo.SumCompletedByType(ctx, wallet.ID, models.TransactionTypeDebit)
	require.NoError(t, err)

	assert.Equal(t, int64(11500), credits)
	assert.Equal(t, int64(4500), debits)
	assert.Equal(t, credits-debits, wallet.Balance)
	assert.Equal(t, int64(7000), wallet.Balance)
}

func TestBudgetTransactionsCarryAttribution(t *testing.T) {
	env := newWalletEnv(t)
	ctx := context.Background()

	_, err := env.flow.AddFunds(ctx, "owner-1", utils.Money(1000), "", "")
	require.NoError(t, err)

	transaction, err := env.flow.DeductAdBudget(ctx, "owner-1", 3, 9, utils.Money(200))
	require.NoError(t, err)
	require.NotNil(t, transaction.CampaignID)
	require.NotNil(t, transaction.AdID)
	assert.Equal(t, uint(3), *transaction.CampaignID)
	assert.Equal(t, uint(9), *transaction.AdID)
	assert.Contains(t, transaction.Description, "ad 9")
}

func TestGetBalanceRendersDecimalString(t *testing.T) {
	env := newWalletEnv(t)
	ctx := context.Background()

	_, err := env.flow.AddFunds(ctx, "owner-1", utils.Money(123456), "", "")
	require.NoError(t, err)

	balance, err := env.flow.GetBalance(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(123456), balance.BalanceCents)
	assert.Equal(t, "1234.56", balance.Balance)
	assert.Equal(t, "USD", balance.Currency)
}

func TestListTransactionsPaginatesNewestFirst(t *testing.T) {
	env := newWalletEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := env.flow.AddFunds(ctx, "owner-1", utils.Money(int64(100+i)), "", "")
		require.NoError(t, err)
	}

	req := dto.TransactionHistoryRequest{Page: 1, PageSize: 2}
	page1, err := env.flow.ListTransactions(ctx, "owner-1", &req)
	require.NoError(t, err)
	require.Len(t, page1.Transactions, 2)
	assert.Equal(t, int64(104), page1.Transactions[0].AmountCents)
	assert.Equal(t, int64(103), page1.Transactions[1].AmountCents)
	assert.Equal(t, uint(5), page1.Pagination.TotalItems)
	assert.Equal(t, uint(3), page1.Pagination.TotalPages)
	assert.True(t, page1.Pagination.HasNext)
	assert.False(t, page1.Pagination.HasPrev)
}

func TestListTransactionsRejectsBadPaging(t *testing.T) {
	env := newWalletEnv(t)
	ctx := context.Background()

	req := dto.TransactionHistoryRequest{Page: -1, PageSize: 10}
	_, err := env.flow.ListTransactions(ctx, "owner-1", &req)
	assert.ErrorIs(t, err, ErrInvalidPage)

	req = dto.TransactionHistoryRequest{Page: 1, PageSize: 500}
	_, err = env.flow.ListTransactions(ctx, "owner-1", &req)
	assert.ErrorIs(t, err, ErrInvalidPageSize)
}
