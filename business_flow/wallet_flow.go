// Package businessflow contains the core business logic for the wallet ledger.
package businessflow

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/videostreampro/adserver/app/dto"
	"github.com/videostreampro/adserver/models"
	"github.com/videostreampro/adserver/repository"
	"github.com/videostreampro/adserver/utils"
)

// TransactionMeta carries the optional attribution of a ledger entry
type TransactionMeta struct {
	CampaignID    *uint
	AdID          *uint
	PaymentMethod string
	ReferenceID   string
	Description   string
}

// WalletFlow handles the wallet ledger business logic
type WalletFlow interface {
	// Transact moves funds on a wallet inside one database transaction:
	// lock the wallet row, reject debit underflow, insert a pending
	// ledger entry, update the balance, mark the entry completed.
	Transact(ctx context.Context, walletID uint, txType models.TransactionType, amount utils.Money, meta TransactionMeta) (*models.Transaction, error)

	AddFunds(ctx context.Context, ownerID string, amount utils.Money, referenceID, description string) (*models.Transaction, error)
	DeductCampaignBudget(ctx context.Context, ownerID string, campaignID uint, amount utils.Money) (*models.Transaction, error)
	RefundCampaignBudget(ctx context.Context, ownerID string, campaignID uint, amount utils.Money) (*models.Transaction, error)
	DeductAdBudget(ctx context.Context, ownerID string, campaignID, adID uint, amount utils.Money) (*models.Transaction, error)
	RefundAdBudget(ctx context.Context, ownerID string, campaignID, adID uint, amount utils.Money) (*models.Transaction, error)

	GetBalance(ctx context.Context, ownerID string) (*dto.WalletBalanceResponse, error)
	ListTransactions(ctx context.Context, ownerID string, req *dto.TransactionHistoryRequest) (*dto.TransactionHistoryResponse, error)
}

// WalletFlowImpl implements the wallet ledger business flow
type WalletFlowImpl struct {
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	txm             repository.TxManager
	clk             clock.Clock
}

// NewWalletFlow creates a new wallet flow instance
func NewWalletFlow(
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	txm repository.TxManager,
	clk clock.Clock,
) WalletFlow {
	return &WalletFlowImpl{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		txm:             txm,
		clk:             clk,
	}
}

// Transact executes one atomic ledger movement on a wallet
func (w *WalletFlowImpl) Transact(ctx context.Context, walletID uint, txType models.TransactionType, amount utils.Money, meta TransactionMeta) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrAmountNotPositive
	}

	var transaction *models.Transaction
	err := w.txm.WithTransaction(ctx, func(txCtx context.Context) error {
		wallet, err := w.walletRepo.LockByID(txCtx, walletID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return ErrWalletNotFound
		}

		balance := utils.Money(wallet.Balance)
		var newBalance utils.Money
		var ok bool
		switch txType {
		case models.TransactionTypeCredit:
			newBalance, ok = balance.Add(amount)
			if !ok {
				return fmt.Errorf("balance overflow crediting wallet %d", walletID)
			}
		case models.TransactionTypeDebit:
			newBalance, ok = balance.Sub(amount)
			if !ok {
				return ErrInsufficientFunds
			}
		default:
			return fmt.Errorf("unknown transaction type %q", txType)
		}

		now := w.clk.Now().UTC()
		transaction = &models.Transaction{
			UUID:          uuid.New(),
			CorrelationID: uuid.New(),
			Type:          txType,
			Status:        models.TransactionStatusPending,
			Amount:        amount.Cents(),
			Currency:      wallet.Currency,
			WalletID:      wallet.ID,
			CampaignID:    meta.CampaignID,
			AdID:          meta.AdID,
			PaymentMethod: meta.PaymentMethod,
			ReferenceID:   meta.ReferenceID,
			Description:   meta.Description,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := w.transactionRepo.Save(txCtx, transaction); err != nil {
			return err
		}

		if err := w.walletRepo.UpdateBalance(txCtx, wallet.ID, newBalance.Cents()); err != nil {
			return err
		}

		transaction.Status = models.TransactionStatusCompleted
		return w.transactionRepo.Update(txCtx, transaction)
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

// AddFunds credits the owner's wallet, lazily creating it
func (w *WalletFlowImpl) AddFunds(ctx context.Context, ownerID string, amount utils.Money, referenceID, description string) (*models.Transaction, error) {
	wallet, err := w.walletRepo.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = "wallet top-up"
	}
	return w.Transact(ctx, wallet.ID, models.TransactionTypeCredit, amount, TransactionMeta{
		PaymentMethod: utils.PaymentMethodWallet,
		ReferenceID:   referenceID,
		Description:   description,
	})
}

// DeductCampaignBudget debits the owner's wallet for a campaign allocation
func (w *WalletFlowImpl) DeductCampaignBudget(ctx context.Context, ownerID string, campaignID uint, amount utils.Money) (*models.Transaction, error) {
	wallet, err := w.walletRepo.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return w.Transact(ctx, wallet.ID, models.TransactionTypeDebit, amount, TransactionMeta{
		CampaignID:    &campaignID,
		PaymentMethod: utils.PaymentMethodWallet,
		Description:   fmt.Sprintf("budget allocation for campaign %d", campaignID),
	})
}

// RefundCampaignBudget credits unspent campaign allocation back to the owner
func (w *WalletFlowImpl) RefundCampaignBudget(ctx context.Context, ownerID string, campaignID uint, amount utils.Money) (*models.Transaction, error) {
	wallet, err := w.walletRepo.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return w.Transact(ctx, wallet.ID, models.TransactionTypeCredit, amount, TransactionMeta{
		CampaignID:    &campaignID,
		PaymentMethod: utils.PaymentMethodWallet,
		Description:   fmt.Sprintf("budget refund for campaign %d", campaignID),
	})
}

// DeductAdBudget debits the owner's wallet for an ad-level allocation
func (w *WalletFlowImpl) DeductAdBudget(ctx context.Context, ownerID string, campaignID, adID uint, amount utils.Money) (*models.Transaction, error) {
	wallet, err := w.walletRepo.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return w.Transact(ctx, wallet.ID, models.TransactionTypeDebit, amount, TransactionMeta{
		CampaignID:    &campaignID,
		AdID:          &adID,
		PaymentMethod: utils.PaymentMethodWallet,
		Description:   fmt.Sprintf("budget allocation for ad %d", adID),
	})
}

// RefundAdBudget credits a freed ad-level allocation back to the owner
func (w *WalletFlowImpl) RefundAdBudget(ctx context.Context, ownerID string, campaignID, adID uint, amount utils.Money) (*models.Transaction, error) {
	wallet, err := w.walletRepo.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return w.Transact(ctx, wallet.ID, models.TransactionTypeCredit, amount, TransactionMeta{
		CampaignID:    &campaignID,
		AdID:          &adID,
		PaymentMethod: utils.PaymentMethodWallet,
		Description:   fmt.Sprintf("budget refund for ad %d", adID),
	})
}

// GetBalance returns the owner's current wallet balance
func (w *WalletFlowImpl) GetBalance(ctx context.Context, ownerID string) (*dto.WalletBalanceResponse, error) {
	wallet, err := w.walletRepo.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	balance := utils.Money(wallet.Balance)
	return &dto.WalletBalanceResponse{
		BalanceCents: balance.Cents(),
		Balance:      balance.String(),
		Currency:     wallet.Currency,
	}, nil
}

// ListTransactions returns a page of the owner's ledger history
func (w *WalletFlowImpl) ListTransactions(ctx context.Context, ownerID string, req *dto.TransactionHistoryRequest) (*dto.TransactionHistoryResponse, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = 20
	}
	if page < 1 {
		return nil, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > 100 {
		return nil, ErrInvalidPageSize
	}

	wallet, err := w.walletRepo.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	filter := models.TransactionFilter{WalletID: &wallet.ID}
	if req.Type != nil {
		txType := models.TransactionType(*req.Type)
		filter.Type = &txType
	}

	total, err := w.transactionRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	transactions, err := w.transactionRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	items := make([]dto.TransactionDTO, 0, len(transactions))
	for _, t := range transactions {
		items = append(items, toTransactionDTO(t))
	}

	totalPages := uint(math.Ceil(float64(total) / float64(pageSize)))
	return &dto.TransactionHistoryResponse{
		Transactions: items,
		Pagination: dto.PaginationInfo{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: uint(total),
			TotalPages: totalPages,
			HasNext:    uint(page) < totalPages,
			HasPrev:    page > 1,
		},
	}, nil
}

func toTransactionDTO(t *models.Transaction) dto.TransactionDTO {
	return dto.TransactionDTO{
		UUID:          t.UUID.String(),
		CorrelationID: t.CorrelationID.String(),
		Type:          string(t.Type),
		Status:        string(t.Status),
		AmountCents:   t.Amount,
		Currency:      t.Currency,
		CampaignID:    t.CampaignID,
		AdID:          t.AdID,
		PaymentMethod: t.PaymentMethod,
		ReferenceID:   t.ReferenceID,
		Description:   t.Description,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
	}
}
