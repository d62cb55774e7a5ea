package dto

// AddFundsRequest credits the authenticated owner's wallet. Amount is a
// decimal string in major units, exact to two fractional digits.
type AddFundsRequest struct {
	Amount      string `json:"amount" validate:"required,min=1,max=32"`
	ReferenceID string `json:"reference_id,omitempty" validate:"omitempty,max=128"`
	Description string `json:"description,omitempty" validate:"omitempty,max=512"`
}

// WalletBalanceResponse reports the current balance
type WalletBalanceResponse struct {
	BalanceCents int64  `json:"balance_cents"`
	Balance      string `json:"balance"`
	Currency     string `json:"currency"`
}

// TransactionDTO is one ledger entry in a history listing
type TransactionDTO struct {
	UUID          string  `json:"uuid"`
	CorrelationID string  `json:"correlation_id"`
	Type          string  `json:"type"`
	Status        string  `json:"status"`
	AmountCents   int64   `json:"amount_cents"`
	Currency      string  `json:"currency"`
	CampaignID    *uint   `json:"campaign_id,omitempty"`
	AdID          *uint   `json:"ad_id,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	ReferenceID   string  `json:"reference_id,omitempty"`
	Description   string  `json:"description,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// TransactionHistoryRequest filters and paginates the ledger listing
type TransactionHistoryRequest struct {
	Page     int     `json:"page" query:"page" validate:"omitempty,min=1"`
	PageSize int     `json:"page_size" query:"page_size" validate:"omitempty,min=1,max=100"`
	Type     *string `json:"type,omitempty" query:"type" validate:"omitempty,oneof=credit debit"`
}

// TransactionHistoryResponse is the paginated ledger listing
type TransactionHistoryResponse struct {
	Transactions []TransactionDTO `json:"transactions"`
	Pagination   PaginationInfo   `json:"pagination"`
}
