package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// DefaultImpressionTTL is how long a reserved impression stays confirmable (5 minutes)
	DefaultImpressionTTL = 5 * time.Minute
)

// Ad serving constants
const (
	// DefaultCostPerViewCents is the billed cost of one served impression
	DefaultCostPerViewCents = 5

	// DefaultMaxCandidates caps the number of ads fetched per serve request
	DefaultMaxCandidates = 50

	// DefaultMinScore is the minimum composite score an ad needs to be served
	DefaultMinScore = 0.1
)

// Default scoring weights; they must sum to 1.
const (
	DefaultTagWeight      = 0.4
	DefaultCategoryWeight = 0.3
	DefaultBudgetWeight   = 0.2
	DefaultBidWeight      = 0.1
)

// Payment constants
const (
	// DefaultCurrency is the single currency all wallets are denominated in
	DefaultCurrency = "USD"

	// PaymentMethodWallet marks ledger entries settled against the wallet balance
	PaymentMethodWallet = "wallet"
)
