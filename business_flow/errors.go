// Package businessflow contains the core business logic for ad serving,
// impression billing, and the campaign/ad/wallet lifecycle.
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Wallet and ledger errors
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAmountNotPositive = errors.New("amount must be positive")
	ErrInvalidAmount     = errors.New("amount is malformed")

	// Team errors
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamAccessDenied = errors.New("team access denied")

	// Campaign errors
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrCampaignNameRequired   = errors.New("campaign name is required")
	ErrStartDateInPast        = errors.New("start date must not be in the past")
	ErrEndDateBeforeStartDate = errors.New("end date must be after start date")
	ErrInvalidCampaignStatus  = errors.New("invalid campaign status")

	// Ad errors
	ErrAdNotFound          = errors.New("ad not found")
	ErrAdTitleRequired     = errors.New("ad title is required")
	ErrAdCategoriesEmpty   = errors.New("ad must have at least one category")
	ErrAdVideoURLRequired  = errors.New("ad video URL is required")
	ErrInvalidAdStatus     = errors.New("invalid ad status")
	ErrBudgetExceeded      = errors.New("spend would exceed the available budget")
	ErrAdBudgetUnallocated = errors.New("requested ad budget exceeds the unallocated campaign budget")

	// Serve errors
	ErrVideoIDRequired        = errors.New("video ID is required")
	ErrTargetingRequired      = errors.New("at least one of category or tags is required")
	ErrIdentityRequired       = errors.New("exactly one of user_id and anon_id is required")
	ErrConflictingIdentity    = errors.New("user_id and anon_id are mutually exclusive")
	ErrNoEligibleAds          = errors.New("no eligible ads")
	ErrReservationContention  = errors.New("all candidates lost their budget under contention")
	ErrImpressionTokenRewrite = errors.New("failed to finalize impression token")

	// Impression errors
	ErrImpressionNotFound  = errors.New("impression not found")
	ErrTokenInvalid        = errors.New("impression token is invalid")
	ErrTokenExpired        = errors.New("impression token has expired")
	ErrImpressionExpired   = errors.New("impression has expired")
	ErrInvalidEvent        = errors.New("invalid impression event")
	ErrInvalidTransition   = errors.New("event is not allowed in the current impression state")
	ErrImpressionConfirmed = errors.New("impression already confirmed")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsInsufficientFunds reports whether err stems from a wallet underflow
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

// IsBudgetExceeded reports whether err stems from an ad or campaign
// budget guard
func IsBudgetExceeded(err error) bool {
	return errors.Is(err, ErrBudgetExceeded)
}

// IsNotFound reports whether err identifies a missing entity or token
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrTeamNotFound) ||
		errors.Is(err, ErrCampaignNotFound) ||
		errors.Is(err, ErrAdNotFound) ||
		errors.Is(err, ErrImpressionNotFound)
}

// IsExpired reports whether err identifies an expired token or impression
func IsExpired(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrImpressionExpired)
}

// IsAccessDenied reports whether err identifies a team authorization failure
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrTeamAccessDenied)
}

// IsValidation reports whether err identifies a request-shape or
// cross-field rule violation
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrAmountNotPositive),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrCampaignNameRequired),
		errors.Is(err, ErrStartDateInPast),
		errors.Is(err, ErrEndDateBeforeStartDate),
		errors.Is(err, ErrInvalidCampaignStatus),
		errors.Is(err, ErrAdTitleRequired),
		errors.Is(err, ErrAdCategoriesEmpty),
		errors.Is(err, ErrAdVideoURLRequired),
		errors.Is(err, ErrInvalidAdStatus),
		errors.Is(err, ErrAdBudgetUnallocated),
		errors.Is(err, ErrVideoIDRequired),
		errors.Is(err, ErrTargetingRequired),
		errors.Is(err, ErrIdentityRequired),
		errors.Is(err, ErrConflictingIdentity),
		errors.Is(err, ErrInvalidEvent),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrInvalidPage),
		errors.Is(err, ErrInvalidPageSize):
		return true
	}
	return false
}
