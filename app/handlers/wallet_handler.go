// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/videostreampro/adserver/app/dto"
	"github.com/videostreampro/adserver/app/middleware"
	businessflow "github.com/videostreampro/adserver/business_flow"
	"github.com/videostreampro/adserver/utils"
)

// WalletHandlerInterface defines the contract for wallet handlers
type WalletHandlerInterface interface {
	GetBalance(c fiber.Ctx) error
	GetTransactionHistory(c fiber.Ctx) error
	AddFunds(c fiber.Ctx) error
}

// WalletHandler handles wallet balance and ledger requests
type WalletHandler struct {
	walletFlow businessflow.WalletFlow
	validator  *validator.Validate
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(walletFlow businessflow.WalletFlow) *WalletHandler {
	return &WalletHandler{
		walletFlow: walletFlow,
		validator:  validator.New(),
	}
}

// GetBalance handles the wallet balance lookup
// @Summary Get Wallet Balance
// @Description Retrieve the authenticated owner's wallet balance. The wallet is created on first access.
// @Tags Wallet
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.WalletBalanceResponse} "Balance retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/wallet/balance [get]
func (h *WalletHandler) GetBalance(c fiber.Ctx) error {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	result, err := h.walletFlow.GetBalance(createRequestContext(c, "/api/v1/wallet/balance"), ownerID)
	if err != nil {
		log.Println("Wallet balance lookup failed", err)
		return flowErrorResponse(c, err, "Wallet balance lookup failed", "GET_BALANCE_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Balance retrieved successfully", result)
}

// GetTransactionHistory handles the paginated ledger listing
// @Summary Get Transaction History
// @Description List the owner's ledger entries, newest first, optionally filtered by type
// @Tags Wallet
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Param type query string false "Filter by type" Enums(credit, debit)
// @Success 200 {object} dto.APIResponse{data=dto.TransactionHistoryResponse} "History retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/wallet/transactions [get]
func (h *WalletHandler) GetTransactionHistory(c fiber.Ctx) error {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	var req dto.TransactionHistoryRequest
	if err := c.Bind().Query(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := validateRequest(c, h.validator, &req); !ok {
		return resp
	}

	result, err := h.walletFlow.ListTransactions(createRequestContext(c, "/api/v1/wallet/transactions"), ownerID, &req)
	if err != nil {
		return flowErrorResponse(c, err, "Transaction history lookup failed", "GET_TRANSACTIONS_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Transaction history retrieved successfully", result)
}

// AddFunds handles a wallet credit
// @Summary Add Funds
// @Description Credit the authenticated owner's wallet. Amount is a decimal string exact to two fractional digits.
// @Tags Wallet
// @Accept json
// @Produce json
// @Param request body dto.AddFundsRequest true "Credit data"
// @Success 200 {object} dto.APIResponse{data=dto.WalletBalanceResponse} "Funds added"
// @Failure 400 {object} dto.APIResponse "Malformed or non-positive amount"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/wallet/funds [post]
func (h *WalletHandler) AddFunds(c fiber.Ctx) error {
	ownerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHORIZED", nil)
	}

	var req dto.AddFundsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := validateRequest(c, h.validator, &req); !ok {
		return resp
	}

	amount, err := utils.ParseNonNegativeMoney(req.Amount)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Amount is malformed or negative", "INVALID_AMOUNT", nil)
	}

	ctx := createRequestContext(c, "/api/v1/wallet/funds")
	if _, err := h.walletFlow.AddFunds(ctx, ownerID, amount, req.ReferenceID, req.Description); err != nil {
		if !businessflow.IsValidation(err) {
			log.Println("Add funds failed", err)
		}
		return flowErrorResponse(c, err, "Add funds failed", "ADD_FUNDS_FAILED")
	}

	balance, err := h.walletFlow.GetBalance(ctx, ownerID)
	if err != nil {
		return flowErrorResponse(c, err, "Wallet balance lookup failed", "GET_BALANCE_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Funds added successfully", balance)
}
