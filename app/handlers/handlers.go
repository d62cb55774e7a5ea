// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/videostreampro/adserver/app/dto"
	businessflow "github.com/videostreampro/adserver/business_flow"
	"github.com/videostreampro/adserver/utils"
)

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "url":
		return err.Field() + " must be a valid URL"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

func errorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func successResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validateRequest runs struct validation and, on failure, writes the 400
// response. The boolean reports whether the request passed.
func validateRequest(c fiber.Ctx, v *validator.Validate, req any) (bool, error) {
	if err := v.Struct(req); err != nil {
		var validationErrors []string
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			for _, fe := range fieldErrors {
				validationErrors = append(validationErrors, getValidationErrorMessage(fe))
			}
		}
		return false, errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}
	return true, nil
}

func createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	// Create context with custom timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}

// flowErrorResponse maps business flow errors onto HTTP status codes. The
// error code comes from the wrapped BusinessError when one is present.
func flowErrorResponse(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	code := fallbackCode
	message := fallbackMessage
	var bizErr *businessflow.BusinessError
	if errors.As(err, &bizErr) {
		code = bizErr.Code
		message = bizErr.Message
	}

	switch {
	case businessflow.IsNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, message, code, nil)
	case businessflow.IsAccessDenied(err):
		return errorResponse(c, fiber.StatusForbidden, message, code, nil)
	case businessflow.IsExpired(err):
		return errorResponse(c, fiber.StatusGone, message, code, nil)
	case businessflow.IsInsufficientFunds(err), businessflow.IsBudgetExceeded(err):
		return errorResponse(c, fiber.StatusBadRequest, message, code, nil)
	case businessflow.IsValidation(err):
		return errorResponse(c, fiber.StatusBadRequest, message, code, nil)
	}
	return errorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}
