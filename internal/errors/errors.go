package errors

import (
	"errors"
	"fmt"

	"github.com/Proton-105/storefront-bot/internal/domain"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation        = "E100"
	CodePersistence       = "E200"
	CodeDelivery          = "E300"
	CodeState             = "E400"
	CodeRateLimit         = "E500"
	CodeInsufficientFunds = "E600"
	CodeAuthorization     = "E700"
	CodeNotFound          = "E800"
)

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	// Shortfall is set on insufficient-funds errors.
	Shortfall int64
	cause     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// CodeOf returns the AppError code found in err's chain, or "" when there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: fmt.Sprintf("Invalid input. %s", msg),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

func NewPersistenceError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        CodePersistence,
		Message:     fmt.Sprintf("Persistence error: %s", underlyingMsg),
		UserMessage: "Temporary problem, please try again later.",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewDeliveryError(recipient int64, cause error) *AppError {
	return &AppError{
		Code:        CodeDelivery,
		Message:     fmt.Sprintf("Delivery to %d failed", recipient),
		UserMessage: "The messaging service is temporarily unavailable.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        CodeState,
		Message:     msg,
		UserMessage: "This action is not possible right now.",
		Severity:    SeverityMedium,
		Retryable:   false,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("Rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

func NewInsufficientFundsError(balance, price int64) *AppError {
	shortfall := price - balance
	return &AppError{
		Code:        CodeInsufficientFunds,
		Message:     fmt.Sprintf("Insufficient funds: balance %d, price %d", balance, price),
		UserMessage: fmt.Sprintf("Not enough funds. Your balance is %s, you need %s more.",
			domain.FormatMoney(balance, ""), domain.FormatMoney(shortfall, "")),
		Severity:    SeverityLow,
		Retryable:   false,
		Shortfall:   shortfall,
	}
}

func NewAuthorizationError(userID int64) *AppError {
	return &AppError{
		Code:        CodeAuthorization,
		Message:     fmt.Sprintf("User %d is not allowed to perform admin actions", userID),
		UserMessage: "You are not allowed to do that.",
		Severity:    SeverityMedium,
		Retryable:   false,
	}
}

func NewNotFoundError(what string) *AppError {
	return &AppError{
		Code:        CodeNotFound,
		Message:     fmt.Sprintf("%s not found", what),
		UserMessage: fmt.Sprintf("%s not found or already processed.", what),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}
