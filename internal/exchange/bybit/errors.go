package bybit

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
)

// BybitError carries the venue retCode alongside the message.
type BybitError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *BybitError) Error() string {
	return fmt.Sprintf("bybit API error %d: %s", e.Code, e.Message)
}

// Common Bybit v5 retCodes.
const (
	ErrCodeInvalidAPIKey       = 10003
	ErrCodeInvalidSignature    = 10004
	ErrCodeInvalidTimestamp    = 10005
	ErrCodeRateLimitExceeded   = 10006
	ErrCodeOrderNotFound       = 110001
	ErrCodeInvalidOrderType    = 110004
	ErrCodeInsufficientBalance = 110007
	ErrCodeSymbolNotFound      = 110009
	ErrCodeInvalidQuantity     = 110020
	ErrCodeInvalidPrice        = 110021
	ErrCodeLeverageNotModified = 110043
)

// NewBybitError creates a new BybitError.
func NewBybitError(code int, message string) *BybitError {
	return &BybitError{Code: code, Message: message}
}

// apiError converts a non-zero retCode into a BybitError.
func apiError(retCode int, retMsg string) error {
	if retCode == 0 {
		return nil
	}
	return NewBybitError(retCode, retMsg)
}

// isAuthCode reports whether the retCode indicates a credential problem.
func isAuthCode(code int) bool {
	switch code {
	case ErrCodeInvalidAPIKey, ErrCodeInvalidSignature, ErrCodeInvalidTimestamp:
		return true
	}
	return false
}

// isTransient reports whether a failed call may succeed on retry.
// Credential failures and order verdicts are final; rate limits,
// venue 5xx codes and transport errors are not.
func isTransient(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var venueErr *BybitError
	if stderrors.As(err, &venueErr) {
		switch venueErr.Code {
		case ErrCodeRateLimitExceeded,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	// Transport-level failure, not a venue verdict.
	return true
}

// venueError translates an adapter failure into the bot's error
// taxonomy at the public method boundary.
func venueError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var botErr *boterrors.BotError
	if stderrors.As(err, &botErr) {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return boterrors.WrapError(err, boterrors.ErrorCategoryTimeout, "bybit", operation)
	}
	var venueErr *BybitError
	if stderrors.As(err, &venueErr) {
		switch {
		case isAuthCode(venueErr.Code):
			return boterrors.NewAuthenticationError("bybit", operation, venueErr.Message)
		case venueErr.Code == ErrCodeRateLimitExceeded:
			return boterrors.NewRateLimitError("bybit", operation, venueErr)
		case venueErr.Code == ErrCodeInsufficientBalance:
			return boterrors.NewInsufficientFundsError("bybit", operation, venueErr.Message)
		case venueErr.Code >= http.StatusInternalServerError && venueErr.Code < 600:
			return boterrors.NewConnectionError("bybit", operation, venueErr)
		default:
			return boterrors.NewOrderError("bybit", operation, venueErr).
				WithContext("ret_code", venueErr.Code)
		}
	}
	return boterrors.NewConnectionError("bybit", operation, err)
}
