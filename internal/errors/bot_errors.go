package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	// Fatal categories stop the whole engine
	ErrorCategoryConfiguration  ErrorCategory = "CONFIG"
	ErrorCategoryAuthentication ErrorCategory = "AUTH"

	// Local categories: the offending action is skipped, loops continue
	ErrorCategoryRisk     ErrorCategory = "RISK"
	ErrorCategoryFunds    ErrorCategory = "FUNDS"
	ErrorCategoryOrder    ErrorCategory = "ORDER"
	ErrorCategoryPosition ErrorCategory = "POSITION"
	ErrorCategoryStrategy ErrorCategory = "STRATEGY"

	// Transient categories: retried by the exchange layer
	ErrorCategoryConnection ErrorCategory = "NETWORK"
	ErrorCategoryTimeout    ErrorCategory = "TIMEOUT"
	ErrorCategoryRateLimit  ErrorCategory = "RATE_LIMIT"
)

// BotError represents a categorized error with context
type BotError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
	Retryable  bool
}

// Error implements the error interface
func (e *BotError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s in %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s in %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *BotError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error can be retried
func (e *BotError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error should stop the engine
func (e *BotError) IsFatal() bool {
	return e.Category == ErrorCategoryConfiguration ||
		e.Category == ErrorCategoryAuthentication
}

// NewBotError creates a new categorized bot error
func NewBotError(category ErrorCategory, component, operation, message string) *BotError {
	return &BotError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Retryable: isRetryableCategory(category),
	}
}

// WrapError wraps an existing error with bot error context
func WrapError(err error, category ErrorCategory, component, operation string) *BotError {
	if err == nil {
		return nil
	}

	return &BotError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
		Retryable:  isRetryableCategory(category),
	}
}

// WithContext adds context information to the error
func (e *BotError) WithContext(key string, value interface{}) *BotError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRetryable sets the retryable flag
func (e *BotError) WithRetryable(retryable bool) *BotError {
	e.Retryable = retryable
	return e
}

func isRetryableCategory(category ErrorCategory) bool {
	switch category {
	case ErrorCategoryConnection, ErrorCategoryTimeout, ErrorCategoryRateLimit:
		return true
	default:
		return false
	}
}

// CategorizeError attempts to categorize a generic error
func CategorizeError(err error, component, operation string) *BotError {
	if err == nil {
		return nil
	}

	var botErr *BotError
	if stderrors.As(err, &botErr) {
		return botErr
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "context deadline exceeded") {
		return WrapError(err, ErrorCategoryTimeout, component, operation)
	}

	if strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") ||
		strings.Contains(errMsg, "dns") || strings.Contains(errMsg, "dial") {
		return WrapError(err, ErrorCategoryConnection, component, operation)
	}

	if strings.Contains(errMsg, "api key") || strings.Contains(errMsg, "signature") ||
		strings.Contains(errMsg, "authentication") || strings.Contains(errMsg, "unauthorized") {
		return WrapError(err, ErrorCategoryAuthentication, component, operation)
	}

	if strings.Contains(errMsg, "rate limit") || strings.Contains(errMsg, "too many requests") {
		return WrapError(err, ErrorCategoryRateLimit, component, operation)
	}

	if strings.Contains(errMsg, "insufficient") {
		return WrapError(err, ErrorCategoryFunds, component, operation)
	}

	return WrapError(err, ErrorCategoryConnection, component, operation)
}

// Typed constructors for the error taxonomy

func NewConfigurationError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryConfiguration, component, operation, message)
}

func NewAuthenticationError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryAuthentication, component, operation, message)
}

func NewRiskManagementError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryRisk, component, operation, message)
}

func NewInsufficientFundsError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryFunds, component, operation, message)
}

func NewOrderError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryOrder, component, operation)
}

func NewPositionError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryPosition, component, operation)
}

func NewStrategyError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryStrategy, component, operation)
}

func NewConnectionError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryConnection, component, operation)
}

func NewRateLimitError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryRateLimit, component, operation)
}

// Category matchers used at symbol boundaries to decide skip vs. stop.

func categoryOf(err error) (ErrorCategory, bool) {
	var botErr *BotError
	if stderrors.As(err, &botErr) {
		return botErr.Category, true
	}
	return "", false
}

func IsConfigurationError(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == ErrorCategoryConfiguration
}

func IsAuthenticationError(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == ErrorCategoryAuthentication
}

func IsRiskManagementError(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == ErrorCategoryRisk
}

func IsInsufficientFundsError(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == ErrorCategoryFunds
}

func IsRateLimitError(err error) bool {
	c, ok := categoryOf(err)
	return ok && c == ErrorCategoryRateLimit
}

func IsFatalError(err error) bool {
	var botErr *BotError
	if stderrors.As(err, &botErr) {
		return botErr.IsFatal()
	}
	return false
}

// ErrorStats tracks error counts per category. Safe for use from
// concurrent loops.
type ErrorStats struct {
	mu               sync.Mutex
	totalErrors      int
	errorsByCategory map[ErrorCategory]int
	recentErrors     []*BotError
	maxRecentErrors  int
}

// NewErrorStats creates a new error statistics tracker
func NewErrorStats(maxRecentErrors int) *ErrorStats {
	return &ErrorStats{
		errorsByCategory: make(map[ErrorCategory]int),
		recentErrors:     make([]*BotError, 0, maxRecentErrors),
		maxRecentErrors:  maxRecentErrors,
	}
}

// RecordError records an error in the statistics
func (es *ErrorStats) RecordError(err *BotError) {
	if err == nil {
		return
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	es.totalErrors++
	es.errorsByCategory[err.Category]++

	es.recentErrors = append(es.recentErrors, err)
	if len(es.recentErrors) > es.maxRecentErrors {
		es.recentErrors = es.recentErrors[1:]
	}
}

// TotalErrors returns the total number of recorded errors
func (es *ErrorStats) TotalErrors() int {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.totalErrors
}

// CountByCategory returns a copy of the per-category error counts
func (es *ErrorStats) CountByCategory() map[ErrorCategory]int {
	es.mu.Lock()
	defer es.mu.Unlock()

	counts := make(map[ErrorCategory]int, len(es.errorsByCategory))
	for category, count := range es.errorsByCategory {
		counts[category] = count
	}
	return counts
}

// RecentErrors returns the most recent recorded errors, oldest first
func (es *ErrorStats) RecentErrors() []*BotError {
	es.mu.Lock()
	defer es.mu.Unlock()

	out := make([]*BotError, len(es.recentErrors))
	copy(out, es.recentErrors)
	return out
}
