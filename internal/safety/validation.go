package safety

import (
	"fmt"
	"math"
	"strings"

	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
)

// Order input bounds. Values outside these are almost certainly feed or
// arithmetic errors, not real market data.
const (
	maxReasonablePrice = 1e10
	minReasonablePrice = 1e-8
	maxReasonableQty   = 1e9
)

// ValidatePrice rejects prices that cannot come from a sane feed:
// non-positive, NaN, infinite or wildly out of range.
func ValidatePrice(symbol string, price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return boterrors.NewRiskManagementError("safety", "validate_price",
			fmt.Sprintf("price for %s is not a finite number", symbol))
	}
	if price <= 0 {
		return boterrors.NewRiskManagementError("safety", "validate_price",
			fmt.Sprintf("price %.8f for %s must be positive", price, symbol))
	}
	if price > maxReasonablePrice || price < minReasonablePrice {
		return boterrors.NewRiskManagementError("safety", "validate_price",
			fmt.Sprintf("price %.8f for %s outside reasonable bounds", price, symbol))
	}
	return nil
}

// ValidateQuantity rejects order sizes that are non-positive, not
// finite or implausibly large.
func ValidateQuantity(symbol string, quantity float64) error {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return boterrors.NewRiskManagementError("safety", "validate_quantity",
			fmt.Sprintf("quantity for %s is not a finite number", symbol))
	}
	if quantity <= 0 {
		return boterrors.NewRiskManagementError("safety", "validate_quantity",
			fmt.Sprintf("quantity %.8f for %s must be positive", quantity, symbol))
	}
	if quantity > maxReasonableQty {
		return boterrors.NewRiskManagementError("safety", "validate_quantity",
			fmt.Sprintf("quantity %.8f for %s outside reasonable bounds", quantity, symbol))
	}
	return nil
}

// ValidateSymbol rejects empty or malformed symbol names before they
// reach the venue.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return boterrors.NewRiskManagementError("safety", "validate_symbol", "symbol is empty")
	}
	if strings.TrimSpace(symbol) != symbol || strings.ToUpper(symbol) != symbol {
		return boterrors.NewRiskManagementError("safety", "validate_symbol",
			fmt.Sprintf("symbol %q must be upper case with no whitespace", symbol))
	}
	return nil
}
