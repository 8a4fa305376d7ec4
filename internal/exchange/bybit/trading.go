package bybit

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
	"github.com/earthskyorg/bybit-trading-bot/internal/exchange"
	"github.com/earthskyorg/bybit-trading-bot/internal/monitoring"
)

// PlaceMarketOrder submits a market order for the requested quantity.
// The quantity is normalized to the instrument's step before
// submission and checked against the venue's minimums, so the caller
// can pass the raw risk-derived size.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.Side, quantity float64) (*exchange.OrderResult, error) {
	if quantity <= 0 {
		return nil, boterrors.NewOrderError("bybit", "place_market_order",
			fmt.Errorf("quantity must be positive, got %g", quantity))
	}
	if side != exchange.SideBuy && side != exchange.SideSell {
		return nil, boterrors.NewOrderError("bybit", "place_market_order",
			fmt.Errorf("unknown side %q", side))
	}

	constraints, err := c.instruments.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}
	price, err := c.GetLatestPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	qtyDec, err := constraints.NormalizeQty(quantity, price)
	if err != nil {
		return nil, err
	}
	qty, _ := qtyDec.Float64()

	orderLinkID := uuid.NewString()
	params := map[string]interface{}{
		"category":    linearCategory,
		"symbol":      symbol,
		"side":        string(side),
		"orderType":   "Market",
		"qty":         qtyDec.String(),
		"orderLinkId": orderLinkID,
	}

	resp, err := c.call(ctx, "order_create", func() (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	})
	if err != nil {
		return nil, venueError("place_market_order", err)
	}

	orderID, returnedLinkID, err := parseOrderIDs(resp.Result)
	if err != nil {
		return nil, venueError("place_market_order", err)
	}
	if returnedLinkID == "" {
		returnedLinkID = orderLinkID
	}

	monitoring.RecordTrade(symbol, string(side), qty)
	c.log.Info("market order accepted",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("qty", qty),
		zap.String("order_id", orderID))

	return &exchange.OrderResult{
		OrderID:     orderID,
		OrderLinkID: returnedLinkID,
		Symbol:      symbol,
		Side:        side,
		Qty:         qty,
		CreatedAt:   time.Now(),
	}, nil
}

func parseOrderIDs(result interface{}) (orderID, orderLinkID string, err error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal order result: %w", err)
	}

	var orderResult struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := json.Unmarshal(resultBytes, &orderResult); err != nil {
		return "", "", fmt.Errorf("failed to unmarshal order result: %w", err)
	}
	if orderResult.OrderID == "" {
		return "", "", fmt.Errorf("order response carries no order id")
	}
	return orderResult.OrderID, orderResult.OrderLinkID, nil
}

// SetLeverage applies the same leverage to both sides of a symbol.
// The venue rejects a no-op change with a dedicated retCode; that
// response is treated as success.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 {
		return boterrors.NewOrderError("bybit", "set_leverage",
			fmt.Errorf("leverage must be at least 1, got %d", leverage))
	}
	if max := c.instruments.MaxLeverage(ctx, symbol); max > 0 && leverage > max {
		return boterrors.NewOrderError("bybit", "set_leverage",
			fmt.Errorf("leverage %d exceeds instrument maximum %d", leverage, max))
	}

	lv := strconv.Itoa(leverage)
	params := map[string]interface{}{
		"category":     linearCategory,
		"symbol":       symbol,
		"buyLeverage":  lv,
		"sellLeverage": lv,
	}

	_, err := c.call(ctx, "position_set_leverage", func() (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).SetPositionLeverage(ctx)
	})
	if err != nil {
		var venueErr *BybitError
		if stderrors.As(err, &venueErr) && venueErr.Code == ErrCodeLeverageNotModified {
			return nil
		}
		return venueError("set_leverage", err)
	}
	return nil
}

// CancelAll cancels every open order on a symbol.
func (c *Client) CancelAll(ctx context.Context, symbol string) error {
	params := map[string]interface{}{
		"category": linearCategory,
		"symbol":   symbol,
	}

	_, err := c.call(ctx, "order_cancel_all", func() (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).CancelAllOrders(ctx)
	})
	if err != nil {
		return venueError("cancel_all", err)
	}
	return nil
}
