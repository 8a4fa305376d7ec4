package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/earthskyorg/bybit-trading-bot/internal/exchange"
)

const settleCoin = "USDT"

// GetAccountSnapshot fetches the unified wallet state and the open
// linear positions in one consistent view.
func (c *Client) GetAccountSnapshot(ctx context.Context) (*exchange.AccountSnapshot, error) {
	snapshot, err := c.fetchWallet(ctx)
	if err != nil {
		return nil, err
	}

	positions, err := c.fetchPositions(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.Positions = positions
	snapshot.Taken = time.Now()
	return snapshot, nil
}

func (c *Client) fetchWallet(ctx context.Context) (*exchange.AccountSnapshot, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
		"coin":        settleCoin,
	}

	resp, err := c.call(ctx, "wallet_balance", func() (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	})
	if err != nil {
		return nil, venueError("get_account_snapshot", err)
	}

	snapshot, err := parseWallet(resp.Result)
	if err != nil {
		return nil, venueError("get_account_snapshot", err)
	}
	return snapshot, nil
}

// parseWallet extracts equity and the settlement-coin balances from the
// wallet payload. All numeric fields arrive as strings.
func parseWallet(result interface{}) (*exchange.AccountSnapshot, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal wallet result: %w", err)
	}

	var walletResult struct {
		List []struct {
			TotalEquity           string `json:"totalEquity"`
			TotalAvailableBalance string `json:"totalAvailableBalance"`
			TotalWalletBalance    string `json:"totalWalletBalance"`
			Coin                  []struct {
				Coin                string `json:"coin"`
				WalletBalance       string `json:"walletBalance"`
				AvailableToWithdraw string `json:"availableToWithdraw"`
				UnrealisedPnl       string `json:"unrealisedPnl"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &walletResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet result: %w", err)
	}
	if len(walletResult.List) == 0 {
		return nil, fmt.Errorf("wallet response has no account data")
	}

	account := walletResult.List[0]
	snapshot := &exchange.AccountSnapshot{
		Equity:    parseFloat64(account.TotalEquity),
		Available: parseFloat64(account.TotalAvailableBalance),
	}

	for _, coin := range account.Coin {
		if coin.Coin != settleCoin {
			continue
		}
		snapshot.Balance = parseFloat64(coin.WalletBalance)
		// Unified accounts may leave the account-level available
		// field blank; fall back to the coin-level figure.
		if snapshot.Available == 0 {
			snapshot.Available = parseFloat64(coin.AvailableToWithdraw)
		}
		break
	}
	if snapshot.Balance == 0 {
		snapshot.Balance = parseFloat64(account.TotalWalletBalance)
	}
	return snapshot, nil
}

func (c *Client) fetchPositions(ctx context.Context) ([]exchange.Position, error) {
	params := map[string]interface{}{
		"category":   linearCategory,
		"settleCoin": settleCoin,
	}

	resp, err := c.call(ctx, "position_list", func() (interface{}, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
	})
	if err != nil {
		return nil, venueError("get_positions", err)
	}

	positions, err := parsePositions(resp.Result)
	if err != nil {
		return nil, venueError("get_positions", err)
	}
	return positions, nil
}

// parsePositions keeps only rows with a non-zero size; the venue
// reports flat symbols with size "0".
func parsePositions(result interface{}) ([]exchange.Position, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal position result: %w", err)
	}

	var positionResult struct {
		List []struct {
			Symbol        string `json:"symbol"`
			Side          string `json:"side"`
			Size          string `json:"size"`
			AvgPrice      string `json:"avgPrice"`
			EntryPrice    string `json:"entryPrice"`
			MarkPrice     string `json:"markPrice"`
			UnrealisedPnl string `json:"unrealisedPnl"`
			Leverage      string `json:"leverage"`
			UpdatedTime   string `json:"updatedTime"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &positionResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal position result: %w", err)
	}

	var positions []exchange.Position
	for _, row := range positionResult.List {
		size := parseFloat64(row.Size)
		if size == 0 {
			continue
		}
		entry := parseFloat64(row.AvgPrice)
		if entry == 0 {
			entry = parseFloat64(row.EntryPrice)
		}
		positions = append(positions, exchange.Position{
			Symbol:        row.Symbol,
			Side:          exchange.Side(row.Side),
			Size:          size,
			EntryPrice:    entry,
			MarkPrice:     parseFloat64(row.MarkPrice),
			UnrealisedPnl: parseFloat64(row.UnrealisedPnl),
			Leverage:      parseFloat64(row.Leverage),
			UpdatedAt:     parseTimestamp(row.UpdatedTime),
		})
	}
	return positions, nil
}
