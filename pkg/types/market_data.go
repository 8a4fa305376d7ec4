// Package types holds the market-data value types shared across the
// bot's packages.
package types

import "time"

// OHLCV is one candle. Timestamp is the candle's open time.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Ticker is one last-price observation from the public stream.
type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Balance is one coin's wallet balance.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}
