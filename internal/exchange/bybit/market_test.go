package bybit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKlineRows_ReversesToOldestFirst(t *testing.T) {
	// The venue returns rows newest-first.
	result := map[string]interface{}{
		"symbol":   "BTCUSDT",
		"category": "linear",
		"list": [][]string{
			{"1717243200000", "35150", "35300", "35100", "35250", "12.5", "440000"},
			{"1717239600000", "35100", "35200", "35050", "35150", "11.0", "386650"},
			{"1717236000000", "35000", "35120", "34900", "35100", "10.0", "351000"},
		},
	}

	candles, err := parseKlineRows(result, "BTCUSDT")

	require.NoError(t, err)
	require.Len(t, candles, 3)

	assert.Equal(t, time.UnixMilli(1717236000000), candles[0].Timestamp)
	assert.Equal(t, 35000.0, candles[0].Open)
	assert.Equal(t, 35120.0, candles[0].High)
	assert.Equal(t, 34900.0, candles[0].Low)
	assert.Equal(t, 35100.0, candles[0].Close)
	assert.Equal(t, 10.0, candles[0].Volume)

	assert.Equal(t, time.UnixMilli(1717243200000), candles[2].Timestamp)
	assert.Equal(t, 35250.0, candles[2].Close)

	for i := 1; i < len(candles); i++ {
		assert.True(t, candles[i].Timestamp.After(candles[i-1].Timestamp))
	}
}

func TestParseKlineRows_ShortRowRejected(t *testing.T) {
	result := map[string]interface{}{
		"list": [][]string{{"1717236000000", "35000", "35120"}},
	}

	_, err := parseKlineRows(result, "BTCUSDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BTCUSDT")
}

func TestParseKlineRows_Empty(t *testing.T) {
	candles, err := parseKlineRows(map[string]interface{}{"list": [][]string{}}, "BTCUSDT")

	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestParseLastPrice(t *testing.T) {
	result := map[string]interface{}{
		"category": "linear",
		"list": []map[string]interface{}{
			{"symbol": "ETHUSDT", "lastPrice": "1810.55"},
			{"symbol": "BTCUSDT", "lastPrice": "35150.10"},
		},
	}

	price, err := parseLastPrice(result, "BTCUSDT")

	require.NoError(t, err)
	assert.Equal(t, 35150.10, price)
}

func TestParseLastPrice_SymbolAbsent(t *testing.T) {
	result := map[string]interface{}{
		"list": []map[string]interface{}{{"symbol": "ETHUSDT", "lastPrice": "1810.55"}},
	}

	_, err := parseLastPrice(result, "BTCUSDT")
	require.Error(t, err)
}

func TestParseLastPrice_BlankPriceRejected(t *testing.T) {
	result := map[string]interface{}{
		"list": []map[string]interface{}{{"symbol": "BTCUSDT", "lastPrice": ""}},
	}

	_, err := parseLastPrice(result, "BTCUSDT")
	require.Error(t, err)
}

func TestIntervalFromDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{time.Minute, Interval1m},
		{5 * time.Minute, Interval5m},
		{time.Hour, Interval1h},
		{4 * time.Hour, Interval4h},
		{24 * time.Hour, Interval1d},
	}
	for _, tc := range cases {
		got, err := IntervalFromDuration(tc.d)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := IntervalFromDuration(90 * time.Second)
	assert.Error(t, err)
}
