package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/earthskyorg/bybit-trading-bot/pkg/types"
)

// viewFromCloses builds a window where high and low equal the close, which
// is enough for close-only strategies.
func viewFromCloses(t *testing.T, closes []float64) *types.MarketDataView {
	t.Helper()
	return viewFromOHLC(t, closes, closes, closes)
}

func viewFromOHLC(t *testing.T, high, low, closes []float64) *types.MarketDataView {
	t.Helper()

	n := len(closes)
	open := make([]float64, n)
	volume := make([]float64, n)
	timestamps := make([]time.Time, n)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		open[i] = closes[i]
		volume[i] = 1000
		timestamps[i] = base.Add(time.Duration(i) * time.Minute)
	}

	view, err := types.NewMarketDataViewFromSeries("BTCUSDT", open, high, low, closes, volume, timestamps)
	require.NoError(t, err)
	return view
}

// sparseSeries builds a series of length n that is not-ready everywhere
// except the given index/value pairs.
func sparseSeries(n int, values map[int]float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	for i, v := range values {
		s[i] = v
	}
	return s
}
