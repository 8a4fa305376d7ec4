package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Names(t *testing.T) {
	names := Names()
	assert.Equal(t, []string{
		"breakout",
		"ema_crossover",
		"momentum_divergence",
		"stoch_rsi_macd",
		"triple_ema",
	}, names)
}

func TestRegistry_New(t *testing.T) {
	for _, name := range Names() {
		s, err := New(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, s.Name())
	}
}

func TestRegistry_NewUnknown(t *testing.T) {
	_, err := New("martingale")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available")
	assert.Contains(t, err.Error(), "triple_ema")
}

func TestRegistry_NewReturnsFreshInstances(t *testing.T) {
	a, err := New("triple_ema")
	require.NoError(t, err)
	b, err := New("triple_ema")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	assert.Panics(t, func() {
		Register("triple_ema", func() Strategy { return NewTripleEMA() })
	})
}
