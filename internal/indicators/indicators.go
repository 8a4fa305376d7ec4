// Package indicators computes indicator series over OHLCV windows. Every
// function is pure: output length always equals input length, with NaN
// marking entries that do not have enough history yet. Callers must treat
// NaN as not-ready; comparisons against NaN are false, so decision rules
// degrade to no-signal on insufficient history.
package indicators

import "math"

// NotReady is the sentinel for indices without enough history.
var NotReady = math.NaN()

// Ready reports whether an indicator value is usable.
func Ready(v float64) bool {
	return !math.IsNaN(v)
}

func nanSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = NotReady
	}
	return s
}

// SMA returns the simple moving average of values over period.
func SMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average with smoothing 2/(period+1).
// Early entries use the weighted mean of the history seen so far, so the
// series is defined from the first index.
func EMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}

	alpha := 2.0 / (float64(period) + 1.0)
	decay := 1.0 - alpha
	var num, den float64
	for i, v := range values {
		num = v + decay*num
		den = 1.0 + decay*den
		out[i] = num / den
	}
	return out
}

// RSI returns the relative strength index with Wilder smoothing of average
// gains and losses. Defined from index period onward.
func RSI(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		var gain, loss float64
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line (fast EMA minus slow EMA), its signal-line EMA
// and the histogram (line minus signal).
func MACD(values []float64, fastPeriod, slowPeriod, signalPeriod int) (macdLine, signalLine, histogram []float64) {
	fast := EMA(values, fastPeriod)
	slow := EMA(values, slowPeriod)

	macdLine = make([]float64, len(values))
	for i := range values {
		macdLine[i] = fast[i] - slow[i]
	}

	signalLine = EMA(macdLine, signalPeriod)

	histogram = make([]float64, len(values))
	for i := range values {
		histogram[i] = macdLine[i] - signalLine[i]
	}
	return macdLine, signalLine, histogram
}

// Stochastic returns %K over the rolling high/low range and %D as the
// moving average of %K. A flat range leaves %K not-ready at that index.
func Stochastic(high, low, closes []float64, kPeriod, dPeriod int) (k, d []float64) {
	n := len(closes)
	k = nanSeries(n)
	d = nanSeries(n)
	if kPeriod <= 0 || dPeriod <= 0 || n < kPeriod {
		return k, d
	}

	for i := kPeriod - 1; i < n; i++ {
		hh := high[i-kPeriod+1]
		ll := low[i-kPeriod+1]
		for j := i - kPeriod + 2; j <= i; j++ {
			if high[j] > hh {
				hh = high[j]
			}
			if low[j] < ll {
				ll = low[j]
			}
		}
		if hh == ll {
			continue
		}
		k[i] = 100 * (closes[i] - ll) / (hh - ll)
	}

	// %D windows that still contain not-ready %K entries stay not-ready.
	for i := dPeriod - 1; i < n; i++ {
		var sum float64
		ready := true
		for j := i - dPeriod + 1; j <= i; j++ {
			if !Ready(k[j]) {
				ready = false
				break
			}
			sum += k[j]
		}
		if ready {
			d[i] = sum / float64(dPeriod)
		}
	}
	return k, d
}

// Bollinger returns the upper, middle and lower bands: an SMA middle with
// bands offset by stdDevMult sample standard deviations.
func Bollinger(values []float64, period int, stdDevMult float64) (upper, middle, lower []float64) {
	n := len(values)
	middle = SMA(values, period)
	upper = nanSeries(n)
	lower = nanSeries(n)
	if period < 2 || n < period {
		return upper, middle, lower
	}

	for i := period - 1; i < n; i++ {
		m := middle[i]
		var ss float64
		for j := i - period + 1; j <= i; j++ {
			dv := values[j] - m
			ss += dv * dv
		}
		sd := math.Sqrt(ss / float64(period-1))
		upper[i] = m + stdDevMult*sd
		lower[i] = m - stdDevMult*sd
	}
	return upper, middle, lower
}

// TrueRange returns the per-candle true range. The first entry falls back
// to high minus low since there is no previous close.
func TrueRange(high, low, closes []float64) []float64 {
	tr := make([]float64, len(closes))
	for i := range closes {
		if i == 0 {
			tr[i] = high[i] - low[i]
			continue
		}
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - closes[i-1])
		lc := math.Abs(low[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// ATR returns the average true range as a rolling mean of the true range.
func ATR(high, low, closes []float64, period int) []float64 {
	return SMA(TrueRange(high, low, closes), period)
}

// Highest returns the rolling maximum over period, inclusive of the
// current index.
func Highest(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		max := values[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if values[j] > max {
				max = values[j]
			}
		}
		out[i] = max
	}
	return out
}

// Lowest returns the rolling minimum over period, inclusive of the
// current index.
func Lowest(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		min := values[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if values[j] < min {
				min = values[j]
			}
		}
		out[i] = min
	}
	return out
}

// CrossAbove reports whether a crossed strictly above b between index-1
// and index. Not-ready values on either side never cross.
func CrossAbove(a, b []float64, index int) bool {
	if index < 1 || index >= len(a) || index >= len(b) {
		return false
	}
	return a[index] > b[index] && a[index-1] < b[index-1]
}

// CrossBelow reports whether a crossed strictly below b between index-1
// and index.
func CrossBelow(a, b []float64, index int) bool {
	if index < 1 || index >= len(a) || index >= len(b) {
		return false
	}
	return a[index] < b[index] && a[index-1] > b[index-1]
}
