// Package indicators implements the price statistics used by the signal
// evaluators and the advisory digest. Series are ordered oldest first.
package indicators

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SMA returns the arithmetic mean of the last window values. ok is false
// when fewer than window values are available.
func SMA(prices []float64, window int) (float64, bool) {
	if window <= 0 || len(prices) < window {
		return 0, false
	}
	return stat.Mean(prices[len(prices)-window:], nil), true
}

// TailMean averages the last window values, or all of them when fewer exist.
func TailMean(prices []float64, window int) (float64, bool) {
	if len(prices) == 0 || window <= 0 {
		return 0, false
	}
	if len(prices) > window {
		prices = prices[len(prices)-window:]
	}
	return stat.Mean(prices, nil), true
}

// CoefficientOfVariation returns population stdev / mean. ok is false for an
// empty series or a zero mean.
func CoefficientOfVariation(prices []float64) (float64, bool) {
	if len(prices) == 0 {
		return 0, false
	}
	mean, std := stat.PopMeanStdDev(prices, nil)
	if mean == 0 {
		return 0, false
	}
	return std / mean, true
}

// Extremes returns the high and low of the last window values.
func Extremes(prices []float64, window int) (high, low float64, ok bool) {
	if len(prices) == 0 || window <= 0 {
		return 0, 0, false
	}
	if len(prices) > window {
		prices = prices[len(prices)-window:]
	}
	return floats.Max(prices), floats.Min(prices), true
}

// Change returns the fractional move from the value lag steps back to the
// last value.
func Change(prices []float64, lag int) (float64, bool) {
	if lag <= 0 || len(prices) <= lag {
		return 0, false
	}
	prev := prices[len(prices)-1-lag]
	if prev == 0 {
		return 0, false
	}
	return (prices[len(prices)-1] - prev) / prev, true
}

// Last returns the final non-NaN value in series.
func Last(series []float64) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) {
			return series[i], true
		}
	}
	return 0, false
}

// EMA returns the exponential moving average series. It is seeded with the
// mean of the first fully valid window; entries before the seed are NaN and
// later NaN inputs carry the previous value forward.
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) == 0 {
		return []float64{}
	}
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = math.NaN()
	}
	seedAt := firstValidWindow(prices, period)
	if seedAt < 0 {
		return out
	}
	out[seedAt] = stat.Mean(prices[seedAt-period+1:seedAt+1], nil)
	k := 2.0 / float64(period+1)
	for i := seedAt + 1; i < len(prices); i++ {
		if math.IsNaN(prices[i]) {
			out[i] = out[i-1]
			continue
		}
		out[i] = out[i-1] + k*(prices[i]-out[i-1])
	}
	return out
}

func firstValidWindow(prices []float64, period int) int {
	run := 0
	for i, p := range prices {
		if math.IsNaN(p) {
			run = 0
			continue
		}
		run++
		if run >= period {
			return i
		}
	}
	return -1
}

// MACD returns the 12/26 MACD line, its 9 period signal and the histogram.
func MACD(prices []float64) (macd, signal, hist []float64) {
	if len(prices) == 0 {
		return []float64{}, []float64{}, []float64{}
	}
	fast, slow := EMA(prices, 12), EMA(prices, 26)
	macd = make([]float64, len(prices))
	for i := range prices {
		macd[i] = fast[i] - slow[i]
	}
	signal = EMA(macd, 9)
	hist = make([]float64, len(prices))
	for i := range hist {
		hist[i] = macd[i] - signal[i]
	}
	return macd, signal, hist
}

// RSI computes Wilder's relative strength index.
func RSI(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) == 0 {
		return []float64{}
	}
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(prices) <= period {
		return out
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		g, l := gainLoss(prices[i] - prices[i-1])
		avgGain += g
		avgLoss += l
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	n := float64(period)
	for i := period + 1; i < len(prices); i++ {
		g, l := gainLoss(prices[i] - prices[i-1])
		avgGain = (avgGain*(n-1) + g) / n
		avgLoss = (avgLoss*(n-1) + l) / n
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func gainLoss(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50
	case avgLoss == 0:
		return 100
	case avgGain == 0:
		return 0
	}
	return 100 - 100/(1+avgGain/avgLoss)
}
