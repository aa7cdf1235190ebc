package signal

import (
	"github.com/quantfold/tradebot/internal/broker"
)

// Default indicator parameters, matching the strategy contracts.
const (
	ATRPeriod    = 14
	ADXPeriod    = 14
	RSIPeriod    = 14
	TrendEMA     = 50
	OscPeriod    = 20
	OscSignalPer = 9

	// MinBars is the shortest history the feature set is meaningful on.
	// Below it everything reads as not ready and the composer emits no
	// decision for the symbol.
	MinBars = TrendEMA + OscSignalPer
)

// Features is the per-symbol snapshot the regime selector, ranker and
// strategies consume. Values are from the last closed candle.
type Features struct {
	Symbol string
	Close  float64

	ATR    float64
	ATRPct float64

	ADX     float64
	PlusDI  float64
	MinusDI float64

	RSI      float64
	EMASlope float64

	Osc    float64
	Signal float64
	Hist   float64
	Cross  int

	Ret20 float64
	Ready bool
}

// ComputeFeatures derives the feature snapshot from an ascending candle
// history. Short or empty input degrades to Ready=false, never an error.
func ComputeFeatures(symbol string, candles []broker.Candle) Features {
	f := Features{Symbol: symbol}
	n := len(candles)
	if n == 0 {
		return f
	}

	high := make([]float64, n)
	low := make([]float64, n)
	close := make([]float64, n)
	for i, c := range candles {
		high[i], low[i], close[i] = c.High, c.Low, c.Close
	}
	last := n - 1

	f.Close = close[last]

	atr := ATR(high, low, close, ATRPeriod)
	f.ATR = atr[last]
	if f.Close > 0 {
		f.ATRPct = f.ATR / f.Close
	}

	dmi := ComputeDMI(high, low, close, ADXPeriod)
	f.ADX = dmi.ADX[last]
	f.PlusDI = dmi.PlusDI[last]
	f.MinusDI = dmi.MinusDI[last]

	f.RSI = RSI(close, RSIPeriod)[last]

	ema := EMA(close, TrendEMA)
	if last > 0 {
		f.EMASlope = ema[last] - ema[last-1]
	}

	osc := TwoPoleOscillator(close, OscPeriod, OscSignalPer)
	f.Osc = osc.Osc[last]
	f.Signal = osc.Signal[last]
	f.Hist = osc.Hist[last]
	f.Cross = osc.Cross[last]

	if n > 20 && close[last-20] != 0 {
		f.Ret20 = close[last]/close[last-20] - 1
	}

	f.Ready = n >= MinBars
	return f
}

// Returns computes simple close-to-close returns over the trailing window,
// used by the correlation filter. Shorter histories return what exists.
func Returns(candles []broker.Candle, window int) []float64 {
	n := len(candles)
	if n < 2 {
		return nil
	}
	start := n - window
	if start < 1 {
		start = 1
	}
	out := make([]float64, 0, n-start)
	for i := start; i < n; i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, candles[i].Close/prev-1)
	}
	return out
}
