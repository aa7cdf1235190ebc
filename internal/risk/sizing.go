package risk

import (
	"math"

	"github.com/quantfold/tradebot/internal/broker"
)

// StopTake places ATR-multiple stop-loss and take-profit around an entry
// price. A non-positive ATR yields zeros, which the caller must treat as
// "cannot size".
func StopTake(side broker.Side, entry, atr, stopMult, takeMult float64) (sl, tp float64) {
	if atr <= 0 {
		return 0, 0
	}
	stopDist := atr * stopMult
	takeDist := atr * takeMult
	if side == broker.Long {
		return entry - stopDist, entry + takeDist
	}
	return entry + stopDist, entry - takeDist
}

// Volume sizes an entry so that hitting the stop loses about
// equity*riskPerTrade, using the contract tick metadata:
//
//	moneyPerPointPerLot = tickValue * point / tickSize
//	lots = equity*riskPerTrade / (stopPoints * moneyPerPointPerLot)
//
// The result is clamped to the contract's min/max and rounded down to the
// volume step. Zero and a reason are returned when sizing is impossible.
func Volume(equity, riskPerTrade, entry, sl float64, meta broker.SymbolMeta) (float64, string) {
	if equity <= 0 {
		return 0, "equity unavailable"
	}
	if meta.Point <= 0 || meta.TickValue <= 0 || meta.TickSize <= 0 {
		return 0, "missing tick metadata"
	}
	stopPoints := math.Abs(entry-sl) / meta.Point
	if stopPoints <= 0 {
		return 0, "invalid stop distance"
	}

	moneyPerPoint := meta.TickValue * meta.Point / meta.TickSize
	if moneyPerPoint <= 0 {
		return 0, "invalid tick metadata"
	}

	vol := equity * riskPerTrade / (stopPoints * moneyPerPoint)

	if meta.VolumeMin > 0 && vol < meta.VolumeMin {
		vol = meta.VolumeMin
	}
	if meta.VolumeMax > 0 && vol > meta.VolumeMax {
		vol = meta.VolumeMax
	}
	if meta.VolumeStep > 0 {
		vol = math.Floor(vol/meta.VolumeStep) * meta.VolumeStep
		if meta.VolumeMin > 0 && vol < meta.VolumeMin {
			vol = meta.VolumeMin
		}
	}
	if vol <= 0 {
		return 0, "computed volume <= 0"
	}
	return vol, "risk sized"
}
