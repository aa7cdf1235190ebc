package broker

import (
	"context"
	"time"
)

// Side is the direction of a position or order.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
	Flat  Side = "flat"
)

// Opposite returns the closing side for a position side.
func (s Side) Opposite() Side {
	switch s {
	case Long:
		return Short
	case Short:
		return Long
	default:
		return Flat
	}
}

// TradeMode classifies the account the session is attached to.
// Order submission is only ever allowed against Demo or Contest accounts.
type TradeMode string

const (
	ModeDemo    TradeMode = "demo"
	ModeContest TradeMode = "contest"
	ModeReal    TradeMode = "real"
	ModeUnknown TradeMode = "unknown"
)

// Paper reports whether the mode is safe for automated submission.
func (m TradeMode) Paper() bool {
	return m == ModeDemo || m == ModeContest
}

// Candle is one OHLCV bar. Time is the bar open time in UTC.
// Candles are immutable once produced and ordered ascending per symbol.
type Candle struct {
	Symbol    string
	Timeframe string
	Time      time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// CloseTime returns the bar close time in UTC.
func (c Candle) CloseTime() time.Time {
	return c.Time.Add(time.Duration(TimeframeSeconds(c.Timeframe)) * time.Second)
}

// Quote is a top-of-book snapshot.
type Quote struct {
	Symbol       string
	Bid          float64
	Ask          float64
	Time         time.Time
	SpreadPoints float64
}

// SymbolMeta carries the static contract metadata needed for sizing
// and liquidity filtering.
type SymbolMeta struct {
	Name         string
	Description  string
	Point        float64
	Digits       int
	TradeAllowed bool
	VolumeMin    float64
	VolumeMax    float64
	VolumeStep   float64
	TickValue    float64
	TickSize     float64
	ContractSize float64
}

// AccountInfo is the session account state.
type AccountInfo struct {
	Login     int64
	Server    string
	Currency  string
	Balance   float64
	Equity    float64
	Margin    float64
	TradeMode TradeMode
}

// Position is an open position held at the broker.
type Position struct {
	ID        string
	Symbol    string
	Side      Side
	Volume    float64
	PriceOpen float64
	StopLoss  float64
	TakeProf  float64
	OpenedAt  time.Time
	Profit    float64
	Comment   string
}

// OrderRequest is a single order submission. Comment carries a prefix of
// the idempotency key so open orders can be reconciled after a restart.
type OrderRequest struct {
	Symbol         string
	Side           Side
	Volume         float64
	StopLoss       float64
	TakeProf       float64
	Comment        string
	IdempotencyKey string
	// PositionID, when set, closes that position instead of opening a new one.
	PositionID string
}

// OrderAck is the broker acknowledgement of an accepted order.
type OrderAck struct {
	OrderID    string
	PositionID string
	Price      float64
	Time       time.Time
}

// OpenOrder is a working order reported by the broker, used only for
// startup reconciliation.
type OpenOrder struct {
	OrderID string
	Symbol  string
	Comment string
}

// Broker is the connectivity boundary. Implementations own transport
// details; classification of failures into the Transient/Fatal taxonomy
// is part of the contract.
type Broker interface {
	ListSymbols(ctx context.Context) ([]SymbolMeta, error)
	Candles(ctx context.Context, symbol, timeframe string, n int) ([]Candle, error)
	Quote(ctx context.Context, symbol string) (Quote, error)
	AccountInfo(ctx context.Context) (AccountInfo, error)
	ListPositions(ctx context.Context) ([]Position, error)
	OpenOrders(ctx context.Context) ([]OpenOrder, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
	Close() error
}
