package broker

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Broker with a shared request budget for the data
// fetch paths. Order submission and account probes bypass the limiter:
// delaying a safety recheck or a retry for the sake of a quota helps
// nothing.
type RateLimited struct {
	Broker
	limiter *rate.Limiter
}

// NewRateLimited allows rps requests per second with the given burst.
func NewRateLimited(b Broker, rps float64, burst int) *RateLimited {
	return &RateLimited{
		Broker:  b,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) Candles(ctx context.Context, symbol, timeframe string, n int) ([]Candle, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, Transient("candles", err)
	}
	return r.Broker.Candles(ctx, symbol, timeframe, n)
}

func (r *RateLimited) Quote(ctx context.Context, symbol string) (Quote, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Quote{}, Transient("quote", err)
	}
	return r.Broker.Quote(ctx, symbol)
}

func (r *RateLimited) ListSymbols(ctx context.Context) ([]SymbolMeta, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, Transient("list_symbols", err)
	}
	return r.Broker.ListSymbols(ctx)
}
