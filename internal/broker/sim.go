package broker

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

type simSymbol struct {
	meta       SymbolMeta
	basePrice  float64
	volatility float64 // daily volatility as decimal
}

// Sim is an in-process paper broker with deterministic candle generation.
// A fixed seed produces an identical candle history on every run, which the
// decision pipeline relies on in tests. Transient faults and trade-mode
// flips can be injected to exercise the retry and safety paths.
type Sim struct {
	mu        sync.Mutex
	rng       *rand.Rand
	seed      int64
	now       func() time.Time
	symbols   map[string]simSymbol
	order     []string
	positions map[string]Position
	open      []OpenOrder
	tradeMode TradeMode
	balance   float64
	equity    float64
	nextID    int

	failSubmits  int  // next N submissions fail transiently
	disconnected bool // all calls fail with ErrDisconnected
	submitted    int  // total accepted submissions
}

// NewSim builds a simulator over the given symbols. The same seed yields
// the same candles and fills.
func NewSim(seed int64, symbols []SymbolMeta) *Sim {
	s := &Sim{
		rng:       rand.New(rand.NewSource(seed)),
		seed:      seed,
		now:       time.Now,
		symbols:   make(map[string]simSymbol, len(symbols)),
		positions: make(map[string]Position),
		tradeMode: ModeDemo,
		balance:   100_000,
		equity:    100_000,
		nextID:    1,
	}
	for i, m := range symbols {
		s.symbols[m.Name] = simSymbol{
			meta:       m,
			basePrice:  50 + 40*float64(i%7),
			volatility: 0.01 + 0.005*float64(i%5),
		}
		s.order = append(s.order, m.Name)
	}
	return s
}

// DefaultSimSymbols is a small mixed universe for demos and tests.
func DefaultSimSymbols() []SymbolMeta {
	names := []string{"EURUSD", "GBPUSD", "USDJPY", "XAUUSD", "US500", "AAPL", "NVDA", "MSFT"}
	metas := make([]SymbolMeta, 0, len(names))
	for _, n := range names {
		metas = append(metas, SymbolMeta{
			Name:         n,
			Point:        0.0001,
			Digits:       5,
			TradeAllowed: true,
			VolumeMin:    0.01,
			VolumeMax:    100,
			VolumeStep:   0.01,
			TickValue:    1.0,
			TickSize:     0.0001,
			ContractSize: 100_000,
		})
	}
	return metas
}

// SetNow overrides the clock, for tests.
func (s *Sim) SetNow(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = fn
}

// SetTradeMode flips the simulated account mode.
func (s *Sim) SetTradeMode(m TradeMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradeMode = m
}

// FailNextSubmits makes the next n submissions fail with a transient error.
func (s *Sim) FailNextSubmits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSubmits = n
}

// SetDisconnected simulates a transport outage across all calls.
func (s *Sim) SetDisconnected(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = down
}

// SeedOpenOrder registers a working order visible to OpenOrders, for
// reconciliation tests.
func (s *Sim) SeedOpenOrder(o OpenOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = append(s.open, o)
}

// Submitted returns the count of accepted order submissions.
func (s *Sim) Submitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

func (s *Sim) ListSymbols(ctx context.Context) ([]SymbolMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected {
		return nil, ErrDisconnected
	}
	out := make([]SymbolMeta, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.symbols[n].meta)
	}
	return out, nil
}

// Candles synthesizes a deterministic random-walk history ending at the
// last fully closed bar. The per-symbol walk is seeded from the sim seed
// and the symbol name, so histories are stable across calls and runs.
func (s *Sim) Candles(ctx context.Context, symbol, timeframe string, n int) ([]Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected {
		return nil, ErrDisconnected
	}
	sym, ok := s.symbols[symbol]
	if !ok {
		return nil, Fatal("candles", fmt.Errorf("unknown symbol %q", symbol))
	}
	secs := TimeframeSeconds(timeframe)
	if secs == 0 {
		return nil, Fatal("candles", fmt.Errorf("unsupported timeframe %q", timeframe))
	}

	step := time.Duration(secs) * time.Second
	end := s.now().UTC().Truncate(step)
	start := end.Add(-step * time.Duration(n))

	rng := rand.New(rand.NewSource(s.seed ^ int64(hashString(symbol))))
	barVol := sym.volatility / math.Sqrt(24*60*60/float64(secs))
	price := sym.basePrice

	out := make([]Candle, 0, n)
	for t := start; t.Before(end); t = t.Add(step) {
		drift := barVol * rng.NormFloat64()
		o := price
		c := o * (1 + drift)
		h := math.Max(o, c) * (1 + 0.3*barVol*math.Abs(rng.NormFloat64()))
		l := math.Min(o, c) * (1 - 0.3*barVol*math.Abs(rng.NormFloat64()))
		out = append(out, Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			Time:      t,
			Open:      o,
			High:      h,
			Low:       l,
			Close:     c,
			Volume:    1000 + 500*math.Abs(rng.NormFloat64()),
		})
		price = c
	}
	return out, nil
}

func (s *Sim) Quote(ctx context.Context, symbol string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected {
		return Quote{}, ErrDisconnected
	}
	sym, ok := s.symbols[symbol]
	if !ok {
		return Quote{}, Fatal("quote", fmt.Errorf("unknown symbol %q", symbol))
	}
	mid := sym.basePrice
	spread := 2 * sym.meta.Point
	return Quote{
		Symbol:       symbol,
		Bid:          mid - spread/2,
		Ask:          mid + spread/2,
		Time:         s.now().UTC(),
		SpreadPoints: 2,
	}, nil
}

func (s *Sim) AccountInfo(ctx context.Context) (AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected {
		return AccountInfo{}, ErrDisconnected
	}
	return AccountInfo{
		Login:     1000,
		Server:    "sim",
		Currency:  "USD",
		Balance:   s.balance,
		Equity:    s.equity,
		TradeMode: s.tradeMode,
	}, nil
}

func (s *Sim) ListPositions(ctx context.Context) ([]Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected {
		return nil, ErrDisconnected
	}
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out, nil
}

func (s *Sim) OpenOrders(ctx context.Context) ([]OpenOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected {
		return nil, ErrDisconnected
	}
	return append([]OpenOrder(nil), s.open...), nil
}

func (s *Sim) SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected {
		return OrderAck{}, ErrDisconnected
	}
	if s.failSubmits > 0 {
		s.failSubmits--
		return OrderAck{}, Transient("submit_order", fmt.Errorf("simulated requote"))
	}
	sym, ok := s.symbols[req.Symbol]
	if !ok {
		return OrderAck{}, Fatal("submit_order", fmt.Errorf("unknown symbol %q", req.Symbol))
	}
	if req.Volume <= 0 {
		return OrderAck{}, Fatal("submit_order", fmt.Errorf("non-positive volume %v", req.Volume))
	}

	id := fmt.Sprintf("sim-%06d", s.nextID)
	s.nextID++
	s.submitted++

	if req.PositionID != "" {
		delete(s.positions, req.PositionID)
		return OrderAck{OrderID: id, PositionID: req.PositionID, Price: sym.basePrice, Time: s.now().UTC()}, nil
	}

	pos := Position{
		ID:        id,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Volume:    req.Volume,
		PriceOpen: sym.basePrice,
		StopLoss:  req.StopLoss,
		TakeProf:  req.TakeProf,
		OpenedAt:  s.now().UTC(),
		Comment:   req.Comment,
	}
	s.positions[id] = pos
	return OrderAck{OrderID: id, PositionID: id, Price: pos.PriceOpen, Time: pos.OpenedAt}, nil
}

func (s *Sim) Close() error { return nil }

func hashString(s string) uint32 {
	// FNV-1a, inlined to keep the walk seed self-contained.
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
