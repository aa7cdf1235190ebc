package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/quantfold/tradebot/internal/broker"
)

// IdempotencyKey derives the deterministic identity of a logical decision:
// symbol, timeframe, the candle-close bucket it was taken on, the strategy
// and the side. Target size is deliberately excluded: two decisions that
// differ only in size are the same logical order, and the second must be
// dropped as a duplicate rather than merged.
func IdempotencyKey(symbol, timeframe string, candleClose time.Time, strategyID string, side broker.Side) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%s",
		symbol, timeframe, candleClose.UTC().Format(time.RFC3339), strategyID, side)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

// KeyComment renders the broker order comment carrying the key prefix,
// which reconciliation matches against after a restart.
func KeyComment(key string) string {
	if len(key) > 12 {
		key = key[:12]
	}
	return "tb:" + key
}
