package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradebot/internal/broker"
)

var keyTime = time.Date(2026, 3, 2, 14, 15, 0, 0, time.UTC)

func TestIdempotencyKeyStable(t *testing.T) {
	a := IdempotencyKey("EURUSD", "M15", keyTime, "two_pole_momentum", broker.Long)
	b := IdempotencyKey("EURUSD", "M15", keyTime, "two_pole_momentum", broker.Long)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestIdempotencyKeyDiscriminates(t *testing.T) {
	base := IdempotencyKey("EURUSD", "M15", keyTime, "two_pole_momentum", broker.Long)

	assert.NotEqual(t, base, IdempotencyKey("GBPUSD", "M15", keyTime, "two_pole_momentum", broker.Long))
	assert.NotEqual(t, base, IdempotencyKey("EURUSD", "H1", keyTime, "two_pole_momentum", broker.Long))
	assert.NotEqual(t, base, IdempotencyKey("EURUSD", "M15", keyTime.Add(15*time.Minute), "two_pole_momentum", broker.Long))
	assert.NotEqual(t, base, IdempotencyKey("EURUSD", "M15", keyTime, "range_mean_reversion", broker.Long))
	assert.NotEqual(t, base, IdempotencyKey("EURUSD", "M15", keyTime, "two_pole_momentum", broker.Short))
}

func TestIdempotencyKeyNormalizesZone(t *testing.T) {
	east := keyTime.In(time.FixedZone("UTC+3", 3*3600))
	assert.Equal(t,
		IdempotencyKey("EURUSD", "M15", keyTime, "two_pole_momentum", broker.Long),
		IdempotencyKey("EURUSD", "M15", east, "two_pole_momentum", broker.Long))
}

func TestKeyComment(t *testing.T) {
	key := IdempotencyKey("EURUSD", "M15", keyTime, "two_pole_momentum", broker.Long)
	c := KeyComment(key)
	require.Len(t, c, 15)
	assert.Equal(t, "tb:"+key[:12], c)
}

func TestKeyCommentShortKey(t *testing.T) {
	assert.Equal(t, "tb:abc", KeyComment("abc"))
}
