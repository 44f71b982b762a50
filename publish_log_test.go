package gate

import (
	"errors"
	"testing"
	"time"

	"github.com/0x5487/order-gate/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPublishLog_StoresClones(t *testing.T) {
	m := NewMemoryPublishLog()
	req := newOrder(5, 100)
	now := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

	log := NewQueuedLog(1, "s1", &req, now)
	m.Publish(log)
	releaseDispatchLog(log)

	require.Equal(t, 1, m.Count())
	stored := m.Get(0)
	assert.Equal(t, int64(5), stored.OrderID)
	assert.Equal(t, LogTypeQueued, stored.Type)
	assert.Equal(t, "s1", stored.SessionID)

	assert.Nil(t, m.Get(1))
	assert.Nil(t, m.Get(-1))
}

func TestMultiPublishLog(t *testing.T) {
	a := NewMemoryPublishLog()
	b := NewMemoryPublishLog()
	multi := MultiPublishLog{a, b, NewDiscardPublishLog()}

	now := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	multi.Publish(
		NewSessionLog(1, LogTypeLogon, "s1", "trader", now),
		NewClearedLog(2, "s1", 3, "stop", now),
	)

	assert.Equal(t, 2, a.Count())
	assert.Equal(t, 2, b.Count())
	assert.Len(t, a.ByType(LogTypeCleared), 1)
}

func TestNewRejectLog(t *testing.T) {
	req := newOrder(9, 100)
	now := time.Date(2025, 1, 6, 10, 0, 0, 0, time.FixedZone("JST", 9*3600))

	log := NewRejectLog(3, "", &req, errors.Join(ErrNotFound), now)
	assert.Equal(t, protocol.RejectReasonOrderNotFound, log.RejectReason)
	assert.NotEmpty(t, log.Message)
	assert.Equal(t, time.UTC, log.CreatedAt.Location())
	assert.True(t, log.SubmittedAt.Equal(req.SubmittedAt))
}
