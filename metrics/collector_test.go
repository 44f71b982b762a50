package metrics

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http/httptest"
	"testing"
	"time"

	gate "github.com/0x5487/order-gate"
	"github.com/0x5487/order-gate/exchange"
	"github.com/0x5487/order-gate/protocol"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

func sentLog(seq uint64, orderID int64, submitted, sent time.Time) *gate.DispatchLog {
	req := gate.OrderRequest{
		OrderID:     orderID,
		SymbolID:    11,
		Side:        gate.Sell,
		Kind:        gate.New,
		Price:       decimal.RequireFromString("101.5"),
		Quantity:    decimal.NewFromInt(3),
		SubmittedAt: submitted,
	}
	return gate.NewSentLog(seq, "sess-1", &req, sent)
}

func TestCollector_SentAndResponse(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewCSVWriter(&buf)
	require.NoError(t, err)
	store, err := OpenMemAuditStore()
	require.NoError(t, err)
	defer store.Close()

	c := NewCollector(WithCSV(w), WithAuditStore(store))

	c.Publish(sentLog(1, 42, base, base.Add(200*time.Millisecond)))
	assert.Equal(t, 1, c.Pending())
	assert.Equal(t, float64(1), testutil.ToFloat64(c.sent))

	c.OnResponse(exchange.Response{OrderID: 42, Status: exchange.StatusAck, ReceivedAt: base.Add(350 * time.Millisecond)})
	assert.Equal(t, 0, c.Pending())

	rec, err := store.Get(42)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "ack", rec.Status)
	assert.Equal(t, "sell", rec.Side)
	assert.Equal(t, "101.5", rec.Price)
	assert.InDelta(t, 350.0, rec.LatencyMs, 0.001)
	assert.True(t, rec.Responded())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "sent", rows[1][0])
	assert.Equal(t, "42", rows[1][1])
	assert.Equal(t, "200.000", rows[1][8])
	assert.Equal(t, "ack", rows[2][0])
	assert.Equal(t, "350.000", rows[2][8])
}

func TestCollector_RejectsAndQueued(t *testing.T) {
	c := NewCollector()
	req := gate.OrderRequest{OrderID: 1, SymbolID: 1, Side: gate.Buy, Kind: gate.New}

	c.Publish(
		gate.NewQueuedLog(1, "", &req, base),
		gate.NewRejectLog(2, "", &req, gate.ErrTradingInactive, base),
		gate.NewRejectLog(3, "", &req, gate.ErrNotFound, base),
		gate.NewRejectLog(4, "", &req, gate.ErrTradingInactive, base),
	)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.queued))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.rejected.WithLabelValues(string(protocol.RejectReasonTradingInactive))))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.rejected.WithLabelValues(string(protocol.RejectReasonOrderNotFound))))
	assert.Equal(t, 0, c.Pending())
}

func TestCollector_UnknownResponse(t *testing.T) {
	c := NewCollector()
	c.OnResponse(exchange.Response{OrderID: 9, Status: exchange.StatusFill, ReceivedAt: base})
	assert.Equal(t, float64(1), testutil.ToFloat64(c.responses.WithLabelValues("fill")))
	assert.Equal(t, 0, c.Pending())
}

func TestCollector_StaleDetection(t *testing.T) {
	c := NewCollector(WithStaleAfter(2 * time.Second))

	c.Publish(sentLog(1, 1, base, base))
	c.Publish(sentLog(2, 2, base, base.Add(time.Second)))
	c.Publish(sentLog(3, 3, base, base.Add(3*time.Second)))

	stale := c.Stale(base.Add(3 * time.Second))
	require.Len(t, stale, 2)
	assert.Equal(t, int64(1), stale[0].OrderID)
	assert.Equal(t, int64(2), stale[1].OrderID)

	c.OnResponse(exchange.Response{OrderID: 1, Status: exchange.StatusAck, ReceivedAt: base.Add(3 * time.Second)})
	stale = c.Stale(base.Add(3 * time.Second))
	require.Len(t, stale, 1)
	assert.Equal(t, int64(2), stale[0].OrderID)

	assert.Equal(t, 1, c.sweep(base.Add(3*time.Second)))
	// already reported
	assert.Equal(t, 0, c.sweep(base.Add(4*time.Second)))
	assert.Equal(t, 1, c.sweep(base.Add(10*time.Second)))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.stale))
}

func TestCollector_WatchStale(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(base)

	c := NewCollector(WithStaleAfter(time.Second))
	c.Publish(sentLog(1, 1, base, base))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.WatchStale(ctx, mock, 500*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		mock.Add(500 * time.Millisecond)
		return testutil.ToFloat64(c.stale) == 1
	}, time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(WithQueueLength(func() float64 { return 7 }))
	c.Publish(sentLog(1, 1, base, base))

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	body := rr.Body.String()
	assert.Contains(t, body, "gate_orders_sent_total 1")
	assert.Contains(t, body, "gate_queue_length 7")
}
