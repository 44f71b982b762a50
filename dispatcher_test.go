package gate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/0x5487/order-gate/protocol"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExchange struct {
	mu      sync.Mutex
	sent    []OrderRequest
	logons  []Credentials
	logouts []string
	onSend  func(OrderRequest)
}

func (e *fakeExchange) Send(order OrderRequest) {
	e.mu.Lock()
	e.sent = append(e.sent, order)
	hook := e.onSend
	e.mu.Unlock()

	if hook != nil {
		hook(order)
	}
}

func (e *fakeExchange) Logon(creds Credentials) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logons = append(e.logons, creds)
}

func (e *fakeExchange) Logout(username string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logouts = append(e.logouts, username)
}

func (e *fakeExchange) sentIDs() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]int64, 0, len(e.sent))
	for _, o := range e.sent {
		ids = append(ids, o.OrderID)
	}
	return ids
}

func (e *fakeExchange) counts() (logons, logouts int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.logons), len(e.logouts)
}

type dispatcherFixture struct {
	d        *Dispatcher
	clock    *clock.Mock
	exchange *fakeExchange
	logs     *MemoryPublishLog
}

func newDispatcherFixture(t *testing.T, rate int, now time.Time) *dispatcherFixture {
	t.Helper()

	w, err := NewTradingWindow("10:00", "15:30", "UTC")
	require.NoError(t, err)

	mock := clock.NewMock()
	mock.Set(now)

	f := &dispatcherFixture{
		clock:    mock,
		exchange: &fakeExchange{},
		logs:     NewMemoryPublishLog(),
	}

	f.d, err = NewDispatcher(w, rate, f.exchange,
		WithClock(mock),
		WithPublishLog(f.logs),
		WithCredentials(Credentials{Username: "trader", Password: "secret", Account: "ACC-1"}),
	)
	require.NoError(t, err)
	return f
}

func TestNewDispatcher_Configuration(t *testing.T) {
	w, err := NewTradingWindow("10:00", "15:30", "UTC")
	require.NoError(t, err)

	_, err = NewDispatcher(nil, 1, &fakeExchange{})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewDispatcher(w, 1, nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewDispatcher(w, 0, &fakeExchange{})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestDispatcher_LogonLogoutAcrossWindowEdges(t *testing.T) {
	f := newDispatcherFixture(t, 5, at(9, 59))

	f.d.checkSession(f.clock.Now())
	logons, _ := f.exchange.counts()
	assert.Equal(t, 0, logons)

	f.clock.Set(at(10, 0))
	f.d.checkSession(f.clock.Now())
	logons, _ = f.exchange.counts()
	assert.Equal(t, 1, logons)
	assert.True(t, f.d.gate.IsLoggedIn())
	assert.NotEmpty(t, f.d.sessionID)
	assert.Equal(t, "trader", f.exchange.logons[0].Username)

	sessionID := f.d.sessionID

	// a second check inside the window does nothing
	f.clock.Set(at(12, 0))
	f.d.checkSession(f.clock.Now())
	logons, _ = f.exchange.counts()
	assert.Equal(t, 1, logons)

	f.clock.Set(at(15, 31))
	f.d.checkSession(f.clock.Now())
	_, logouts := f.exchange.counts()
	assert.Equal(t, 1, logouts)
	assert.False(t, f.d.gate.IsLoggedIn())
	assert.Empty(t, f.d.sessionID)

	sessionLogs := append(f.logs.ByType(LogTypeLogon), f.logs.ByType(LogTypeLogout)...)
	require.Len(t, sessionLogs, 2)
	for _, log := range sessionLogs {
		assert.Equal(t, sessionID, log.SessionID)
		assert.Equal(t, "trader", log.Username)
	}
}

func TestDispatcher_RejectsWhileInactive(t *testing.T) {
	f := newDispatcherFixture(t, 5, at(9, 0))

	res := f.d.submit(newOrder(1, 100))
	assert.Equal(t, Rejected, res.Status)
	assert.Equal(t, protocol.RejectReasonTradingInactive, res.Reason)

	// inside the window but not yet logged on
	f.clock.Set(at(10, 30))
	res = f.d.submit(newOrder(1, 100))
	assert.Equal(t, protocol.RejectReasonTradingInactive, res.Reason)

	assert.Empty(t, f.exchange.sentIDs())
	rejects := f.logs.ByType(LogTypeReject)
	require.Len(t, rejects, 2)
	assert.Equal(t, protocol.RejectReasonTradingInactive, rejects[0].RejectReason)
}

func TestDispatcher_ValidationBeforeGate(t *testing.T) {
	f := newDispatcherFixture(t, 5, at(9, 0))

	res := f.d.submit(newOrder(1, 0))
	assert.Equal(t, protocol.RejectReasonInvalidPayload, res.Reason)
}

func TestDispatcher_SubmitPublishesLogs(t *testing.T) {
	f := newDispatcherFixture(t, 1, at(10, 0))
	f.d.checkSession(f.clock.Now())

	assert.Equal(t, AcceptedImmediate, f.d.submit(newOrder(1, 100)).Status)
	assert.Equal(t, AcceptedQueued, f.d.submit(newOrder(2, 100)).Status)
	assert.Equal(t, AcceptedQueued, f.d.submit(newOrder(3, 100)).Status)
	assert.Equal(t, Modified, f.d.submit(modifyOrder(2, 105)).Status)
	assert.Equal(t, Cancelled, f.d.submit(cancelOrder(3)).Status)
	assert.Equal(t, Rejected, f.d.submit(cancelOrder(3)).Status)

	assert.Len(t, f.logs.ByType(LogTypeSent), 1)
	assert.Len(t, f.logs.ByType(LogTypeQueued), 2)
	assert.Len(t, f.logs.ByType(LogTypeCancelled), 1)
	assert.Len(t, f.logs.ByType(LogTypeReject), 1)

	modified := f.logs.ByType(LogTypeModified)
	require.Len(t, modified, 1)
	assert.Equal(t, "105", modified[0].Price.String())

	// sequence ids increase with every published log
	var last uint64
	for i := 0; i < f.logs.Count(); i++ {
		log := f.logs.Get(i)
		assert.Greater(t, log.SequenceID, last)
		last = log.SequenceID
		assert.Equal(t, f.d.sessionID, log.SessionID)
	}
}

func TestDispatcher_TickDrains(t *testing.T) {
	f := newDispatcherFixture(t, 2, at(10, 0))
	f.d.checkSession(f.clock.Now())

	for id := int64(1); id <= 5; id++ {
		f.d.submit(newOrder(id, 100))
	}
	assert.Equal(t, []int64{1, 2}, f.exchange.sentIDs())

	f.d.onTick()
	assert.Equal(t, 3, f.d.queue.QueueLength())

	f.clock.Add(time.Second)
	f.d.onTick()
	assert.Equal(t, []int64{1, 2, 3, 4}, f.exchange.sentIDs())
	assert.Equal(t, 1, f.d.queue.QueueLength())

	f.clock.Add(time.Second)
	f.d.onTick()
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, f.exchange.sentIDs())
	assert.Len(t, f.logs.ByType(LogTypeSent), 5)
}

func TestDispatcher_NoDrainWhileInactive(t *testing.T) {
	f := newDispatcherFixture(t, 1, at(15, 29))
	f.d.checkSession(f.clock.Now())

	for id := int64(1); id <= 3; id++ {
		f.d.submit(newOrder(id, 100))
	}

	f.clock.Set(at(15, 31))
	f.d.onTick()

	_, logouts := f.exchange.counts()
	assert.Equal(t, 1, logouts)
	assert.Equal(t, []int64{1}, f.exchange.sentIDs())
	assert.Equal(t, 2, f.d.queue.QueueLength())

	f.clock.Set(at(16, 0))
	f.d.onTick()
	assert.Equal(t, 2, f.d.queue.QueueLength())
}

func TestDispatcher_ReconfirmBeforeSend(t *testing.T) {
	f := newDispatcherFixture(t, 2, at(15, 30))
	f.d.checkSession(f.clock.Now())

	for id := int64(1); id <= 4; id++ {
		f.d.submit(newOrder(id, 100))
	}
	require.Equal(t, 2, f.d.queue.QueueLength())

	f.clock.Add(time.Second)

	// the window closes while order 3 is being sent
	f.exchange.mu.Lock()
	f.exchange.onSend = func(o OrderRequest) {
		if o.OrderID == 3 {
			f.clock.Set(at(15, 31))
		}
	}
	f.exchange.mu.Unlock()

	f.d.onTick()

	assert.Equal(t, []int64{1, 2, 3}, f.exchange.sentIDs())
	assert.Equal(t, 0, f.d.queue.QueueLength())

	rejects := f.logs.ByType(LogTypeReject)
	require.Len(t, rejects, 1)
	assert.Equal(t, int64(4), rejects[0].OrderID)
	assert.Equal(t, protocol.RejectReasonTradingInactive, rejects[0].RejectReason)
}

func TestDispatcher_Clear(t *testing.T) {
	f := newDispatcherFixture(t, 1, at(11, 0))
	f.d.checkSession(f.clock.Now())

	for id := int64(1); id <= 4; id++ {
		f.d.submit(newOrder(id, 100))
	}

	assert.Equal(t, 3, f.d.clear("operator stop"))
	assert.Equal(t, 0, f.d.queue.QueueLength())

	cleared := f.logs.ByType(LogTypeCleared)
	require.Len(t, cleared, 1)
	assert.Equal(t, 3, cleared[0].Removed)
	assert.Equal(t, "operator stop", cleared[0].Message)
}

func TestDispatcher_Reject(t *testing.T) {
	f := newDispatcherFixture(t, 1, at(16, 0))
	go func() {
		_ = f.d.Start()
	}()
	ctx := context.Background()

	badPrice := fmt.Errorf("%w: price %q", ErrValidation, "abc")
	req := OrderRequest{OrderID: 5, SymbolID: 2, Side: Sell, Kind: New}

	// reported with its own reason even outside the window
	res := f.d.Reject(ctx, req, badPrice)
	assert.Equal(t, Rejected, res.Status)
	assert.Equal(t, int64(5), res.OrderID)
	assert.Equal(t, protocol.RejectReasonInvalidPayload, res.Reason)
	assert.ErrorIs(t, res.Err, ErrValidation)

	rejects := f.logs.ByType(LogTypeReject)
	require.Len(t, rejects, 1)
	assert.Equal(t, int64(5), rejects[0].OrderID)
	assert.Equal(t, Sell, rejects[0].Side)
	assert.True(t, rejects[0].SubmittedAt.Equal(at(16, 0)))

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, f.d.Shutdown(shutdownCtx))

	res = f.d.Reject(ctx, req, badPrice)
	assert.Equal(t, protocol.RejectReasonInvalidPayload, res.Reason)
	assert.Len(t, f.logs.ByType(LogTypeReject), 1)
}

func TestDispatcher_Loop(t *testing.T) {
	f := newDispatcherFixture(t, 1, at(10, 0).Add(500*time.Millisecond))
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.d.Start()
	}()

	res := f.d.Submit(ctx, newOrder(1, 100))
	assert.Equal(t, AcceptedImmediate, res.Status)
	res = f.d.Submit(ctx, newOrder(2, 100))
	assert.Equal(t, AcceptedQueued, res.Status)

	pos, err := f.d.QueuePosition(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	_, err = f.d.QueuePosition(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := f.d.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{QueueLength: 1, OrdersThisSecond: 1, RatePerSecond: 1, RemainingCapacity: 0}, stats)

	info, err := f.d.GetSessionState(ctx)
	require.NoError(t, err)
	assert.True(t, info.LoggedIn)
	assert.True(t, info.WithinWindow)
	assert.NotEmpty(t, info.SessionID)
	assert.Equal(t, BoundaryClose, info.NextBoundary.Kind)

	snap, err := f.d.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Orders, 1)
	assert.Equal(t, int64(2), snap.Orders[0].OrderID)
	assert.Equal(t, info.SessionID, snap.SessionID)

	f.clock.Add(time.Second)
	assert.Eventually(t, func() bool {
		return len(f.exchange.sentIDs()) == 2
	}, time.Second, 10*time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, f.d.Shutdown(shutdownCtx))
	require.NoError(t, <-errCh)

	_, logouts := f.exchange.counts()
	assert.Equal(t, 1, logouts)

	res = f.d.Submit(ctx, newOrder(3, 100))
	assert.Equal(t, protocol.RejectReasonShutdown, res.Reason)

	_, err = f.d.Clear(ctx, "late")
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestDispatcher_SubmitTimeout(t *testing.T) {
	f := newDispatcherFixture(t, 1, at(11, 0))

	// the loop is not running, so nothing answers
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := f.d.Submit(ctx, newOrder(1, 100))
	assert.Equal(t, Rejected, res.Status)
	assert.Equal(t, protocol.RejectReasonTimeout, res.Reason)
}
