package gate

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

const (
	defaultTickInterval         = 100 * time.Millisecond
	defaultSessionCheckInterval = time.Second
	defaultCommandBuffer        = 32768
)

// Exchange is the outbound side of the gate. Calls are made only from the
// dispatcher goroutine and are assumed not to fail.
type Exchange interface {
	Send(order OrderRequest)
	Logon(creds Credentials)
	Logout(username string)
}

// commandType identifies a request served by the dispatcher loop.
type commandType int

const (
	cmdSubmit commandType = iota
	cmdGetStats
	cmdGetSession
	cmdSnapshot
	cmdQueuePosition
	cmdClear
	cmdReject
)

// command is the unit sent over the dispatcher channel.
type command struct {
	Type    commandType
	Payload any
	Resp    chan any
}

type positionResult struct {
	pos int
	err error
}

type rejectRequest struct {
	req OrderRequest
	err error
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) DispatcherOption {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

// WithTickInterval sets how often the queue is drained.
func WithTickInterval(interval time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.tickInterval = interval
		}
	}
}

// WithSessionCheckInterval sets how often the window is re-evaluated without order traffic.
func WithSessionCheckInterval(interval time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.sessionCheckInterval = interval
		}
	}
}

// WithPublishLog sets the dispatch log collaborator.
func WithPublishLog(p PublishLog) DispatcherOption {
	return func(d *Dispatcher) {
		if p != nil {
			d.publishLog = p
		}
	}
}

// WithCredentials sets the credentials handed to the exchange on logon.
func WithCredentials(creds Credentials) DispatcherOption {
	return func(d *Dispatcher) {
		d.credentials = creds
	}
}

// Dispatcher owns the admission queue and the session gate.
// All state is touched only by the goroutine running Start.
type Dispatcher struct {
	isShutdown           atomic.Bool
	seqID                atomic.Uint64
	queue                *AdmissionQueue
	gate                 *SessionGate
	exchange             Exchange
	publishLog           PublishLog
	clock                clock.Clock
	credentials          Credentials
	sessionID            string
	tickInterval         time.Duration
	sessionCheckInterval time.Duration
	cmdChan              chan command
	done                 chan struct{}
	shutdownComplete     chan struct{}
}

// NewDispatcher creates a dispatcher for one trading window and exchange.
func NewDispatcher(window *TradingWindow, ratePerSecond int, exchange Exchange, opts ...DispatcherOption) (*Dispatcher, error) {
	if window == nil {
		return nil, fmt.Errorf("%w: trading window is required", ErrConfiguration)
	}
	if exchange == nil {
		return nil, fmt.Errorf("%w: exchange is required", ErrConfiguration)
	}

	d := &Dispatcher{
		gate:                 NewSessionGate(window),
		exchange:             exchange,
		publishLog:           NewDiscardPublishLog(),
		clock:                clock.New(),
		tickInterval:         defaultTickInterval,
		sessionCheckInterval: defaultSessionCheckInterval,
		cmdChan:              make(chan command, defaultCommandBuffer),
		done:                 make(chan struct{}),
		shutdownComplete:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	queue, err := NewAdmissionQueue(ratePerSecond, d.forward)
	if err != nil {
		return nil, err
	}
	d.queue = queue

	return d, nil
}

// Submit hands one request to the dispatcher loop and waits for its outcome.
func (d *Dispatcher) Submit(ctx context.Context, req OrderRequest) AdmissionResult {
	if d.isShutdown.Load() {
		return rejectResult(req.OrderID, ErrShutdown)
	}

	res, err := d.request(ctx, cmdSubmit, req)
	if err != nil {
		return rejectResult(req.OrderID, err)
	}
	return res.(AdmissionResult)
}

// GetStats returns the rate limiter view.
func (d *Dispatcher) GetStats(ctx context.Context) (Stats, error) {
	res, err := d.request(ctx, cmdGetStats, nil)
	if err != nil {
		return Stats{}, err
	}
	return res.(Stats), nil
}

// GetSessionState returns the gate state, the session id and the next window boundary.
func (d *Dispatcher) GetSessionState(ctx context.Context) (SessionInfo, error) {
	res, err := d.request(ctx, cmdGetSession, nil)
	if err != nil {
		return SessionInfo{}, err
	}
	return res.(SessionInfo), nil
}

// Snapshot returns a copy of the queue.
func (d *Dispatcher) Snapshot(ctx context.Context) (*QueueSnapshot, error) {
	res, err := d.request(ctx, cmdSnapshot, nil)
	if err != nil {
		return nil, err
	}
	return res.(*QueueSnapshot), nil
}

// QueuePosition returns the zero-based send position of a queued order.
func (d *Dispatcher) QueuePosition(ctx context.Context, orderID int64) (int, error) {
	res, err := d.request(ctx, cmdQueuePosition, orderID)
	if err != nil {
		return -1, err
	}
	r := res.(positionResult)
	return r.pos, r.err
}

// Clear drops every queued order without sending and returns how many were removed.
func (d *Dispatcher) Clear(ctx context.Context, reason string) (int, error) {
	if d.isShutdown.Load() {
		return 0, ErrShutdown
	}

	res, err := d.request(ctx, cmdClear, reason)
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

// Reject publishes a rejection for a request that failed before it could be submitted,
// such as an undecodable price. The result carries err whether or not the loop served it.
func (d *Dispatcher) Reject(ctx context.Context, req OrderRequest, err error) AdmissionResult {
	if d.isShutdown.Load() {
		return rejectResult(req.OrderID, err)
	}

	res, reqErr := d.request(ctx, cmdReject, rejectRequest{req: req, err: err})
	if reqErr != nil {
		return rejectResult(req.OrderID, err)
	}
	return res.(AdmissionResult)
}

func (d *Dispatcher) request(ctx context.Context, typ commandType, payload any) (any, error) {
	respChan := make(chan any, 1)

	select {
	case d.cmdChan <- command{Type: typ, Payload: payload, Resp: respChan}:
	case <-d.done:
		return nil, ErrShutdown
	case <-ctx.Done():
		return nil, ErrTimeout
	}

	select {
	case res := <-respChan:
		return res, nil
	case <-d.shutdownComplete:
		// the loop may have answered just before closing
		select {
		case res := <-respChan:
			return res, nil
		default:
			return nil, ErrShutdown
		}
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

// Start runs the dispatcher loop. It returns nil after Shutdown once pending commands
// are served and the session is closed.
func (d *Dispatcher) Start() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	tick := d.clock.Ticker(d.tickInterval)
	defer tick.Stop()
	sessionTick := d.clock.Ticker(d.sessionCheckInterval)
	defer sessionTick.Stop()

	logger.Info("dispatcher started",
		zap.String("window", d.gate.Window().String()),
		zap.Int("rate_per_second", d.queue.counter.limit),
		zap.Duration("tick_interval", d.tickInterval))

	// pick up a window that is already open
	d.checkSession(d.clock.Now())

	for {
		select {
		case <-d.done:
			return d.drain()
		case cmd := <-d.cmdChan:
			d.handle(cmd)
		case <-tick.C:
			d.onTick()
		case <-sessionTick.C:
			d.checkSession(d.clock.Now())
		}
	}
}

// Shutdown stops intake and waits for the loop to finish.
// Returns ctx.Err() if the context ends first.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if d.isShutdown.CompareAndSwap(false, true) {
		close(d.done)
	}

	select {
	case <-d.shutdownComplete:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain serves commands that were already accepted into the channel, then logs out.
func (d *Dispatcher) drain() error {
	defer close(d.shutdownComplete)

	for {
		select {
		case cmd := <-d.cmdChan:
			d.handle(cmd)
		default:
			if d.gate.IsLoggedIn() {
				d.logout(d.clock.Now())
			}
			logger.Info("dispatcher stopped", zap.Int("queue_length", d.queue.QueueLength()))
			return nil
		}
	}
}

func (d *Dispatcher) handle(cmd command) {
	var result any

	switch cmd.Type {
	case cmdSubmit:
		req, ok := cmd.Payload.(OrderRequest)
		if !ok {
			result = rejectResult(0, fmt.Errorf("%w: unexpected payload %T", ErrValidation, cmd.Payload))
			break
		}
		result = d.submit(req)
	case cmdGetStats:
		result = d.queue.Stats(d.clock.Now())
	case cmdGetSession:
		now := d.clock.Now()
		result = SessionInfo{
			SessionState: d.gate.Evaluate(now),
			SessionID:    d.sessionID,
			NextBoundary: d.gate.Window().NextBoundary(now),
		}
	case cmdSnapshot:
		result = d.createSnapshot()
	case cmdQueuePosition:
		orderID, _ := cmd.Payload.(int64)
		pos, err := d.queue.QueuePosition(orderID)
		result = positionResult{pos: pos, err: err}
	case cmdClear:
		reason, _ := cmd.Payload.(string)
		result = d.clear(reason)
	case cmdReject:
		r, _ := cmd.Payload.(rejectRequest)
		now := d.clock.Now()
		if r.req.SubmittedAt.IsZero() {
			r.req.SubmittedAt = now
		}
		result = d.reject(&r.req, r.err, now)
	}

	if cmd.Resp != nil {
		select {
		case cmd.Resp <- result:
		default:
		}
	}
}

func (d *Dispatcher) submit(req OrderRequest) AdmissionResult {
	now := d.clock.Now()
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = now
	}

	if err := req.Validate(); err != nil {
		return d.reject(&req, err, now)
	}

	if !d.gate.IsTradingActive(now) {
		return d.reject(&req, ErrTradingInactive, now)
	}

	res := d.queue.Submit(req, now)

	switch res.Status {
	case AcceptedQueued:
		d.publish(NewQueuedLog(d.nextSeqID(), d.sessionID, &req, now))
	case Modified:
		d.publish(NewModifiedLog(d.nextSeqID(), d.sessionID, &req, now))
	case Cancelled:
		d.publish(NewCancelledLog(d.nextSeqID(), d.sessionID, &req, now))
	case Rejected:
		d.publish(NewRejectLog(d.nextSeqID(), d.sessionID, &req, res.Err, now))
		logger.Debug("order rejected",
			zap.Int64("order_id", req.OrderID),
			zap.String("reason", string(res.Reason)),
			zap.Error(res.Err))
	case AcceptedImmediate:
		// the sent log is published by forward
	}

	return res
}

func (d *Dispatcher) reject(req *OrderRequest, err error, now time.Time) AdmissionResult {
	res := rejectResult(req.OrderID, err)
	d.publish(NewRejectLog(d.nextSeqID(), d.sessionID, req, err, now))
	logger.Debug("order rejected",
		zap.Int64("order_id", req.OrderID),
		zap.String("reason", string(res.Reason)),
		zap.Error(err))
	return res
}

// forward is the send callback of the admission queue. It reconfirms the gate at the
// moment of sending.
func (d *Dispatcher) forward(req OrderRequest) error {
	now := d.clock.Now()
	if !d.gate.IsTradingActive(now) {
		return fmt.Errorf("%w: order %d not sent", ErrTradingInactive, req.OrderID)
	}

	d.exchange.Send(req)
	d.publish(NewSentLog(d.nextSeqID(), d.sessionID, &req, now))
	return nil
}

// onTick checks the session and drains the queue while trading is active.
func (d *Dispatcher) onTick() {
	now := d.clock.Now()
	d.checkSession(now)

	if !d.gate.IsTradingActive(now) {
		return
	}

	result := d.queue.DrainOnce(now)
	for _, rejection := range result.Rejected {
		req := rejection.Order.dispatchRequest()
		d.publish(NewRejectLog(d.nextSeqID(), d.sessionID, &req, rejection.Err, now))
		logger.Warn("queued order rejected during drain",
			zap.Int64("order_id", req.OrderID),
			zap.Error(rejection.Err))
	}

	if result.Sent > 0 {
		logger.Debug("queue drained",
			zap.Int("sent", result.Sent),
			zap.Int("queue_length", d.queue.QueueLength()))
	}
}

// checkSession performs the logon or logout the gate asks for.
func (d *Dispatcher) checkSession(now time.Time) {
	state := d.gate.Evaluate(now)

	switch {
	case state.ShouldLogon():
		d.logon(now)
	case state.ShouldLogout():
		d.logout(now)
	}
}

func (d *Dispatcher) logon(now time.Time) {
	d.exchange.Logon(d.credentials)
	d.gate.SetLoggedIn(true)
	d.sessionID = xid.New().String()

	d.publish(NewSessionLog(d.nextSeqID(), LogTypeLogon, d.sessionID, d.credentials.Username, now))
	logger.Info("session logged on",
		zap.String("session_id", d.sessionID),
		zap.String("username", d.credentials.Username))
}

func (d *Dispatcher) logout(now time.Time) {
	d.exchange.Logout(d.credentials.Username)
	d.gate.SetLoggedIn(false)

	d.publish(NewSessionLog(d.nextSeqID(), LogTypeLogout, d.sessionID, d.credentials.Username, now))
	logger.Info("session logged out",
		zap.String("session_id", d.sessionID),
		zap.Int("queue_length", d.queue.QueueLength()))
	d.sessionID = ""
}

func (d *Dispatcher) clear(reason string) int {
	now := d.clock.Now()
	removed := d.queue.Clear()

	d.publish(NewClearedLog(d.nextSeqID(), d.sessionID, removed, reason, now))
	logger.Warn("queue cleared",
		zap.Int("removed", removed),
		zap.String("reason", reason))
	return removed
}

func (d *Dispatcher) nextSeqID() uint64 {
	return d.seqID.Add(1)
}

// publish hands the log to the collaborator and recycles it.
func (d *Dispatcher) publish(log *DispatchLog) {
	d.publishLog.Publish(log)
	releaseDispatchLog(log)
}
