package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	gate "github.com/0x5487/order-gate"
	"github.com/0x5487/order-gate/exchange"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultStaleAfter = 5 * time.Second

// Option configures a Collector.
type Option func(*Collector)

// WithCSV writes a row for every sent order and every response.
func WithCSV(w *CSVWriter) Option {
	return func(c *Collector) {
		c.csv = w
	}
}

// WithAuditStore persists every latency record.
func WithAuditStore(s *AuditStore) Option {
	return func(c *Collector) {
		c.store = s
	}
}

// WithStaleAfter sets how long a sent order may wait for a response before it counts as stale.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.staleAfter = d
		}
	}
}

// WithQueueLength exports the admission queue length as a gauge read on every scrape.
func WithQueueLength(fn func() float64) Option {
	return func(c *Collector) {
		c.queueLength = fn
	}
}

// WithLogger replaces the zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Collector) {
		c.logger = l
	}
}

// Collector turns dispatch logs and exchange responses into latency metrics.
// It implements gate.PublishLog and exchange.ResponseHandler.
type Collector struct {
	mu          sync.Mutex
	registry    *prometheus.Registry
	sent        prometheus.Counter
	queued      prometheus.Counter
	rejected    *prometheus.CounterVec
	responses   *prometheus.CounterVec
	stale       prometheus.Counter
	roundtrip   prometheus.Histogram
	queueLength func() float64
	pending     *PendingTracker
	reported    map[int64]struct{}
	staleAfter  time.Duration
	csv         *CSVWriter
	store       *AuditStore
	logger      *zap.Logger
}

// NewCollector creates a collector with its own Prometheus registry.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gate_orders_sent_total",
			Help: "Orders forwarded to the exchange.",
		}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gate_orders_queued_total",
			Help: "Orders that had to wait for per-second budget.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_orders_rejected_total",
			Help: "Rejected requests by reason.",
		}, []string{"reason"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_exchange_responses_total",
			Help: "Exchange responses by status.",
		}, []string{"status"}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gate_orders_stale_total",
			Help: "Sent orders that waited longer than the stale threshold for a response.",
		}),
		roundtrip: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gate_order_roundtrip_seconds",
			Help:    "Time from original submission to the exchange response.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		pending:    NewPendingTracker(),
		reported:   make(map[int64]struct{}),
		staleAfter: defaultStaleAfter,
		logger:     zap.L(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.registry.MustRegister(c.sent, c.queued, c.rejected, c.responses, c.stale, c.roundtrip)
	if c.queueLength != nil {
		c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "gate_queue_length",
			Help: "Orders waiting in the admission queue.",
		}, c.queueLength))
	}

	return c
}

// Publish consumes dispatch logs. It keeps nothing that points into the logs.
func (c *Collector) Publish(logs ...*gate.DispatchLog) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, log := range logs {
		switch log.Type {
		case gate.LogTypeSent:
			c.onSent(log)
		case gate.LogTypeQueued:
			c.queued.Inc()
		case gate.LogTypeReject:
			c.rejected.WithLabelValues(string(log.RejectReason)).Inc()
		}
	}
}

func (c *Collector) onSent(log *gate.DispatchLog) {
	rec := newLatencyRecord(log)
	c.sent.Inc()
	c.pending.Add(rec)

	c.persist("sent", rec, log.CreatedAt, log.CreatedAt.Sub(log.SubmittedAt))
}

// OnResponse closes the latency record of the answered order.
func (c *Collector) OnResponse(resp exchange.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.responses.WithLabelValues(string(resp.Status)).Inc()

	rec, ok := c.pending.Remove(resp.OrderID)
	if !ok {
		c.logger.Warn("response for an order that is not pending",
			zap.Int64("order_id", resp.OrderID),
			zap.String("status", string(resp.Status)))
		return
	}
	delete(c.reported, resp.OrderID)

	latency := resp.ReceivedAt.Sub(rec.SubmittedAt)
	rec.RespondedAt = resp.ReceivedAt
	rec.Status = string(resp.Status)
	rec.Message = resp.Message
	rec.LatencyMs = latencyMs(latency)

	c.roundtrip.Observe(latency.Seconds())
	c.persist(string(resp.Status), rec, resp.ReceivedAt, latency)
}

func (c *Collector) persist(event string, rec *LatencyRecord, at time.Time, latency time.Duration) {
	if c.csv != nil {
		if err := c.csv.Write(event, rec, at, latency); err != nil {
			c.logger.Error("failed to write csv row", zap.Int64("order_id", rec.OrderID), zap.Error(err))
		}
	}
	if c.store != nil {
		if err := c.store.Put(rec); err != nil {
			c.logger.Error("failed to store latency record", zap.Int64("order_id", rec.OrderID), zap.Error(err))
		}
	}
}

// Stale returns copies of sent orders with no response after the stale threshold.
func (c *Collector) Stale(now time.Time) []LatencyRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	recs := c.pending.Stale(now, c.staleAfter)
	out := make([]LatencyRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, *rec)
	}
	return out
}

// Pending returns how many sent orders still await a response.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Len()
}

// sweep logs and counts orders that became stale since the last sweep.
func (c *Collector) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh := 0
	for _, rec := range c.pending.Stale(now, c.staleAfter) {
		if _, ok := c.reported[rec.OrderID]; ok {
			continue
		}
		c.reported[rec.OrderID] = struct{}{}
		c.stale.Inc()
		fresh++

		c.logger.Warn("order has no exchange response",
			zap.Int64("order_id", rec.OrderID),
			zap.String("session_id", rec.SessionID),
			zap.Duration("waiting", now.Sub(rec.SentAt)))
	}
	return fresh
}

// WatchStale sweeps for stale orders every interval until ctx is done.
func (c *Collector) WatchStale(ctx context.Context, clk clock.Clock, interval time.Duration) {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(clk.Now())
		}
	}
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

var (
	_ gate.PublishLog          = (*Collector)(nil)
	_ exchange.ResponseHandler = (*Collector)(nil)
)
