package gate

import (
	"fmt"
	"time"
)

// SendFunc forwards one order to the exchange.
// A non-nil error means the order was not sent (e.g. ErrTradingInactive).
type SendFunc func(req OrderRequest) error

// AdmissionQueue decides, per request, whether to forward an order now, queue it for a
// later drain, or reject it. It is not safe for concurrent use; the Dispatcher owns it.
type AdmissionQueue struct {
	queue   *queue
	counter *rateCounter
	send    SendFunc
}

// NewAdmissionQueue creates a queue that forwards at most ratePerSecond orders per
// wall-clock second through send.
func NewAdmissionQueue(ratePerSecond int, send SendFunc) (*AdmissionQueue, error) {
	if ratePerSecond < 1 {
		return nil, fmt.Errorf("%w: rate per second must be at least 1, got %d", ErrConfiguration, ratePerSecond)
	}
	if send == nil {
		return nil, fmt.Errorf("%w: send callback is required", ErrConfiguration)
	}

	return &AdmissionQueue{
		queue:   newQueue(),
		counter: newRateCounter(ratePerSecond),
		send:    send,
	}, nil
}

// Submit applies one request at time now.
func (aq *AdmissionQueue) Submit(req OrderRequest, now time.Time) AdmissionResult {
	if err := req.Validate(); err != nil {
		return rejectResult(req.OrderID, err)
	}

	switch req.Kind {
	case Modify:
		return aq.modify(req)
	case Cancel:
		return aq.cancel(req)
	default:
		return aq.admit(req, now)
	}
}

func (aq *AdmissionQueue) modify(req OrderRequest) AdmissionResult {
	if !aq.queue.updateOrder(req.OrderID, req.Price, req.Quantity) {
		return rejectResult(req.OrderID, fmt.Errorf("%w: modify %d", ErrNotFound, req.OrderID))
	}
	return AdmissionResult{OrderID: req.OrderID, Status: Modified}
}

func (aq *AdmissionQueue) cancel(req OrderRequest) AdmissionResult {
	if aq.queue.removeOrder(req.OrderID) == nil {
		return rejectResult(req.OrderID, fmt.Errorf("%w: cancel %d", ErrNotFound, req.OrderID))
	}
	return AdmissionResult{OrderID: req.OrderID, Status: Cancelled}
}

func (aq *AdmissionQueue) admit(req OrderRequest, now time.Time) AdmissionResult {
	if aq.queue.order(req.OrderID) != nil {
		return rejectResult(req.OrderID, fmt.Errorf("%w: %d", ErrDuplicateOrder, req.OrderID))
	}

	if aq.counter.allow(now) {
		if err := aq.send(req); err != nil {
			return rejectResult(req.OrderID, err)
		}
		aq.counter.record()
		return AdmissionResult{OrderID: req.OrderID, Status: AcceptedImmediate}
	}

	aq.queue.pushBack(&QueuedOrder{
		OrderRequest:        req,
		EnqueuedAt:          now,
		OriginalSubmittedAt: req.SubmittedAt,
	})

	return AdmissionResult{OrderID: req.OrderID, Status: AcceptedQueued}
}

// DrainOnce forwards queued orders from the head while now's second has budget left.
// An order the send callback refuses is removed and reported in Rejected, and the pass
// stops there so the rest of the queue stays untouched.
func (aq *AdmissionQueue) DrainOnce(now time.Time) DrainResult {
	var result DrainResult

	for aq.queue.orderCount() > 0 && aq.counter.allow(now) {
		order := aq.queue.popHeadOrder()

		if err := aq.send(order.dispatchRequest()); err != nil {
			result.Rejected = append(result.Rejected, DrainRejection{Order: *order, Err: err})
			break
		}

		aq.counter.record()
		result.Sent++
	}

	return result
}

// QueueLength returns the number of queued orders.
func (aq *AdmissionQueue) QueueLength() int {
	return aq.queue.orderCount()
}

// IsQueued reports whether an order id is waiting in the queue.
func (aq *AdmissionQueue) IsQueued(orderID int64) bool {
	_, ok := aq.queue.position(orderID)
	return ok
}

// QueuePosition returns the zero-based send position of a queued order.
func (aq *AdmissionQueue) QueuePosition(orderID int64) (int, error) {
	pos, ok := aq.queue.position(orderID)
	if !ok {
		return -1, fmt.Errorf("%w: %d", ErrNotFound, orderID)
	}
	return pos, nil
}

// Snapshot returns a copy of the queue in send order.
func (aq *AdmissionQueue) Snapshot() []QueuedOrder {
	return aq.queue.toSnapshot()
}

// Clear drops every queued order and returns how many were removed.
// It is the emergency-stop path; nothing is sent.
func (aq *AdmissionQueue) Clear() int {
	return aq.queue.reset()
}

// Stats returns the rate limiter view at now without side effects.
func (aq *AdmissionQueue) Stats(now time.Time) Stats {
	sent := aq.counter.sentAt(now)
	remaining := aq.counter.limit - sent
	if remaining < 0 {
		remaining = 0
	}

	return Stats{
		QueueLength:       aq.queue.orderCount(),
		OrdersThisSecond:  sent,
		RatePerSecond:     aq.counter.limit,
		RemainingCapacity: remaining,
	}
}
