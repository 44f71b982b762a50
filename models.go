package gate

import (
	"time"

	"github.com/0x5487/order-gate/protocol"
	"github.com/shopspring/decimal"
)

const (
	// GateVersion is the current version of the order gate
	GateVersion = "v1.0.0"
)

type Side = protocol.Side

const (
	Buy  Side = protocol.SideBuy
	Sell Side = protocol.SideSell
)

type OrderKind = protocol.OrderKind

const (
	New    OrderKind = protocol.KindNew
	Modify OrderKind = protocol.KindModify
	Cancel OrderKind = protocol.KindCancel
)

type AdmissionStatus = protocol.AdmissionStatus

const (
	AcceptedImmediate AdmissionStatus = protocol.StatusAcceptedImmediate
	AcceptedQueued    AdmissionStatus = protocol.StatusAcceptedQueued
	Modified          AdmissionStatus = protocol.StatusModified
	Cancelled         AdmissionStatus = protocol.StatusCancelled
	Rejected          AdmissionStatus = protocol.StatusRejected
)

type RejectReason = protocol.RejectReason

// OrderRequest is a single inbound instruction.
// Price and Quantity are only meaningful for New and Modify.
type OrderRequest struct {
	OrderID     int64           `json:"order_id"`
	SymbolID    int64           `json:"symbol_id"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Side        Side            `json:"side"`
	Kind        OrderKind       `json:"kind"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// QueuedOrder is an order waiting for per-second budget.
type QueuedOrder struct {
	OrderRequest
	EnqueuedAt time.Time `json:"enqueued_at"`
	// OriginalSubmittedAt survives modifies so downstream latency reflects true order age.
	OriginalSubmittedAt time.Time `json:"original_submitted_at"`
}

// dispatchRequest rebuilds the plain request that goes to the exchange.
func (o *QueuedOrder) dispatchRequest() OrderRequest {
	req := o.OrderRequest
	req.Kind = New
	req.SubmittedAt = o.OriginalSubmittedAt
	return req
}

// Credentials are passed through to the exchange on logon.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"-"`
	Account  string `json:"account,omitempty"`
}

// AdmissionResult is the typed outcome of Submit.
// Err is set only when Status is Rejected.
type AdmissionResult struct {
	OrderID int64
	Status  AdmissionStatus
	Reason  RejectReason
	Err     error
}

// Accepted reports whether the request was taken (sent, queued, modified or cancelled).
func (r AdmissionResult) Accepted() bool {
	return r.Status != Rejected
}

func rejectResult(orderID int64, err error) AdmissionResult {
	return AdmissionResult{
		OrderID: orderID,
		Status:  Rejected,
		Reason:  reasonOf(err),
		Err:     err,
	}
}

// Stats is the read-only rate limiter view.
type Stats struct {
	QueueLength       int
	OrdersThisSecond  int
	RatePerSecond     int
	RemainingCapacity int
}

// SessionState is the result of one gate evaluation.
type SessionState struct {
	WithinWindow bool
	LoggedIn     bool
}

// ShouldLogon is true when the window is open but no session exists.
func (s SessionState) ShouldLogon() bool {
	return s.WithinWindow && !s.LoggedIn
}

// ShouldLogout is true when the window closed on a live session.
func (s SessionState) ShouldLogout() bool {
	return !s.WithinWindow && s.LoggedIn
}

// SessionInfo extends SessionState with the current session id and the next window boundary.
type SessionInfo struct {
	SessionState
	SessionID    string
	NextBoundary Boundary
}

// DrainRejection is a queued order that could not be forwarded during a drain.
type DrainRejection struct {
	Order QueuedOrder
	Err   error
}

// DrainResult summarises one drain pass.
type DrainResult struct {
	Sent     int
	Rejected []DrainRejection
}
