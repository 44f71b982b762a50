package protocol

// Side represents the order side (Buy/Sell).
type Side int8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

// String returns the lower-case side name used in logs and CSV rows.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// OrderKind tags a request as a new order or an operation on a queued one.
type OrderKind uint8

const (
	KindNew    OrderKind = 1
	KindModify OrderKind = 2
	KindCancel OrderKind = 3
)

func (k OrderKind) String() string {
	switch k {
	case KindNew:
		return "new"
	case KindModify:
		return "modify"
	case KindCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// AdmissionStatus is the outcome of a single admission decision.
type AdmissionStatus string

const (
	StatusAcceptedImmediate AdmissionStatus = "accepted_immediate"
	StatusAcceptedQueued    AdmissionStatus = "accepted_queued"
	StatusModified          AdmissionStatus = "modified"
	StatusCancelled         AdmissionStatus = "cancelled"
	StatusRejected          AdmissionStatus = "rejected"
)

// RejectReason represents the reason why a request was rejected.
type RejectReason string

const (
	RejectReasonNone            RejectReason = ""
	RejectReasonInvalidPayload  RejectReason = "invalid_payload"
	RejectReasonDuplicateID     RejectReason = "duplicate_order_id"
	RejectReasonOrderNotFound   RejectReason = "order_not_found"
	RejectReasonTradingInactive RejectReason = "trading_inactive"
	RejectReasonShutdown        RejectReason = "shutdown"
	RejectReasonTimeout         RejectReason = "timeout"
)

// AdmissionResponse is the wire form of an admission result.
type AdmissionResponse struct {
	OrderID int64           `json:"order_id"`
	Status  AdmissionStatus `json:"status"`
	Reason  RejectReason    `json:"reason,omitempty"`
	Message string          `json:"message,omitempty"`
}

// GetStatsResponse contains the rate limiter and queue statistics.
type GetStatsResponse struct {
	QueueLength       int `json:"queue_length"`
	OrdersThisSecond  int `json:"orders_this_second"`
	RatePerSecond     int `json:"rate_per_second"`
	RemainingCapacity int `json:"remaining_capacity"`
}

// SessionStateResponse is the wire form of the session gate state.
type SessionStateResponse struct {
	WithinWindow bool   `json:"within_window"`
	LoggedIn     bool   `json:"logged_in"`
	ShouldLogon  bool   `json:"should_logon"`
	ShouldLogout bool   `json:"should_logout"`
	SessionID    string `json:"session_id,omitempty"`
	NextBoundary string `json:"next_boundary"`
	NextAt       int64  `json:"next_at"` // Unix milli
}

// QueuedOrderItem is one entry of a queue snapshot.
type QueuedOrderItem struct {
	Position            int    `json:"position"`
	OrderID             int64  `json:"order_id"`
	SymbolID            int64  `json:"symbol_id"`
	Side                Side   `json:"side"`
	Price               string `json:"price"`
	Quantity            string `json:"quantity"`
	EnqueuedAt          int64  `json:"enqueued_at"`           // Unix milli
	OriginalSubmittedAt int64  `json:"original_submitted_at"` // Unix milli
}

// GetQueueResponse lists queued orders in send order.
type GetQueueResponse struct {
	Orders []*QueuedOrderItem `json:"orders"`
}

// ClearQueueResponse reports how many queued orders an emergency stop dropped.
type ClearQueueResponse struct {
	Removed int `json:"removed"`
}
