package gate

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type LogType string

const (
	LogTypeSent      LogType = "sent"
	LogTypeQueued    LogType = "queued"
	LogTypeModified  LogType = "modified"
	LogTypeCancelled LogType = "cancelled"
	LogTypeReject    LogType = "reject"
	LogTypeLogon     LogType = "logon"
	LogTypeLogout    LogType = "logout"
	LogTypeCleared   LogType = "cleared"
)

// DispatchLog represents an admission or session event.
// SequenceID is a per-dispatcher increasing ID for every event, used for ordering
// and deduplication in downstream consumers.
// Sent and Reject logs are what the metrics collector needs; the others are for auditing.
type DispatchLog struct {
	SequenceID   uint64          `json:"seq_id"`
	Type         LogType         `json:"type"`
	SessionID    string          `json:"session_id,omitempty"`
	OrderID      int64           `json:"order_id,omitempty"`
	SymbolID     int64           `json:"symbol_id,omitempty"`
	Side         Side            `json:"side,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	SubmittedAt  time.Time       `json:"submitted_at"`
	RejectReason RejectReason    `json:"reject_reason,omitempty"` // only set for Reject events
	Message      string          `json:"message,omitempty"`
	Username     string          `json:"username,omitempty"` // only set for Logon/Logout events
	Removed      int             `json:"removed,omitempty"`  // only set for Cleared events
	CreatedAt    time.Time       `json:"created_at"`
}

var dispatchLogPool = sync.Pool{
	New: func() any {
		return new(DispatchLog)
	},
}

func acquireDispatchLog() *DispatchLog {
	return dispatchLogPool.Get().(*DispatchLog)
}

func releaseDispatchLog(log *DispatchLog) {
	// For decimal.Decimal, the zero value represents 0, which is valid.
	*log = DispatchLog{}
	dispatchLogPool.Put(log)
}

// Clone returns a heap copy that is safe to keep after Publish returns.
func (l *DispatchLog) Clone() *DispatchLog {
	cpy := new(DispatchLog)
	*cpy = *l
	return cpy
}

func newOrderLog(seqID uint64, typ LogType, sessionID string, req *OrderRequest, at time.Time) *DispatchLog {
	log := acquireDispatchLog()
	log.SequenceID = seqID
	log.Type = typ
	log.SessionID = sessionID
	log.OrderID = req.OrderID
	log.SymbolID = req.SymbolID
	log.Side = req.Side
	log.Price = req.Price
	log.Quantity = req.Quantity
	log.SubmittedAt = req.SubmittedAt
	log.CreatedAt = at.UTC()
	return log
}

// NewSentLog records an order handed to the exchange. SubmittedAt carries the
// original submission time so consumers can measure round-trip latency.
func NewSentLog(seqID uint64, sessionID string, req *OrderRequest, at time.Time) *DispatchLog {
	return newOrderLog(seqID, LogTypeSent, sessionID, req, at)
}

func NewQueuedLog(seqID uint64, sessionID string, req *OrderRequest, at time.Time) *DispatchLog {
	return newOrderLog(seqID, LogTypeQueued, sessionID, req, at)
}

func NewModifiedLog(seqID uint64, sessionID string, req *OrderRequest, at time.Time) *DispatchLog {
	return newOrderLog(seqID, LogTypeModified, sessionID, req, at)
}

func NewCancelledLog(seqID uint64, sessionID string, req *OrderRequest, at time.Time) *DispatchLog {
	return newOrderLog(seqID, LogTypeCancelled, sessionID, req, at)
}

func NewRejectLog(seqID uint64, sessionID string, req *OrderRequest, err error, at time.Time) *DispatchLog {
	log := newOrderLog(seqID, LogTypeReject, sessionID, req, at)
	log.RejectReason = reasonOf(err)
	if err != nil {
		log.Message = err.Error()
	}
	return log
}

func NewSessionLog(seqID uint64, typ LogType, sessionID string, username string, at time.Time) *DispatchLog {
	log := acquireDispatchLog()
	log.SequenceID = seqID
	log.Type = typ
	log.SessionID = sessionID
	log.Username = username
	log.CreatedAt = at.UTC()
	return log
}

func NewClearedLog(seqID uint64, sessionID string, removed int, reason string, at time.Time) *DispatchLog {
	log := acquireDispatchLog()
	log.SequenceID = seqID
	log.Type = LogTypeCleared
	log.SessionID = sessionID
	log.Removed = removed
	log.Message = reason
	log.CreatedAt = at.UTC()
	return log
}
