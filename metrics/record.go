package metrics

import (
	"time"

	gate "github.com/0x5487/order-gate"
)

// LatencyRecord follows one sent order from submission to the exchange's answer.
type LatencyRecord struct {
	OrderID     int64     `json:"order_id"`
	SymbolID    int64     `json:"symbol_id"`
	Side        string    `json:"side"`
	Price       string    `json:"price"`
	Quantity    string    `json:"quantity"`
	SessionID   string    `json:"session_id,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	SentAt      time.Time `json:"sent_at"`
	RespondedAt time.Time `json:"responded_at"`
	Status      string    `json:"status"` // sent, ack, fill, reject
	Message     string    `json:"message,omitempty"`
	LatencyMs   float64   `json:"latency_ms"`
}

func newLatencyRecord(log *gate.DispatchLog) *LatencyRecord {
	return &LatencyRecord{
		OrderID:     log.OrderID,
		SymbolID:    log.SymbolID,
		Side:        log.Side.String(),
		Price:       log.Price.String(),
		Quantity:    log.Quantity.String(),
		SessionID:   log.SessionID,
		SubmittedAt: log.SubmittedAt,
		SentAt:      log.CreatedAt,
		Status:      string(log.Type),
	}
}

// Responded reports whether the exchange has answered.
func (r *LatencyRecord) Responded() bool {
	return !r.RespondedAt.IsZero()
}

func latencyMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
