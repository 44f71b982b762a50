package gate

import "time"

// QueueSnapshot is a point-in-time copy of the dispatcher state.
// It is for inspection only; the queue is never restored from it.
type QueueSnapshot struct {
	SeqID     uint64        `json:"seq_id"` // last DispatchLog sequence ID
	SessionID string        `json:"session_id,omitempty"`
	LoggedIn  bool          `json:"logged_in"`
	Orders    []QueuedOrder `json:"orders"` // send order, head first
	Stats     Stats         `json:"stats"`
	TakenAt   time.Time     `json:"taken_at"`
}

func (d *Dispatcher) createSnapshot() *QueueSnapshot {
	now := d.clock.Now()
	return &QueueSnapshot{
		SeqID:     d.seqID.Load(),
		SessionID: d.sessionID,
		LoggedIn:  d.gate.IsLoggedIn(),
		Orders:    d.queue.Snapshot(),
		Stats:     d.queue.Stats(now),
		TakenAt:   now,
	}
}
