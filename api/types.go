package api

import (
	"fmt"

	"github.com/0x5487/order-gate/protocol"
)

// OrderBody is the JSON body of POST /orders and PUT /orders/{id}.
// OrderID is taken from the path on PUT.
type OrderBody struct {
	OrderID     int64  `json:"order_id" validate:"gt=0"`
	SymbolID    int64  `json:"symbol_id" validate:"gt=0"`
	Side        string `json:"side" validate:"oneof=buy sell"`
	Price       string `json:"price" validate:"required"`
	Quantity    string `json:"quantity" validate:"required"`
	SubmittedAt int64  `json:"submitted_at,omitempty"`
}

// CancelBody identifies the queued order to drop.
type CancelBody struct {
	SymbolID int64  `json:"symbol_id" validate:"gt=0"`
	Side     string `json:"side" validate:"oneof=buy sell"`
}

// ClearBody is the body of POST /queue/clear.
type ClearBody struct {
	Operator string `json:"operator" validate:"required"`
	Reason   string `json:"reason"`
}

type PositionResponse struct {
	OrderID  int64 `json:"order_id"`
	Position int   `json:"position"`
}

type SnapshotResponse struct {
	SeqID     uint64                      `json:"seq_id"`
	SessionID string                      `json:"session_id,omitempty"`
	LoggedIn  bool                        `json:"logged_in"`
	Orders    []*protocol.QueuedOrderItem `json:"orders"`
	Stats     *protocol.GetStatsResponse  `json:"stats"`
	TakenAt   int64                       `json:"taken_at"` // Unix milli
}

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	LoggedIn bool   `json:"logged_in"`
}

// ErrorResponse is returned for every non-2xx answer that is not an admission result.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is sent by websocket clients to pick their channels.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// WSMessage wraps every event pushed to websocket clients.
type WSMessage struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

func parseSide(s string) (protocol.Side, error) {
	switch s {
	case "buy":
		return protocol.SideBuy, nil
	case "sell":
		return protocol.SideSell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}
