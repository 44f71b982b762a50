package exchange

import (
	"time"

	gate "github.com/0x5487/order-gate"
)

// ResponseStatus is the exchange's answer to a sent order.
type ResponseStatus string

const (
	StatusAck    ResponseStatus = "ack"
	StatusFill   ResponseStatus = "fill"
	StatusReject ResponseStatus = "reject"
)

// Response is an asynchronous answer from the exchange.
type Response struct {
	OrderID    int64          `json:"order_id"`
	Status     ResponseStatus `json:"status"`
	Message    string         `json:"message,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}

// ResponseHandler receives exchange responses. It may be called from any goroutine.
type ResponseHandler interface {
	OnResponse(resp Response)
}

// ResponseHandlerFunc adapts a function to ResponseHandler.
type ResponseHandlerFunc func(resp Response)

func (f ResponseHandlerFunc) OnResponse(resp Response) {
	f(resp)
}

var (
	_ gate.Exchange = (*Simulated)(nil)
	_ gate.Exchange = (*Kafka)(nil)
)
