package protocol

// CommandType defines the type of the command (using uint8 for memory alignment and performance)
type CommandType uint8

// Command Type Numbering Strategy:
// - 0-50:  operator commands (low-frequency admin operations)
// - 51+:   order commands (hot path)
const (
	CmdUnknown    CommandType = 0
	CmdClearQueue CommandType = 1

	CmdNewOrder    CommandType = 51
	CmdModifyOrder CommandType = 52
	CmdCancelOrder CommandType = 53
)

// Command is the standard carrier for requests entering the gateway.
type Command struct {
	// Version is the protocol version for backward compatibility.
	Version uint8 `json:"version"`

	// SeqID is assigned by the upstream producer and only echoed into logs.
	SeqID uint64 `json:"seq_id"`

	// Type identifies the payload type for fast routing.
	Type CommandType `json:"type"`

	// Payload contains the serialized business data (e.g., JSON bytes of OrderCommand).
	Payload []byte `json:"payload"`

	// Metadata stores non-business context (e.g., Tracing ID, Source IP).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OrderCommand is the payload shared by new, modify and cancel commands.
// Price and Quantity are ignored for cancels.
type OrderCommand struct {
	OrderID     int64  `json:"order_id" validate:"gt=0"`
	SymbolID    int64  `json:"symbol_id" validate:"gt=0"`
	Side        Side   `json:"side" validate:"oneof=1 2"`
	Price       string `json:"price,omitempty"` // Using string to prevent precision loss in JSON
	Quantity    string `json:"quantity,omitempty"`
	SubmittedAt int64  `json:"submitted_at,omitempty"` // Unix nano; zero means "now"
}

// ClearQueueCommand is the payload for an operator-triggered emergency stop.
type ClearQueueCommand struct {
	Operator string `json:"operator" validate:"required"` // Operator ID for audit trail
	Reason   string `json:"reason"`
}
