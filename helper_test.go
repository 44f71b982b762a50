package gate

import (
	"testing"
	"time"

	"github.com/0x5487/order-gate/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRequestFromCommand(t *testing.T) {
	now := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	cmd := &protocol.OrderCommand{OrderID: 4, SymbolID: 2, Side: protocol.SideSell, Price: "99.95", Quantity: "0.5"}

	req, err := OrderRequestFromCommand(New, cmd, now)
	require.NoError(t, err)
	assert.Equal(t, "99.95", req.Price.String())
	assert.Equal(t, "0.5", req.Quantity.String())
	assert.Equal(t, Sell, req.Side)
	assert.Equal(t, now, req.SubmittedAt)

	cmd.SubmittedAt = now.Add(-time.Minute).UnixNano()
	req, err = OrderRequestFromCommand(New, cmd, now)
	require.NoError(t, err)
	assert.True(t, req.SubmittedAt.Equal(now.Add(-time.Minute)))
}

func TestOrderRequestFromCommand_CancelSkipsDecimals(t *testing.T) {
	req, err := OrderRequestFromCommand(Cancel, &protocol.OrderCommand{OrderID: 1, SymbolID: 1, Side: protocol.SideBuy, Price: "junk"}, time.Now())
	require.NoError(t, err)
	assert.True(t, req.Price.IsZero())
	assert.NoError(t, req.Validate())
}

func TestToResponses(t *testing.T) {
	res := ToAdmissionResponse(rejectResult(3, ErrTradingInactive))
	assert.Equal(t, protocol.StatusRejected, res.Status)
	assert.Equal(t, protocol.RejectReasonTradingInactive, res.Reason)
	assert.Equal(t, ErrTradingInactive.Error(), res.Message)

	q := ToQueueResponse([]QueuedOrder{*queuedOrder(8, 101), *queuedOrder(9, 102)})
	require.Len(t, q.Orders, 2)
	assert.Equal(t, 1, q.Orders[1].Position)
	assert.Equal(t, "102", q.Orders[1].Price)

	s := ToSessionStateResponse(SessionInfo{
		SessionState: SessionState{WithinWindow: true},
		NextBoundary: Boundary{Kind: BoundaryClose, At: at(15, 30)},
	})
	assert.True(t, s.ShouldLogon)
	assert.Equal(t, "close", s.NextBoundary)
	assert.Equal(t, at(15, 30).UnixMilli(), s.NextAt)
}
