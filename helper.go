package gate

import (
	"fmt"
	"time"

	"github.com/0x5487/order-gate/protocol"
	"github.com/shopspring/decimal"
)

// Validate checks the kind-specific rules of a request.
// Cancel requests ignore price and quantity.
func (r *OrderRequest) Validate() error {
	if r.OrderID <= 0 {
		return fmt.Errorf("%w: order_id must be positive", ErrValidation)
	}
	if r.SymbolID <= 0 {
		return fmt.Errorf("%w: symbol_id must be positive", ErrValidation)
	}
	if r.Side != Buy && r.Side != Sell {
		return fmt.Errorf("%w: unknown side %d", ErrValidation, r.Side)
	}

	switch r.Kind {
	case New, Modify:
		if r.Price.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: price must be positive", ErrValidation)
		}
		if r.Quantity.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: quantity must be positive", ErrValidation)
		}
	case Cancel:
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrValidation, r.Kind)
	}

	return nil
}

// OrderRequestFromCommand converts a wire payload into a request of the given kind.
// A zero SubmittedAt is replaced with now.
func OrderRequestFromCommand(kind OrderKind, cmd *protocol.OrderCommand, now time.Time) (OrderRequest, error) {
	req := OrderRequest{
		OrderID:     cmd.OrderID,
		SymbolID:    cmd.SymbolID,
		Side:        cmd.Side,
		Kind:        kind,
		SubmittedAt: now,
	}
	if cmd.SubmittedAt > 0 {
		req.SubmittedAt = time.Unix(0, cmd.SubmittedAt)
	}

	if kind == Cancel {
		return req, nil
	}

	price, err := decimal.NewFromString(cmd.Price)
	if err != nil {
		return req, fmt.Errorf("%w: price %q: %v", ErrValidation, cmd.Price, err)
	}
	qty, err := decimal.NewFromString(cmd.Quantity)
	if err != nil {
		return req, fmt.Errorf("%w: quantity %q: %v", ErrValidation, cmd.Quantity, err)
	}
	req.Price = price
	req.Quantity = qty

	return req, nil
}

// ToAdmissionResponse converts a result into its wire form.
func ToAdmissionResponse(res AdmissionResult) *protocol.AdmissionResponse {
	resp := &protocol.AdmissionResponse{
		OrderID: res.OrderID,
		Status:  res.Status,
		Reason:  res.Reason,
	}
	if res.Err != nil {
		resp.Message = res.Err.Error()
	}
	return resp
}

// ToQueueResponse converts a queue snapshot into its wire form.
func ToQueueResponse(orders []QueuedOrder) *protocol.GetQueueResponse {
	resp := &protocol.GetQueueResponse{
		Orders: make([]*protocol.QueuedOrderItem, 0, len(orders)),
	}
	for i, o := range orders {
		resp.Orders = append(resp.Orders, &protocol.QueuedOrderItem{
			Position:            i,
			OrderID:             o.OrderID,
			SymbolID:            o.SymbolID,
			Side:                o.Side,
			Price:               o.Price.String(),
			Quantity:            o.Quantity.String(),
			EnqueuedAt:          o.EnqueuedAt.UnixMilli(),
			OriginalSubmittedAt: o.OriginalSubmittedAt.UnixMilli(),
		})
	}
	return resp
}

// ToStatsResponse converts stats into their wire form.
func ToStatsResponse(s Stats) *protocol.GetStatsResponse {
	return &protocol.GetStatsResponse{
		QueueLength:       s.QueueLength,
		OrdersThisSecond:  s.OrdersThisSecond,
		RatePerSecond:     s.RatePerSecond,
		RemainingCapacity: s.RemainingCapacity,
	}
}

// ToSessionStateResponse converts session info into its wire form.
func ToSessionStateResponse(info SessionInfo) *protocol.SessionStateResponse {
	return &protocol.SessionStateResponse{
		WithinWindow: info.WithinWindow,
		LoggedIn:     info.LoggedIn,
		ShouldLogon:  info.ShouldLogon(),
		ShouldLogout: info.ShouldLogout(),
		SessionID:    info.SessionID,
		NextBoundary: string(info.NextBoundary.Kind),
		NextAt:       info.NextBoundary.At.UnixMilli(),
	}
}
