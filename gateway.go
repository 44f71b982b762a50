package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/0x5487/order-gate/protocol"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const defaultGatewayTimeout = time.Second

// Gateway decodes wire commands and routes them to the dispatcher.
type Gateway struct {
	dispatcher *Dispatcher
	serializer protocol.Serializer
	validate   *validator.Validate
	timeout    time.Duration
}

// NewGateway creates a gateway in front of d using the JSON serializer.
func NewGateway(d *Dispatcher) *Gateway {
	return &Gateway{
		dispatcher: d,
		serializer: protocol.DefaultJSONSerializer{},
		validate:   validator.New(),
		timeout:    defaultGatewayTimeout,
	}
}

// WithSerializer replaces the payload serializer.
func (g *Gateway) WithSerializer(s protocol.Serializer) *Gateway {
	g.serializer = s
	return g
}

// Dispatcher returns the dispatcher behind the gateway.
func (g *Gateway) Dispatcher() *Dispatcher {
	return g.dispatcher
}

// EnqueueCommand decodes cmd and waits for the dispatcher's decision.
// A clear command reports Cancelled with OrderID 0.
func (g *Gateway) EnqueueCommand(cmd *protocol.Command) AdmissionResult {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	return g.enqueue(ctx, cmd)
}

func (g *Gateway) enqueue(ctx context.Context, cmd *protocol.Command) AdmissionResult {
	if cmd == nil {
		return rejectResult(0, fmt.Errorf("%w: nil command", ErrValidation))
	}

	switch cmd.Type {
	case protocol.CmdNewOrder:
		return g.handleOrder(ctx, New, cmd)
	case protocol.CmdModifyOrder:
		return g.handleOrder(ctx, Modify, cmd)
	case protocol.CmdCancelOrder:
		return g.handleOrder(ctx, Cancel, cmd)
	case protocol.CmdClearQueue:
		return g.handleClearQueue(ctx, cmd)
	default:
		logger.Warn("unknown command type",
			zap.Uint8("type", uint8(cmd.Type)),
			zap.Uint64("cmd_seq_id", cmd.SeqID))
		return rejectResult(0, fmt.Errorf("%w: unknown command type %d", ErrValidation, cmd.Type))
	}
}

func (g *Gateway) handleOrder(ctx context.Context, kind OrderKind, cmd *protocol.Command) AdmissionResult {
	var payload protocol.OrderCommand
	if err := g.serializer.Unmarshal(cmd.Payload, &payload); err != nil {
		return rejectResult(0, fmt.Errorf("%w: decode %s payload: %v", ErrValidation, kind, err))
	}

	req, err := OrderRequestFromCommand(kind, &payload, g.dispatcher.clock.Now())
	if verr := g.validate.Struct(&payload); verr != nil {
		err = fmt.Errorf("%w: %v", ErrValidation, verr)
	}
	if err != nil {
		return g.reject(ctx, req, err)
	}

	return g.dispatcher.Submit(ctx, req)
}

// reject publishes gateway-level rejections through the dispatcher once the order id is known.
func (g *Gateway) reject(ctx context.Context, req OrderRequest, err error) AdmissionResult {
	if req.OrderID <= 0 {
		return rejectResult(req.OrderID, err)
	}
	return g.dispatcher.Reject(ctx, req, err)
}

func (g *Gateway) handleClearQueue(ctx context.Context, cmd *protocol.Command) AdmissionResult {
	var payload protocol.ClearQueueCommand
	if err := g.serializer.Unmarshal(cmd.Payload, &payload); err != nil {
		return rejectResult(0, fmt.Errorf("%w: decode clear payload: %v", ErrValidation, err))
	}
	if err := g.validate.Struct(&payload); err != nil {
		return rejectResult(0, fmt.Errorf("%w: %v", ErrValidation, err))
	}

	removed, err := g.dispatcher.Clear(ctx, fmt.Sprintf("%s: %s", payload.Operator, payload.Reason))
	if err != nil {
		return rejectResult(0, err)
	}

	logger.Info("queue cleared by operator",
		zap.String("operator", payload.Operator),
		zap.Int("removed", removed))
	return AdmissionResult{Status: Cancelled}
}

// NewOrder submits a new order.
func (g *Gateway) NewOrder(ctx context.Context, cmd *protocol.OrderCommand) AdmissionResult {
	return g.send(ctx, protocol.CmdNewOrder, cmd)
}

// ModifyOrder replaces price and quantity of a queued order.
func (g *Gateway) ModifyOrder(ctx context.Context, cmd *protocol.OrderCommand) AdmissionResult {
	return g.send(ctx, protocol.CmdModifyOrder, cmd)
}

// CancelOrder removes a queued order.
func (g *Gateway) CancelOrder(ctx context.Context, cmd *protocol.OrderCommand) AdmissionResult {
	return g.send(ctx, protocol.CmdCancelOrder, cmd)
}

// ClearQueue drops the whole queue on behalf of an operator.
func (g *Gateway) ClearQueue(ctx context.Context, operator, reason string) AdmissionResult {
	return g.send(ctx, protocol.CmdClearQueue, &protocol.ClearQueueCommand{Operator: operator, Reason: reason})
}

func (g *Gateway) send(ctx context.Context, typ protocol.CommandType, payload any) AdmissionResult {
	bytes, err := g.serializer.Marshal(payload)
	if err != nil {
		return rejectResult(0, fmt.Errorf("%w: encode payload: %v", ErrValidation, err))
	}
	return g.enqueue(ctx, &protocol.Command{
		Version: 1,
		Type:    typ,
		Payload: bytes,
	})
}
