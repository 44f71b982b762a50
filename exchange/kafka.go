package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	gate "github.com/0x5487/order-gate"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// MessageType tags an outbound envelope.
type MessageType string

const (
	MessageOrder  MessageType = "order"
	MessageLogon  MessageType = "logon"
	MessageLogout MessageType = "logout"
)

// OrderMessage is the wire form of a forwarded order.
type OrderMessage struct {
	OrderID     int64     `json:"order_id"`
	SymbolID    int64     `json:"symbol_id"`
	Side        string    `json:"side"`
	Price       string    `json:"price"`
	Quantity    string    `json:"quantity"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Envelope is the JSON value of every message written to the gateway topic.
type Envelope struct {
	Type     MessageType   `json:"type"`
	Order    *OrderMessage `json:"order,omitempty"`
	Username string        `json:"username,omitempty"`
	Account  string        `json:"account,omitempty"`
	SentAt   time.Time     `json:"sent_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka forwards orders and session events to a Kafka topic consumed by the
// exchange-facing session process. Writes are asynchronous; failures are logged
// by the writer's completion callback and never retried.
type Kafka struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafka creates an async writer for topic.
func NewKafka(brokers []string, topic string, logger *zap.Logger) *Kafka {
	if logger == nil {
		logger = zap.NewNop()
	}
	k := &Kafka{logger: logger}
	k.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
		Completion:   k.onCompletion,
	}
	return k
}

func (k *Kafka) onCompletion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, msg := range messages {
		k.logger.Error("failed to write gateway message",
			zap.ByteString("key", msg.Key),
			zap.Error(err))
	}
}

func (k *Kafka) Send(order gate.OrderRequest) {
	k.write(strconv.FormatInt(order.OrderID, 10), &Envelope{
		Type: MessageOrder,
		Order: &OrderMessage{
			OrderID:     order.OrderID,
			SymbolID:    order.SymbolID,
			Side:        order.Side.String(),
			Price:       order.Price.String(),
			Quantity:    order.Quantity.String(),
			SubmittedAt: order.SubmittedAt,
		},
	})
}

// Logon publishes the username and account; the password never leaves the process.
func (k *Kafka) Logon(creds gate.Credentials) {
	k.write(creds.Username, &Envelope{
		Type:     MessageLogon,
		Username: creds.Username,
		Account:  creds.Account,
	})
}

func (k *Kafka) Logout(username string) {
	k.write(username, &Envelope{
		Type:     MessageLogout,
		Username: username,
	})
}

func (k *Kafka) write(key string, env *Envelope) {
	env.SentAt = time.Now().UTC()

	value, err := json.Marshal(env)
	if err != nil {
		k.logger.Error("failed to encode gateway message", zap.String("key", key), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		k.logger.Error("failed to enqueue gateway message",
			zap.String("key", key),
			zap.String("type", string(env.Type)),
			zap.Error(err))
	}
}

// Close flushes pending writes.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ResponseConsumer reads exchange responses from Kafka and hands them to a handler.
type ResponseConsumer struct {
	reader  messageReader
	handler ResponseHandler
	logger  *zap.Logger
}

// NewResponseConsumer joins groupID on topic.
func NewResponseConsumer(brokers []string, topic, groupID string, handler ResponseHandler, logger *zap.Logger) *ResponseConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		handler: handler,
		logger:  logger,
	}
}

// Run delivers responses until ctx is done. Undecodable messages are logged and skipped.
func (c *ResponseConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var resp Response
		if err := json.Unmarshal(msg.Value, &resp); err != nil {
			c.logger.Warn("failed to decode exchange response",
				zap.ByteString("key", msg.Key),
				zap.Error(err))
			continue
		}
		if resp.ReceivedAt.IsZero() {
			resp.ReceivedAt = msg.Time
		}
		c.handler.OnResponse(resp)
	}
}

// Close leaves the consumer group.
func (c *ResponseConsumer) Close() error {
	return c.reader.Close()
}
