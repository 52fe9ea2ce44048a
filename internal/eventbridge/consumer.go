// Package eventbridge consumes platform events from RabbitMQ and turns them
// into notification sends. The platform publishes to a topic exchange with
// dotted routing keys; each key maps onto one notification type.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/orchestrator"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/pkg/logger"
)

// handleTimeout bounds one event's send, retries included.
const handleTimeout = 30 * time.Second

// routingTypes maps platform routing keys to notification types.
var routingTypes = map[string]core.Type{
	"file.uploaded":       core.TypeFileUploaded,
	"file.shared":         core.TypeFileShared,
	"processing.complete": core.TypeProcessingComplete,
	"processing.failed":   core.TypeProcessingFailed,
	"storage.quota":       core.TypeStorageQuota,
	"security.alert":      core.TypeSecurityAlert,
	"system.alert":        core.TypeSystemAlert,
}

// Sender is the slice of the orchestrator the bridge needs.
type Sender interface {
	Send(ctx context.Context, in orchestrator.SendInput) (*orchestrator.SendResult, error)
}

// platformEvent is the wire shape platform services publish.
type platformEvent struct {
	UserID   string                 `json:"userId"`
	TenantID string                 `json:"tenantId,omitempty"`
	Title    string                 `json:"title,omitempty"`
	Message  string                 `json:"message,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Priority core.Priority          `json:"priority,omitempty"`
}

// Config locates the broker.
type Config struct {
	URL      string
	Exchange string
	Queue    string
	Workers  int
	Prefetch int
}

// Consumer bridges the platform exchange into the send pipeline.
type Consumer struct {
	cfg    Config
	sender Sender

	conn *amqp.Connection
	ch   *amqp.Channel

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewConsumer dials the broker and declares the exchange. Start begins
// consuming.
func NewConsumer(cfg Config, sender Sender) (*Consumer, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.Prefetch < 1 {
		cfg.Prefetch = 10
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	return &Consumer{cfg: cfg, sender: sender, conn: conn, ch: ch, done: make(chan struct{})}, nil
}

// Start declares the queue, binds every known routing key and launches the
// worker loops.
func (c *Consumer) Start() error {
	var startErr error
	c.once.Do(func() {
		if err := c.ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			startErr = fmt.Errorf("set qos: %w", err)
			return
		}
		q, err := c.ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
		if err != nil {
			startErr = fmt.Errorf("declare queue %s: %w", c.cfg.Queue, err)
			return
		}
		for key := range routingTypes {
			if err := c.ch.QueueBind(q.Name, key, c.cfg.Exchange, false, nil); err != nil {
				startErr = fmt.Errorf("bind %s: %w", key, err)
				return
			}
		}
		msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
		if err != nil {
			startErr = fmt.Errorf("consume: %w", err)
			return
		}

		for i := 0; i < c.cfg.Workers; i++ {
			c.wg.Add(1)
			go c.workerLoop(msgs)
		}
		logger.Info("event bridge consuming",
			zap.String("exchange", c.cfg.Exchange),
			zap.String("queue", c.cfg.Queue),
			zap.Int("workers", c.cfg.Workers),
		)
	})
	return startErr
}

// Close stops consuming and tears the connection down.
func (c *Consumer) Close() error {
	close(c.done)
	if err := c.ch.Close(); err != nil {
		logger.Warn("close amqp channel", zap.Error(err))
	}
	err := c.conn.Close()
	c.wg.Wait()
	return err
}

func (c *Consumer) workerLoop(msgs <-chan amqp.Delivery) {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c.handle(msg)
		}
	}
}

func (c *Consumer) handle(msg amqp.Delivery) {
	in, err := decodeEvent(msg.RoutingKey, msg.Body)
	if err != nil {
		// Undecodable messages never become decodable; drop without requeue.
		logger.Warn("drop malformed platform event",
			zap.String("routingKey", msg.RoutingKey), zap.Error(err))
		_ = msg.Nack(false, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if _, err := c.sender.Send(ctx, in); err != nil {
		logger.Error("send from platform event failed",
			zap.String("routingKey", msg.RoutingKey),
			zap.String("userID", in.UserID),
			zap.Error(err),
		)
		// Rejections (disabled user, validation) are permanent; requeueing
		// would loop forever. Storage errors are worth one redelivery.
		_ = msg.Nack(false, !isRejection(err))
		return
	}
	_ = msg.Ack(false)
}

// isRejection reports whether the send failed for a reason redelivery cannot
// fix (validation, disabled user).
func isRejection(err error) bool {
	appErr, ok := apperrors.IsAppError(err)
	return ok && appErr.HTTPStatus >= 400 && appErr.HTTPStatus < 500
}

// decodeEvent maps a routed message into a send request.
func decodeEvent(routingKey string, body []byte) (orchestrator.SendInput, error) {
	t, ok := routingTypes[routingKey]
	if !ok {
		return orchestrator.SendInput{}, fmt.Errorf("unknown routing key %q", routingKey)
	}
	var ev platformEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return orchestrator.SendInput{}, fmt.Errorf("decode event body: %w", err)
	}
	if ev.UserID == "" {
		return orchestrator.SendInput{}, fmt.Errorf("event missing userId")
	}
	return orchestrator.SendInput{
		UserID:   ev.UserID,
		TenantID: ev.TenantID,
		Type:     t,
		Title:    ev.Title,
		Message:  ev.Message,
		Data:     ev.Data,
		Priority: ev.Priority,
	}, nil
}
