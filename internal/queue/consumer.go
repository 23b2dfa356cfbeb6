package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// EmailMarker records that a signer's invitation was dispatched.
type EmailMarker interface {
	MarkEmailSent(ctx context.Context, signerID string) error
}

// Consumer drains both notification queues. Delivery itself is an external
// concern; the consumer appends one redacted line per event to
// <logDir>/notifications.log and marks invited signers as sent.
type Consumer struct {
	url    string
	logDir string
	marker EmailMarker
	log    *zap.Logger

	mu sync.Mutex
}

// NewConsumer returns a Consumer for the broker at url.
func NewConsumer(url, logDir string, marker EmailMarker, log *zap.Logger) *Consumer {
	return &Consumer{url: url, logDir: logDir, marker: marker, log: log.With(zap.String("component", "consumer"))}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}

	requested, err := c.subscribe(ch, SigningRequestedQueue)
	if err != nil {
		return err
	}
	completed, err := c.subscribe(ch, DocumentCompletedQueue)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-requested:
			if !ok {
				return errors.New("signing.requested deliveries closed")
			}
			c.settle(d, c.HandleSigningRequested(ctx, d.Body))
		case d, ok := <-completed:
			if !ok {
				return errors.New("document.completed deliveries closed")
			}
			c.settle(d, c.HandleDocumentCompleted(d.Body))
		}
	}
}

func (c *Consumer) subscribe(ch *amqp.Channel, queue string) (<-chan amqp.Delivery, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", queue, err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", queue, err)
	}
	return msgs, nil
}

func (c *Consumer) settle(d amqp.Delivery, err error) {
	if err != nil {
		c.log.Error("handle message failed", zap.String("queue", d.RoutingKey), zap.Error(err))
		// Reject without requeue to avoid a tight redelivery loop.
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// HandleSigningRequested records an invitation and marks the signer sent.
func (c *Consumer) HandleSigningRequested(ctx context.Context, body []byte) error {
	var ev SigningRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Signing requested | document_id=%s | document=%q | signer_id=%s | to=%s | from=%q\n",
		ev.RequestedAt, ev.DocumentID, ev.DocumentTitle, ev.SignerID, ev.SignerEmail, ev.SenderName)
	if err := c.appendLine(line); err != nil {
		return err
	}
	if c.marker == nil || ev.SignerID == "" {
		return nil
	}
	if err := c.marker.MarkEmailSent(ctx, ev.SignerID); err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	return nil
}

// HandleDocumentCompleted records a completion notice.
func (c *Consumer) HandleDocumentCompleted(body []byte) error {
	var ev DocumentCompletedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	to := make([]string, 0, len(ev.Recipients))
	for _, r := range ev.Recipients {
		to = append(to, r.Email)
	}
	line := fmt.Sprintf("[%s] Document completed | document_id=%s | document=%q | to=[%s]\n",
		ev.CompletedAt, ev.DocumentID, ev.DocumentTitle, strings.Join(to, ","))
	return c.appendLine(line)
}

func (c *Consumer) appendLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(c.logDir, "notifications.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
