package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends notification events to RabbitMQ. Each publish dials its own
// connection so a broker outage never leaves the server holding a dead one.
// Errors are logged and returned; callers on the request path ignore them.
type Publisher struct {
	url string
	log *zap.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{url: url, log: log.With(zap.String("component", "publisher"))}
}

// PublishSigningRequested queues an invitation for one signer.
func (p *Publisher) PublishSigningRequested(ctx context.Context, ev SigningRequestedEvent) error {
	err := p.publish(ctx, SigningRequestedQueue, ev)
	if err != nil {
		p.log.Warn("publish signing request failed",
			zap.String("document_id", ev.DocumentID),
			zap.String("signer_id", ev.SignerID),
			zap.Error(err))
	}
	return err
}

// PublishDocumentCompleted queues a completion notice.
func (p *Publisher) PublishDocumentCompleted(ctx context.Context, ev DocumentCompletedEvent) error {
	err := p.publish(ctx, DocumentCompletedQueue, ev)
	if err != nil {
		p.log.Warn("publish completion failed", zap.String("document_id", ev.DocumentID), zap.Error(err))
	}
	return err
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
