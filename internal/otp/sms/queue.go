package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobTypeOTPSMS is the job type consumed by the communications worker.
const JobTypeOTPSMS = "otp_sms"

// Job is the message published for a queued OTP delivery.
type Job struct {
	Type        string    `json:"type"`
	PhoneNumber string    `json:"phoneNumber"`
	Code        string    `json:"code"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Publisher is the part of an AMQP channel the QueueSender needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueSender publishes OTP jobs to a durable RabbitMQ queue. A separate worker performs the
// actual SMS send.
type QueueSender struct {
	pub   Publisher
	queue string
	now   func() time.Time
	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

// NewQueueSender returns a QueueSender publishing to queue on pub.
func NewQueueSender(pub Publisher, queue string) *QueueSender {
	return &QueueSender{pub: pub, queue: queue, now: time.Now}
}

// SendOTP publishes a persistent JSON job for phone and code.
func (s *QueueSender) SendOTP(ctx context.Context, phone, code string) error {
	body, err := json.Marshal(Job{
		Type:        JobTypeOTPSMS,
		PhoneNumber: phone,
		Code:        code,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.pub.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    s.now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("sms: publish to %s: %w", s.queue, err)
	}
	return nil
}

// AMQPConn owns the connection and channel behind a QueueSender.
type AMQPConn struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialQueue connects to RabbitMQ, opens a channel and declares queue as durable.
func DialQueue(url, queue string) (*AMQPConn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("sms: dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sms: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("sms: declare queue %s: %w", queue, err)
	}
	return &AMQPConn{conn: conn, ch: ch}, nil
}

// Channel returns the publishing channel.
func (c *AMQPConn) Channel() *amqp.Channel { return c.ch }

// Close closes the channel then the connection.
func (c *AMQPConn) Close() error {
	if err := c.ch.Close(); err != nil {
		return err
	}
	return c.conn.Close()
}
