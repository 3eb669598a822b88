package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"otp-auth-service/internal/telemetry/domain"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	deadline bool
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.deadline = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaProducer_DisabledWithoutBrokersOrTopic(t *testing.T) {
	for _, tc := range []struct {
		brokers []string
		topic   string
	}{
		{nil, "t"},
		{[]string{"localhost:9092"}, ""},
	} {
		p, err := NewKafkaProducer(tc.brokers, tc.topic)
		if p != nil || err != nil {
			t.Errorf("NewKafkaProducer(%v, %q) = (%v, %v), want (nil, nil)", tc.brokers, tc.topic, p, err)
		}
	}
	p, err := NewKafkaProducer([]string{"localhost:9092"}, "otp-auth-events")
	if err != nil || p == nil {
		t.Fatalf("NewKafkaProducer = (%v, %v)", p, err)
	}
	if p.Topic() != "otp-auth-events" {
		t.Errorf("Topic = %q", p.Topic())
	}
	_ = p.Close()
}

func TestKafkaProducer_Emit(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "otp-auth-events"}
	at := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	err := p.Emit(context.Background(), &domain.AuthEvent{EventType: domain.EventLoginSucceeded, UserID: "u1", CreatedAt: at})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	m := w.msgs[0]
	if string(m.Key) != "u1" || !m.Time.Equal(at) {
		t.Errorf("message key/time = %q/%v", m.Key, m.Time)
	}
	var got domain.AuthEvent
	if err := json.Unmarshal(m.Value, &got); err != nil || got.EventType != domain.EventLoginSucceeded {
		t.Errorf("value = %s (%v)", m.Value, err)
	}
	if !w.deadline {
		t.Error("write should be bounded by a timeout")
	}
}

func TestKafkaProducer_EmitWithoutUserHasNoKey(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w}
	_ = p.Emit(context.Background(), &domain.AuthEvent{EventType: domain.EventOTPRequested})
	if w.msgs[0].Key != nil {
		t.Errorf("key = %q, want nil", w.msgs[0].Key)
	}
}

func TestKafkaProducer_EmitError(t *testing.T) {
	boom := errors.New("broker unavailable")
	p := &KafkaProducer{writer: &fakeWriter{err: boom}}
	if err := p.Emit(context.Background(), &domain.AuthEvent{EventType: domain.EventOTPRequested}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want broker error", err)
	}
}

func TestKafkaProducer_NilSafe(t *testing.T) {
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &domain.AuthEvent{}); err != nil {
		t.Errorf("nil Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
	w := &fakeWriter{}
	if err := (&KafkaProducer{writer: w}).Emit(context.Background(), nil); err != nil || len(w.msgs) != 0 {
		t.Error("nil event should be ignored")
	}
}
