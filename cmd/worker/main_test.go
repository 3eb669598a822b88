package main

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"otp-auth-service/internal/logger"
)

// scriptedReader returns its results in order, then cancels the context and blocks.
type scriptedReader struct {
	results []error
	cancel  context.CancelFunc
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.results) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	err := r.results[0]
	r.results = r.results[1:]
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Value: []byte(`{"eventType":"login_succeeded"}`)}, nil
}

type countingPusher struct {
	calls int
	fail  map[int]bool
}

func (p *countingPusher) PushEventJSON(ctx context.Context, raw []byte) error {
	p.calls++
	if p.fail[p.calls] {
		return errors.New("loki unavailable")
	}
	return nil
}

func TestConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &scriptedReader{
		results: []error{nil, errors.New("rebalance"), nil, nil},
		cancel:  cancel,
	}
	pusher := &countingPusher{fail: map[int]bool{2: true}}

	got := consume(ctx, reader, pusher, logger.Discard())
	if pusher.calls != 3 {
		t.Errorf("push calls = %d, want 3 (read error skipped)", pusher.calls)
	}
	if got != 2 {
		t.Errorf("pushed = %d, want 2 (one push failed)", got)
	}
}
