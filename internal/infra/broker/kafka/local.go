package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// LocalProducer hands published records straight to a handler in process. It
// stands in for a broker when KAFKA_BROKERS is unset so consumers still run.
type LocalProducer struct {
	Handler MessageHandler

	mu      sync.Mutex
	offsets map[string]int64
}

func (p *LocalProducer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	if p.offsets == nil {
		p.offsets = make(map[string]int64)
	}
	offset := p.offsets[topic]
	p.offsets[topic]++
	p.mu.Unlock()

	if p.Handler == nil {
		return nil
	}
	hs := recordHeaders(headers)
	msg := &sarama.ConsumerMessage{
		Topic:     topic,
		Key:       []byte(key),
		Value:     payload,
		Offset:    offset,
		Timestamp: time.Now(),
		Headers:   make([]*sarama.RecordHeader, 0, len(hs)),
	}
	for i := range hs {
		msg.Headers = append(msg.Headers, &hs[i])
	}
	return p.Handler.Handle(ctx, msg)
}
