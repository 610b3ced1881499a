package kafka

import (
	"context"
	"encoding/json"

	"github.com/BearBump/DispatchBox/internal/broker/messages"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Producer struct {
	w messageWriter
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.Hash{},
		},
	}
}

func newProducerWithWriter(w messageWriter) *Producer {
	return &Producer{w: w}
}

func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	}); err != nil {
		return errors.Wrap(err, "kafka publish")
	}
	return nil
}

func (p *Producer) Close() error {
	if c, ok := p.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// StateEvents публикует смены состояний контролов в один топик.
// Ключ сообщения: id контрола, чтобы события одного контрола шли по порядку.
type StateEvents struct {
	p     *Producer
	topic string
}

func NewStateEvents(p *Producer, topic string) *StateEvents {
	return &StateEvents{p: p, topic: topic}
}

func (s *StateEvents) Publish(ctx context.Context, ev messages.ControlStateChanged) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	return s.p.Publish(ctx, s.topic, []byte(ev.ControlID), b)
}
