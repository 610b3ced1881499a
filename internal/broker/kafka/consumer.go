package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/DispatchBox/internal/broker/messages"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r messageReader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return &Consumer{
		r: kafka.NewReader(cfg),
	}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume читает сообщения до первой ошибки. Коммит только после успешного
// handler: необработанное сообщение придёт снова.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		if err := handler(msg.Key, msg.Value); err != nil {
			return err
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

// ConsumeStateEvents декодирует события смены состояний контролов.
// Сообщение, которое не разбирается как JSON, повтором не исправить:
// оно логируется и коммитится.
func (c *Consumer) ConsumeStateEvents(ctx context.Context, handler func(ctx context.Context, ev messages.ControlStateChanged) error) error {
	return c.Consume(ctx, func(key, value []byte) error {
		var ev messages.ControlStateChanged
		if err := json.Unmarshal(value, &ev); err != nil {
			slog.WarnContext(ctx, "skip malformed state event", "key", string(key), "err", err)
			return nil
		}
		return handler(ctx, ev)
	})
}
