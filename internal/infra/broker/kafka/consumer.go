package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// Consumer drives one consumer group over a fixed topic set.
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler MessageHandler
	logger  *slog.Logger
	// RetryDelay is the pause after a failed Consume call before rejoining.
	RetryDelay time.Duration
}

func NewConsumer(brokers []string, groupID string, topics []string, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	switch {
	case len(brokers) == 0:
		return nil, errors.New("kafka: no brokers configured")
	case len(topics) == 0:
		return nil, errors.New("kafka: consumer needs at least one topic")
	case handler == nil:
		return nil, errors.New("kafka: consumer needs a handler")
	}
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{
		group:      g,
		topics:     append([]string(nil), topics...),
		handler:    handler,
		logger:     logger,
		RetryDelay: 2 * time.Second,
	}, nil
}

// Run consumes until ctx ends or the group is closed. Broker hiccups are
// logged and retried rather than ending the worker.
func (c *Consumer) Run(ctx context.Context) error {
	claims := claimHandler{handler: c.handler, logger: c.logger}
	for {
		err := c.group.Consume(ctx, c.topics, claims)
		switch {
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			if c.logger != nil {
				c.logger.Warn("kafka consume failed", "topics", c.topics, "error", err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.RetryDelay):
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type claimHandler struct {
	handler MessageHandler
	logger  *slog.Logger
}

func (claimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (claimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim commits an offset only once its message was handled. Failures
// stay uncommitted and come back after the next rebalance.
func (h claimHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.handler.Handle(sess.Context(), msg); err != nil {
				if h.logger != nil {
					h.logger.Warn("kafka message not handled",
						"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
				}
				continue
			}
			sess.MarkMessage(msg, "")
		}
	}
}
