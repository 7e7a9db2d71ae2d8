package cdc

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/Shopify/sarama"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Consumer is a long-running message pump. Start blocks until Stop is
// called or the pump fails.
type Consumer interface {
	Start() error
	Stop() error
}

// AttachConsumerHooks starts the consumer in the background when the
// application starts and stops it on shutdown. A failing consumer brings
// the whole process down so the orchestrator can restart it.
func AttachConsumerHooks(consumer Consumer, lifecycle fx.Lifecycle, shutdowner fx.Shutdowner) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := consumer.Start(); err != nil {
					log.Printf("error from consumer: %v", err)
					if err := shutdowner.Shutdown(); err != nil {
						log.Printf("error shutting down: %v", err)
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return consumer.Stop()
		},
	})
}

// GroupConsumer runs a sarama consumer group over a single topic and
// feeds every message to the configured handler.
type GroupConsumer struct {
	config  Config
	topic   string
	handler MessageHandler
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	group   sarama.ConsumerGroup
	cancel  context.CancelFunc
	stopped bool
	done    chan struct{}
}

func NewGroupConsumer(config Config, topic string, handler MessageHandler, logger *zap.SugaredLogger) *GroupConsumer {
	return &GroupConsumer{
		config:  config,
		topic:   topic,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (g *GroupConsumer) Start() error {
	saramaConfig, err := g.config.SaramaConfig()
	if err != nil {
		return err
	}

	group, err := sarama.NewConsumerGroup(g.config.BrokerList(), g.config.ConsumerGroup, saramaConfig)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		cancel()
		return group.Close()
	}
	g.group = group
	g.cancel = cancel
	g.mu.Unlock()

	defer close(g.done)
	handler := &groupHandler{handler: g.handler, logger: g.logger}
	for {
		if err := group.Consume(ctx, []string{g.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (g *GroupConsumer) Stop() error {
	g.mu.Lock()
	g.stopped = true
	cancel := g.cancel
	group := g.group
	g.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := group.Close()
	<-g.done
	return err
}

type groupHandler struct {
	handler MessageHandler
	logger  *zap.SugaredLogger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := h.handler.HandleMessage(message); err != nil {
			h.logger.Errorw("unable to process message", "topic", message.Topic, "offset", message.Offset, zap.Error(err))
			return err
		}
		session.MarkMessage(message, "")
	}
	return nil
}
