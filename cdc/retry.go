package cdc

import (
	"time"

	"github.com/Shopify/sarama"
	"github.com/avast/retry-go"
)

var (
	DefaultAttempts  = uint(5000)
	DefaultDelay     = 1 * time.Minute
	DefaultDelayType = retry.FixedDelay
)

// MessageHandler processes a single message from a CDC topic.
type MessageHandler interface {
	HandleMessage(cm *sarama.ConsumerMessage) error
}

type MessageHandlerFunc func(cm *sarama.ConsumerMessage) error

func (f MessageHandlerFunc) HandleMessage(cm *sarama.ConsumerMessage) error {
	return f(cm)
}

// RetryingHandler retries the delegate until it succeeds or the attempt
// budget is exhausted, keeping the partition blocked in the meantime so
// events are never skipped.
type RetryingHandler struct {
	attempts  uint
	delay     time.Duration
	delayType retry.DelayTypeFunc
	delegate  MessageHandler
}

func NewRetryingHandler(delegate MessageHandler) MessageHandler {
	return &RetryingHandler{
		attempts:  DefaultAttempts,
		delay:     DefaultDelay,
		delayType: DefaultDelayType,
		delegate:  delegate,
	}
}

func (r *RetryingHandler) HandleMessage(cm *sarama.ConsumerMessage) error {
	retryFn := func() error { return r.delegate.HandleMessage(cm) }
	return retry.Do(
		retryFn,
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(r.delayType),
	)
}
