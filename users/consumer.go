package users

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/medipass/hospital-worker/cdc"
)

const (
	AccountEventsTopic = "account-events"

	AccountDeletedEventType = "com.medipass.account.deleted"

	handlerTimeout = 30 * time.Second
)

var ConsumerModule = fx.Provide(fx.Annotated{
	Group:  "consumers",
	Target: NewEventConsumer,
})

// NewEventConsumer consumes account lifecycle events published by the
// identity provider and cascades account deletions into the document
// database.
func NewEventConsumer(config cdc.Config, usersStore *Store, logger *zap.SugaredLogger) (cdc.Consumer, error) {
	// The CDC topics use '.' as separator; the topics we manage use '-'.
	prefix := config.TopicPrefix
	if strings.HasSuffix(prefix, ".") {
		prefix = strings.TrimSuffix(prefix, ".") + "-"
	}

	handler := NewAccountEventHandler(usersStore, logger)
	return cdc.NewGroupConsumer(config, prefix+AccountEventsTopic, cdc.NewRetryingHandler(handler), logger), nil
}

type accountEventHandler struct {
	users  *Store
	logger *zap.SugaredLogger
}

func NewAccountEventHandler(users *Store, logger *zap.SugaredLogger) cdc.MessageHandler {
	return &accountEventHandler{
		users:  users,
		logger: logger,
	}
}

func (h *accountEventHandler) HandleMessage(message *sarama.ConsumerMessage) error {
	event := cloudevents.NewEvent()
	if err := json.Unmarshal(message.Value, &event); err != nil {
		h.logger.Warnw("skipping undecodable account event", "offset", message.Offset, zap.Error(err))
		return nil
	}

	if event.Type() != AccountDeletedEventType {
		return nil
	}

	payload := struct {
		UserID string `json:"userId"`
	}{}
	if err := event.DataAs(&payload); err != nil {
		h.logger.Warnw("skipping account event with malformed payload", "offset", message.Offset, zap.Error(err))
		return nil
	}
	if payload.UserID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	h.logger.Infow("cascading account deletion", "userId", payload.UserID)
	if err := h.users.CascadeDelete(ctx, payload.UserID); err != nil {
		return fmt.Errorf("unable to cascade deletion of %s: %w", payload.UserID, err)
	}
	return nil
}
