package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/apperrors"
)

// Handler processes the payload of one message.
type Handler func(ctx context.Context, payload []byte) error

// JSON returns a handler decoding the payload into T before calling fn.
func JSON[T any](fn func(ctx context.Context, event T) error) Handler {
	return func(ctx context.Context, payload []byte) error {
		var event T
		if err := json.Unmarshal(payload, &event); err != nil {
			return apperrors.ErrInvalidArgument.MsgErr("malformed event payload", err)
		}
		return fn(ctx, event)
	}
}

// PubSubClient is implemented by *redis.Client.
type PubSubClient interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Subscriber dispatches the messages published on redis channels to their
// handler.
type Subscriber struct {
	client   PubSubClient
	handlers map[string]Handler
}

// NewSubscriber returns a subscriber for the channels of handlers.
func NewSubscriber(client PubSubClient, handlers map[string]Handler) *Subscriber {
	return &Subscriber{client: client, handlers: handlers}
}

// Run listens until ctx is done. Handler errors are logged and do not stop
// the subscriber.
func (s *Subscriber) Run(ctx context.Context) error {
	channels := make([]string, 0, len(s.handlers))
	for ch := range s.handlers {
		channels = append(channels, ch)
	}

	pubsub := s.client.Subscribe(ctx, channels...)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %v: %w", channels, err)
	}
	log.Info().Strs("channels", channels).Msg("Listening for events")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			_ = s.Dispatch(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

// Dispatch runs the handler of channel on payload.
func (s *Subscriber) Dispatch(ctx context.Context, channel string, payload []byte) error {
	logger := log.With().Str("channel", channel).Logger()
	handler, ok := s.handlers[channel]
	if !ok {
		logger.Warn().Msg("No handler for event")
		return fmt.Errorf("no handler for channel %q", channel)
	}
	if err := handler(logger.WithContext(ctx), payload); err != nil {
		logger.Error().Err(err).Msg("Event handling failed")
		return err
	}
	logger.Debug().Msg("Event handled")
	return nil
}
