package notify

import (
	"context"
	"encoding/json"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/partdash/partdash-backend/pkg/logger"
	"github.com/partdash/partdash-backend/pkg/pubsub"
)

// Transport fans events out to interested parties. Calls happen strictly
// after the financial transaction commits and are fire-and-forget:
// a delivery failure never invalidates the financial outcome.
type Transport interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

// PubSubTransport publishes notification events to the configured topic with
// the target channel carried as a message attribute.
type PubSubTransport struct {
	client *pubsub.Client
	logg   *logger.Logger
}

// NewPubSubTransport wires the Pub/Sub backed transport.
func NewPubSubTransport(client *pubsub.Client, logg *logger.Logger) (*PubSubTransport, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client required")
	}
	return &PubSubTransport{client: client, logg: logg}, nil
}

func (t *PubSubTransport) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	publisher := t.client.NotificationPublisher()
	if publisher == nil {
		return fmt.Errorf("notification topic not configured")
	}
	result := publisher.Publish(ctx, &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"channel": channel,
			"event":   event,
		},
	})
	// At-most-once from this core's perspective; we surface the publish error
	// to the caller's log but never await redelivery.
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event, channel, err)
	}
	if t.logg != nil {
		logCtx := t.logg.WithFields(ctx, map[string]any{"channel": channel, "event": event})
		t.logg.Info(logCtx, "notification published")
	}
	return nil
}

// NopTransport drops every event. Used by tests and the migrate binary.
type NopTransport struct{}

func (NopTransport) Publish(context.Context, string, string, any) error { return nil }
