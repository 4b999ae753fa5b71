package mq

import (
	"context"
	"fmt"

	"github.com/skilltracker/apiserver/config"
)

// FromConfig builds an MQ for the configured provider. It returns
// (nil, nil) when no provider is configured; callers treat a nil MQ as
// "publishing disabled".
func FromConfig(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return New(backend), nil
	case "pubsub":
		backend, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return New(backend), nil
	default:
		return nil, fmt.Errorf("unknown mq provider %q", cfg.Provider)
	}
}
