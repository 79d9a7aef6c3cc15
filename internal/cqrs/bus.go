package cqrs

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

// Supported transports
const (
	TransportGoChannel   = "gochannel"
	TransportRedisStream = "redisstream"
)

// BusConfig selects the event transport
type BusConfig struct {
	Transport string
	// TopicPrefix namespaces topics as "<prefix>-events.<EventName>"
	TopicPrefix string
	// Redis is required for the redisstream transport
	Redis redis.UniversalClient
	// ConsumerGroup should be unique per server so every instance sees every event
	ConsumerGroup string
}

// Bus owns the watermill router, the event bus publishing domain events and
// the processor dispatching them to handlers
type Bus struct {
	eventBus       *cqrs.EventBus
	eventProcessor *cqrs.EventProcessor
	router         *message.Router
	publisher      message.Publisher
	subscriber     message.Subscriber
	logger         *logger.Logger
}

// NewBus builds the publisher/subscriber pair for cfg.Transport and wires the
// event bus and processor on top
func NewBus(cfg BusConfig, log *logger.Logger) (*Bus, error) {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "settings"
	}
	watermillLogger := logger.NewWatermillAdapter(log)

	var (
		publisher  message.Publisher
		subscriber message.Subscriber
	)
	switch cfg.Transport {
	case "", TransportGoChannel:
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermillLogger)
		publisher, subscriber = ch, ch
	case TransportRedisStream:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redisstream transport requires a redis client")
		}
		if cfg.ConsumerGroup == "" {
			cfg.ConsumerGroup = fmt.Sprintf("%s-%d", cfg.TopicPrefix, time.Now().UnixNano())
		}

		pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: cfg.Redis}, watermillLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}
		sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        cfg.Redis,
			ConsumerGroup: cfg.ConsumerGroup,
		}, watermillLogger)
		if err != nil {
			_ = pub.Close()
			return nil, fmt.Errorf("failed to create subscriber: %w", err)
		}
		publisher, subscriber = pub, sub
	default:
		return nil, fmt.Errorf("unknown event transport %q", cfg.Transport)
	}

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 5 * time.Second,
	}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	topic := func(eventName string) string {
		return fmt.Sprintf("%s-events.%s", cfg.TopicPrefix, eventName)
	}

	eventBus, err := cqrs.NewEventBusWithConfig(publisher, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			return topic(params.EventName), nil
		},
		Marshaler: cqrs.JSONMarshaler{},
		Logger:    watermillLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(router, cqrs.EventProcessorConfig{
		GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
			return topic(params.EventName), nil
		},
		SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return subscriber, nil
		},
		Marshaler: cqrs.JSONMarshaler{},
		Logger:    watermillLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event processor: %w", err)
	}

	return &Bus{
		eventBus:       eventBus,
		eventProcessor: eventProcessor,
		router:         router,
		publisher:      publisher,
		subscriber:     subscriber,
		logger:         log.WithComponent("event-bus").WithField("transport", transportName(cfg.Transport)),
	}, nil
}

func transportName(t string) string {
	if t == "" {
		return TransportGoChannel
	}
	return t
}

// Publish sends event to its topic
func (b *Bus) Publish(ctx context.Context, event interface{}) error {
	return b.eventBus.Publish(ctx, event)
}

// AddHandlers registers event handlers; call before Run
func (b *Bus) AddHandlers(handlers ...cqrs.EventHandler) error {
	return b.eventProcessor.AddHandlers(handlers...)
}

// Run blocks until ctx is cancelled or the router is closed
func (b *Bus) Run(ctx context.Context) error {
	b.logger.Info("Starting event router")
	return b.router.Run(ctx)
}

// Running is closed once the router has started every handler
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router and releases the transport
func (b *Bus) Close() error {
	var firstErr error
	if err := b.router.Close(); err != nil {
		firstErr = err
	}
	if err := b.publisher.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	// gochannel uses one value for both sides
	if closer, ok := b.subscriber.(message.Publisher); !ok || closer != b.publisher {
		if err := b.subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		b.logger.Error("Failed to close event bus", zap.Error(firstErr))
	}
	return firstErr
}

// NewEventHandler is re-exported so callers need not import watermill's cqrs
func NewEventHandler[T any](name string, fn func(ctx context.Context, event *T) error) cqrs.EventHandler {
	return cqrs.NewEventHandler(name, fn)
}
