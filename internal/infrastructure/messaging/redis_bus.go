package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/alem-quest/internal/domain/shared"
	"github.com/alem-hub/alem-quest/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "alem-quest:events"

// RedisEventBus is a Redis Pub/Sub based implementation of EventBus.
// Events are delivered to local handlers directly and to other instances
// through the channel. Pub/sub is fire-and-forget: an instance that is
// down when an event is published never sees it.
type RedisEventBus struct {
	client      *redis.Client
	pubsub      *redis.PubSub
	localBus    *InMemoryEventBus
	channelName string
	instanceID  string
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
}

// RedisEventBusConfig contains configuration for RedisEventBus.
type RedisEventBusConfig struct {
	Client *redis.Client

	// ChannelName defaults to DefaultChannel.
	ChannelName string

	// InstanceID identifies this instance so it can skip its own messages.
	// Generated when empty.
	InstanceID string

	LocalBusConfig InMemoryEventBusConfig

	Logger *slog.Logger
}

// NewRedisEventBus subscribes to the channel and starts the receive loop.
func NewRedisEventBus(ctx context.Context, config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.ChannelName == "" {
		config.ChannelName = DefaultChannel
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}
	log := logger.OrDefault(config.Logger).With(logger.Component("redis_eventbus"))
	if config.LocalBusConfig.Logger == nil {
		config.LocalBusConfig.Logger = config.Logger
	}

	pubsub := config.Client.Subscribe(ctx, config.ChannelName)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", config.ChannelName, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	bus := &RedisEventBus{
		client:      config.Client,
		pubsub:      pubsub,
		localBus:    NewInMemoryEventBus(config.LocalBusConfig),
		channelName: config.ChannelName,
		instanceID:  config.InstanceID,
		logger:      log,
		ctx:         loopCtx,
		cancel:      cancel,
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		bus.subscriptionLoop(pubsub.Channel())
	}()

	return bus, nil
}

// Subscribe registers a handler for a specific event type.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) (shared.Subscription, error) {
	return b.localBus.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler for all events.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) (shared.Subscription, error) {
	return b.localBus.SubscribeAll(handler)
}

// Publish delivers the event locally and then to Redis. A Redis failure is
// returned after local delivery has happened.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	b.mu.RUnlock()

	data, err := encodeMessage(b.instanceID, event)
	if err != nil {
		return err
	}

	if err := b.localBus.Publish(event); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(b.ctx, 2*time.Second)
	defer cancel()
	if err := b.client.Publish(ctx, b.channelName, data).Err(); err != nil {
		b.logger.Error("failed to publish to redis", "event_type", string(event.EventType()), logger.Err(err))
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

// subscriptionLoop processes messages from Redis until Close.
func (b *RedisEventBus) subscriptionLoop(messages <-chan *redis.Message) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.handleRedisMessage(msg.Payload)
		}
	}
}

func (b *RedisEventBus) handleRedisMessage(payload string) {
	instanceID, event, err := decodeMessage(payload)
	if err != nil {
		b.logger.Error("failed to decode event", logger.Err(err))
		return
	}

	// Already delivered locally by Publish.
	if instanceID == b.instanceID {
		return
	}

	if err := b.localBus.Publish(event); err != nil {
		b.logger.Error("failed to process remote event", logger.Err(err))
	}
}

// Close unsubscribes and shuts down the local bus.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	if err := b.pubsub.Close(); err != nil {
		b.logger.Warn("failed to close subscription", logger.Err(err))
	}
	b.wg.Wait()

	if err := b.localBus.Close(); err != nil {
		b.logger.Error("failed to close local bus", logger.Err(err))
	}

	b.logger.Info("redis event bus closed")
	return nil
}

// Metrics returns the current metrics from the local bus.
func (b *RedisEventBus) Metrics() *EventBusMetrics {
	return b.localBus.Metrics()
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

type redisMessage struct {
	InstanceID string               `json:"instance_id"`
	Event      shared.EventEnvelope `json:"event"`
}

func encodeMessage(instanceID string, event shared.Event) ([]byte, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	envelope := shared.EventEnvelope{
		ID:          uuid.NewString(),
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}
	if base, ok := baseOf(event); ok {
		envelope.Version = base.Version
		envelope.CorrelationID = base.CorrelationID
	}

	return json.Marshal(redisMessage{InstanceID: instanceID, Event: envelope})
}

func decodeMessage(data string) (string, shared.Event, error) {
	var msg redisMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return "", nil, fmt.Errorf("unmarshal message: %w", err)
	}

	payload := map[string]interface{}{}
	if len(msg.Event.Payload) > 0 {
		if err := json.Unmarshal(msg.Event.Payload, &payload); err != nil {
			return "", nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	return msg.InstanceID, &remoteEvent{envelope: msg.Event, payload: payload}, nil
}

// baseOf extracts the BaseEvent of the built-in event types.
func baseOf(event shared.Event) (shared.BaseEvent, bool) {
	switch e := event.(type) {
	case shared.ProfileCreatedEvent:
		return e.BaseEvent, true
	case shared.XPAwardedEvent:
		return e.BaseEvent, true
	case shared.StreakReconciledEvent:
		return e.BaseEvent, true
	case shared.AttemptRecordedEvent:
		return e.BaseEvent, true
	case shared.ChallengeCompletedEvent:
		return e.BaseEvent, true
	case shared.LessonCompletedEvent:
		return e.BaseEvent, true
	}
	return shared.BaseEvent{}, false
}

// remoteEvent is an event received from another instance. Payload numbers
// decode as float64.
type remoteEvent struct {
	envelope shared.EventEnvelope
	payload  map[string]interface{}
}

func (e *remoteEvent) EventType() shared.EventType     { return e.envelope.Type }
func (e *remoteEvent) AggregateID() string             { return e.envelope.AggregateID }
func (e *remoteEvent) OccurredAt() time.Time           { return e.envelope.Timestamp }
func (e *remoteEvent) Payload() map[string]interface{} { return e.payload }

// EnvelopeID returns the id assigned when the event was sent.
func (e *remoteEvent) EnvelopeID() string { return e.envelope.ID }
