package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/domain/providers"
	redisclient "github.com/zatekoja/smartcare/backend/internal/infrastructure/clients/redis"
)

const subscriberBuffer = 100

// RedisEventBus carries queue events between the API and stream processes over
// Redis pub/sub. One Redis subscription per channel is shared by every local
// subscriber of that channel.
type RedisEventBus struct {
	client        *redisclient.Client
	subscriptions map[string]*redis.PubSub
	subscribers   map[string]map[chan *entities.QueueEvent]struct{}
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:        client,
		subscriptions: make(map[string]*redis.PubSub),
		subscribers:   make(map[string]map[chan *entities.QueueEvent]struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Publish publishes an event to every subscriber of channel
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.QueueEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	log.Debug().Str("channel", channel).Str("event_id", event.ID).Str("event_type", string(event.Type)).Msg("Published queue event")
	return nil
}

// Subscribe returns a channel of events that closes when ctx is done or the
// channel is unsubscribed
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.QueueEvent, error) {
	b.mu.Lock()
	if b.ctx.Err() != nil {
		b.mu.Unlock()
		return nil, errors.New("event bus is closed")
	}
	if _, exists := b.subscriptions[channel]; !exists {
		pubsub := b.client.Client().Subscribe(b.ctx, channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			b.mu.Unlock()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}
		b.subscriptions[channel] = pubsub
		go b.receiveMessages(channel, pubsub)
	}
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[chan *entities.QueueEvent]struct{})
	}
	eventChan := make(chan *entities.QueueEvent, subscriberBuffer)
	b.subscribers[channel][eventChan] = struct{}{}
	count := len(b.subscribers[channel])
	b.mu.Unlock()

	log.Info().Str("channel", channel).Int("subscribers", count).Msg("Subscribed to queue events")

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.removeSubscriber(channel, eventChan)
	}()

	return eventChan, nil
}

func (b *RedisEventBus) receiveMessages(channel string, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event entities.QueueEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("Discarding malformed queue event")
				continue
			}

			b.mu.RLock()
			for sub := range b.subscribers[channel] {
				ev := event
				select {
				case sub <- &ev:
				default:
					log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("Subscriber too slow, skipping event")
				}
			}
			b.mu.RUnlock()
		}
	}
}

func (b *RedisEventBus) removeSubscriber(channel string, eventChan chan *entities.QueueEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, exists := b.subscribers[channel]
	if !exists {
		return
	}
	if _, ok := subs[eventChan]; !ok {
		return
	}
	delete(subs, eventChan)
	close(eventChan)

	if len(subs) == 0 {
		b.closeChannelLocked(channel)
	}
}

// closeChannelLocked drops every subscriber of channel and its Redis subscription
func (b *RedisEventBus) closeChannelLocked(channel string) error {
	for sub := range b.subscribers[channel] {
		close(sub)
	}
	delete(b.subscribers, channel)

	pubsub, ok := b.subscriptions[channel]
	if !ok {
		return nil
	}
	delete(b.subscriptions, channel)
	if err := pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	log.Info().Str("channel", channel).Msg("Closed queue event subscription")
	return nil
}

// Unsubscribe closes every local subscriber of channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeChannelLocked(channel)
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for channel := range b.subscriptions {
		if err := b.closeChannelLocked(channel); err != nil {
			errs = append(errs, err)
		}
	}
	for channel := range b.subscribers {
		for sub := range b.subscribers[channel] {
			close(sub)
		}
		delete(b.subscribers, channel)
	}
	return errors.Join(errs...)
}
