package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prodigy-ranking/backend/internal/contracts"
	"github.com/prodigy-ranking/backend/pkg/logger"
	"github.com/prodigy-ranking/backend/pkg/redis"
)

// EventsChannel carries events between the scheduler and API processes
const EventsChannel = "prodigy:events"

// RedisPublisher sends events to EventsChannel for hubs in other processes
type RedisPublisher struct {
	client *redis.Client
	logger *logger.Logger
}

// NewRedisPublisher creates a new publisher
func NewRedisPublisher(client *redis.Client, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		logger: log,
	}
}

// NotifyPublished publishes the event; a failure is logged, never returned
func (p *RedisPublisher) NotifyPublished(summary contracts.RunSummary) {
	if !p.client.Enabled() {
		return
	}

	data, err := json.Marshal(PublishedEvent(summary))
	if err != nil {
		p.logger.WithError(err).Error("Failed to marshal stream event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.client.Redis().Publish(ctx, EventsChannel, data).Err(); err != nil {
		p.logger.WithError(err).Warn("Failed to publish stream event")
	}
}

// Relay forwards EventsChannel messages to the hub until ctx is cancelled
func (h *Hub) Relay(ctx context.Context, client *redis.Client) {
	if !client.Enabled() {
		return
	}

	sub := client.Redis().Subscribe(ctx, EventsChannel)
	defer sub.Close()

	h.logger.WithField("channel", EventsChannel).Info("Relaying stream events from Redis")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcastRaw([]byte(msg.Payload))
		}
	}
}
