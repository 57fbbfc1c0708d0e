package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

const (
	UpdatesChannel = "leaderboard:updates"
	publishTimeout = 2 * time.Second
)

// UpdateRelay routes leaderboard updates through Redis pub/sub so every
// instance's local hub sees changes made by any instance.
type UpdateRelay struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewUpdateRelay(client *redis.Client, logger *zap.Logger) *UpdateRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpdateRelay{client: client, channel: UpdatesChannel, logger: logger}
}

// Publish is best effort; a lost update is repaired by the next one for the group.
func (r *UpdateRelay) Publish(update domain.GroupUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		r.logger.Error("encode group update", zap.String("group", update.Key.String()), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Warn("relay group update", zap.String("group", update.Key.String()), zap.Error(err))
	}
}

// Run forwards relayed updates to local until ctx is cancelled.
func (r *UpdateRelay) Run(ctx context.Context, local app.Broadcaster) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var update domain.GroupUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				r.logger.Warn("decode relayed update", zap.Error(err))
				continue
			}
			local.Publish(update)
		}
	}
}
