package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "bidhub/pkg/domain"
)

// channelPrefix namespaces per-user notification channels; the frontend
// gateway subscribes to notifications:user:<uuid>.
const channelPrefix = "notifications:user:"

// Redis publishes ban notifications over Redis pub/sub.
type Redis struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) BanIssued(ctx context.Context, userID id.UserID, until time.Time, reason string) error {
	return r.publish(ctx, Message{UserID: userID, Type: TypeBanIssued, Reason: reason, Until: until})
}

func (r *Redis) BanLifted(ctx context.Context, userID id.UserID) error {
	return r.publish(ctx, Message{UserID: userID, Type: TypeBanLifted})
}

func (r *Redis) publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	channel := channelPrefix + msg.UserID.String()
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
