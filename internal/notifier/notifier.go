// Package notifier is the boundary to the push-notification pipeline. The
// fan-out path calls it once per offline chat member; everything downstream
// (payload construction, APNs/FCM dispatch) lives in a separate consumer.
package notifier

import (
	"context"

	"chat-sync-service/internal/models"
)

type Notifier interface {
	// Notify is fire-and-forget: implementations log failures and never
	// surface them to the fan-out path.
	Notify(ctx context.Context, user *models.User, msg *models.Message, chat *models.Chat, sender *models.User)
}

// Noop discards notifications. Used when no Kafka brokers are configured.
type Noop struct{}

func (Noop) Notify(context.Context, *models.User, *models.Message, *models.Chat, *models.User) {}
