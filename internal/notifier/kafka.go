package notifier

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"log/slog"

	"chat-sync-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// PushJob is the record emitted for each offline recipient of a message.
type PushJob struct {
	UserID    uint            `json:"userId"`
	MessageID uint            `json:"messageId"`
	ChatID    uint            `json:"chatId"`
	// Title is what the push banner shows: the chat name for group chats,
	// the sender's name for direct ones.
	Title   string          `json:"title"`
	Sender  *models.UserRef `json:"sender,omitempty"`
	Preview string          `json:"preview"`
	SentAt  time.Time       `json:"sentAt"`
}

// PushNotifier publishes push jobs to Kafka. Records are keyed by recipient
// so one user's notifications stay on one partition, in order.
type PushNotifier struct {
	writer *kafka.Writer
}

func NewPushNotifier(brokers []string, topic string) *PushNotifier {
	return &PushNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

func (n *PushNotifier) Notify(ctx context.Context, user *models.User, msg *models.Message, chat *models.Chat, sender *models.User) {
	job := PushJob{
		UserID:    user.ID,
		MessageID: msg.ID,
		ChatID:    chat.ID,
		Title:     chat.Name,
		Preview:   msg.Preview(),
		SentAt:    msg.CreatedAt,
	}
	if sender != nil {
		ref := sender.Ref()
		job.Sender = &ref
		if !chat.IsGroup() {
			job.Title = sender.Username
		}
	}

	data, err := json.Marshal(job)
	if err != nil {
		slog.Error("Failed to marshal push job", "userID", user.ID, "messageID", msg.ID, "error", err)
		return
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(user.ID), 10)),
		Value: data,
	})
	if err != nil {
		slog.Error("Failed to publish push job", "userID", user.ID, "messageID", msg.ID, "error", err)
		return
	}

	slog.Debug("Push job published", "userID", user.ID, "messageID", msg.ID)
}

func (n *PushNotifier) Close() error {
	return n.writer.Close()
}
