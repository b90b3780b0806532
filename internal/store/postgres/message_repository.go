package postgres

import (
	"chat-sync-service/internal/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db}
}

func (r *MessageRepository) Create(msg *models.Message) error {
	return r.db.Create(msg).Error
}

func (r *MessageRepository) FindByID(id uint) (*models.Message, error) {
	var msg models.Message
	err := r.db.Preload("Sender").First(&msg, id).Error
	return &msg, err
}

func (r *MessageRepository) FindByChat(chatID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, err
}

func (r *MessageRepository) LatestInChat(chatID uint) (*models.Message, error) {
	var msg models.Message
	err := r.db.Preload("Sender").
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		First(&msg).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *MessageRepository) CountInChat(chatID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Message{}).Where("chat_id = ?", chatID).Count(&count).Error
	return count, err
}

func (r *MessageRepository) CountUnread(chatID, userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Message{}).
		Where("chat_id = ? AND sender_id <> ?", chatID, userID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads WHERE message_reads.message_id = messages.id AND message_reads.user_id = ?)", userID).
		Count(&count).Error
	return count, err
}

// MarkChatRead bulk-appends the user to every unread message in the chat.
// ON CONFLICT DO NOTHING gives the append set semantics.
func (r *MessageRepository) MarkChatRead(chatID, userID uint) error {
	return r.db.Exec(`
		INSERT INTO message_reads (message_id, user_id)
		SELECT m.id, ? FROM messages m
		WHERE m.chat_id = ? AND m.deleted_at IS NULL
		ON CONFLICT DO NOTHING`,
		userID, chatID).Error
}

func (r *MessageRepository) MarkMessageRead(messageID, userID uint) error {
	return r.db.Exec(`
		INSERT INTO message_reads (message_id, user_id)
		VALUES (?, ?)
		ON CONFLICT DO NOTHING`,
		messageID, userID).Error
}
