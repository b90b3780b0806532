package postgres

import (
	"chat-sync-service/internal/models"

	"gorm.io/gorm"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db}
}

func (r *ChatRepository) FindByID(id uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.First(&chat, id).Error
	return &chat, err
}

func (r *ChatRepository) FindWithMembers(id uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.Preload("Members", func(db *gorm.DB) *gorm.DB {
		return db.Select("id, username, email, avatar, created_at, updated_at, deleted_at")
	}).First(&chat, id).Error
	return &chat, err
}

func (r *ChatRepository) FindChatsForUser(userID uint) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.
		Preload("LatestMessage").
		Joins("JOIN chat_members ON chats.id = chat_members.chat_id").
		Where("chat_members.user_id = ?", userID).
		Find(&chats).Error
	return chats, err
}

func (r *ChatRepository) UpdateLatestMessage(chatID, messageID uint) error {
	return r.db.Model(&models.Chat{}).Where("id = ?", chatID).
		Update("latest_message_id", messageID).Error
}
