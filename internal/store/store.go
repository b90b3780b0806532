// Package store defines the persistence collaborators consumed by the
// realtime core. The database is the system of record for messages and read
// receipts; in-memory realtime state is advisory and reconstructible.
package store

import (
	"chat-sync-service/internal/models"
)

type UserStore interface {
	FindByID(id uint) (*models.User, error)
	// SetOnline / SetOffline update the persisted presence flags and last-seen
	// timestamp. Callers treat failures as non-fatal.
	SetOnline(id uint) error
	SetOffline(id uint) error
}

type ChatStore interface {
	FindByID(id uint) (*models.Chat, error)
	FindWithMembers(id uint) (*models.Chat, error)
	FindChatsForUser(userID uint) ([]models.Chat, error)
	UpdateLatestMessage(chatID, messageID uint) error
}

type MessageStore interface {
	Create(msg *models.Message) error
	FindByID(id uint) (*models.Message, error)
	FindByChat(chatID uint) ([]models.Message, error)
	LatestInChat(chatID uint) (*models.Message, error)

	// CountInChat counts all messages ever sent to the chat.
	CountInChat(chatID uint) (int64, error)

	// CountUnread is the canonical unread-count definition: messages in the
	// chat sent by someone else that do not yet carry userID in their read
	// receipt set. Never cached, always recomputed.
	CountUnread(chatID, userID uint) (int64, error)

	// MarkChatRead appends userID to the read receipt of every message in the
	// chat not already containing it. Set semantics: re-running is a no-op.
	MarkChatRead(chatID, userID uint) error

	// MarkMessageRead appends userID to one message's read receipt.
	MarkMessageRead(messageID, userID uint) error
}
