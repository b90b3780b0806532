package realtime

import (
	"log/slog"

	"chat-sync-service/internal/store"
)

// ReadSync reconciles read receipts with room presence: a message counts as
// read by a user once that user has a live connection joined to the message's
// chat room. The store's append is set-semantics, so re-running any sync is
// harmless.
type ReadSync struct {
	messages store.MessageStore
	rooms    *Rooms
}

func NewReadSync(messages store.MessageStore, rooms *Rooms) *ReadSync {
	return &ReadSync{
		messages: messages,
		rooms:    rooms,
	}
}

// SyncOnJoin marks the whole chat read for the joining user, announces the
// read to the room, and refreshes the joiner's chat list entry (unread drops
// to zero by definition of the join).
func (s *ReadSync) SyncOnJoin(chatID uint, client *Client) error {
	userID := client.userID

	if err := s.messages.MarkChatRead(chatID, userID); err != nil {
		return err
	}

	s.rooms.Broadcast(ChatRoom(chatID), NewMessagesReadEvent(chatID, userID), nil)

	last, err := s.messages.LatestInChat(chatID)
	if err != nil {
		slog.Error("Failed to load latest message", "chatID", chatID, "userID", userID, "error", err)
		last = nil
	}
	client.SendEvent(NewChatListUpdateEvent(chatID, last, 0))

	slog.Debug("Read receipts synced on join", "chatID", chatID, "userID", userID)
	return nil
}

// MarkRead appends one user to one message's receipt. Used by the fan-out
// co-presence rule before unread counts are computed.
func (s *ReadSync) MarkRead(messageID, userID uint) error {
	return s.messages.MarkMessageRead(messageID, userID)
}

// UnreadCount recomputes the canonical unread count for a (user, chat) pair.
func (s *ReadSync) UnreadCount(chatID, userID uint) (int64, error) {
	return s.messages.CountUnread(chatID, userID)
}
