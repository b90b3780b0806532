package realtime

import (
	"context"
	"fmt"

	"log/slog"

	"chat-sync-service/internal/models"
	"chat-sync-service/internal/notifier"
	"chat-sync-service/internal/store"
)

// Fanout distributes a newly created message to the chat's members: realtime
// delivery for members with a live connection, a push job for everyone else.
// Per-member failures are isolated; one bad member never blocks the rest.
type Fanout struct {
	users    store.UserStore
	chats    store.ChatStore
	messages store.MessageStore
	registry *Registry
	rooms    *Rooms
	readsync *ReadSync
	notifier notifier.Notifier
}

func NewFanout(
	users store.UserStore,
	chats store.ChatStore,
	messages store.MessageStore,
	registry *Registry,
	rooms *Rooms,
	readsync *ReadSync,
	n notifier.Notifier,
) *Fanout {
	return &Fanout{
		users:    users,
		chats:    chats,
		messages: messages,
		registry: registry,
		rooms:    rooms,
		readsync: readsync,
		notifier: n,
	}
}

// Dispatch fans a durably-created message out to the chat's members.
func (f *Fanout) Dispatch(ctx context.Context, msg *models.Message) error {
	chat, err := f.chats.FindWithMembers(msg.ChatID)
	if err != nil {
		return fmt.Errorf("resolving chat %d: %w", msg.ChatID, err)
	}

	room := ChatRoom(chat.ID)
	sender := f.resolveSender(chat, msg.SenderID)

	for _, member := range chat.Members {
		if member.ID == msg.SenderID {
			continue
		}
		f.deliverToMember(ctx, chat, msg, member, sender, room)
	}

	if err := f.chats.UpdateLatestMessage(chat.ID, msg.ID); err != nil {
		slog.Error("Failed to update latest message", "chatID", chat.ID, "messageID", msg.ID, "error", err)
	}

	f.announceNewChat(chat, msg)

	return nil
}

// deliverToMember handles one recipient end to end. Errors are logged here
// and never propagated, so the member loop always completes.
func (f *Fanout) deliverToMember(ctx context.Context, chat *models.Chat, msg *models.Message, member *models.User, sender *models.User, room RoomID) {
	// Co-presence in the chat room implies instant read, before the unread
	// count is computed.
	if f.rooms.IsUserInRoom(member.ID, room) {
		if err := f.readsync.MarkRead(msg.ID, member.ID); err != nil {
			slog.Error("Failed to mark co-present member read",
				"chatID", chat.ID, "messageID", msg.ID, "userID", member.ID, "error", err)
		} else {
			f.rooms.Broadcast(room, NewMessagesReadEvent(chat.ID, member.ID), nil)
		}
	}

	if _, online := f.registry.Resolve(member.ID); !online {
		// Boundary to the external push pipeline; fire-and-forget
		f.notifier.Notify(ctx, member, msg, chat, sender)
		return
	}

	f.rooms.SendToUser(member.ID, NewMessageReceivedEvent(msg))

	unread, err := f.readsync.UnreadCount(chat.ID, member.ID)
	if err != nil {
		slog.Error("Failed to compute unread count",
			"chatID", chat.ID, "userID", member.ID, "error", err)
		return
	}
	f.rooms.SendToUser(member.ID, NewChatListUpdateEvent(chat.ID, msg, unread))
}

// announceNewChat broadcasts the chat to everyone online when its first
// message lands, so members who have never seen the chat can populate it in
// their lists.
func (f *Fanout) announceNewChat(chat *models.Chat, msg *models.Message) {
	count, err := f.messages.CountInChat(chat.ID)
	if err != nil {
		slog.Error("Failed to count chat messages", "chatID", chat.ID, "error", err)
		return
	}
	if count != 1 {
		return
	}

	ev := NewChatNotificationEvent(chat)
	for _, c := range f.registry.Clients() {
		c.SendEvent(ev)
	}
	slog.Debug("New chat announced", "chatID", chat.ID, "messageID", msg.ID, "members", chat.MemberIDs())
}

func (f *Fanout) resolveSender(chat *models.Chat, senderID uint) *models.User {
	for _, m := range chat.Members {
		if m.ID == senderID {
			return m
		}
	}
	sender, err := f.users.FindByID(senderID)
	if err != nil {
		slog.Warn("Failed to resolve message sender", "senderID", senderID, "error", err)
		return nil
	}
	return sender
}
