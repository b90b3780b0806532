package realtime

import (
	"encoding/json"
	"fmt"

	"log/slog"

	"chat-sync-service/internal/models"
)

// EventType identifies a realtime event using a custom enum type for better
// type safety. The names are the wire vocabulary shared with the clients.
type EventType string

const (
	// client -> server
	EventSetup           EventType = "setup"
	EventHeartbeat       EventType = "heartbeat"
	EventJoinChat        EventType = "join chat"
	EventLeaveChat       EventType = "leave chat"
	EventTyping          EventType = "typing"
	EventStopTyping      EventType = "stop typing"
	EventNewMessage      EventType = "new message"
	EventAppBackground   EventType = "app background"
	EventCheckUserStatus EventType = "check user status"
	EventUpdateChatList  EventType = "update chat list"
	// EventGetChatUpdates is an older client alias for EventUpdateChatList.
	EventGetChatUpdates EventType = "get chat updates"

	// server -> client
	EventConnected           EventType = "connected"
	EventOnlineUsers         EventType = "online users"
	EventUserOnline          EventType = "user online"
	EventUserOffline         EventType = "user offline"
	EventMessageReceived     EventType = "message received"
	EventMessagesRead        EventType = "messages read"
	EventChatListUpdate      EventType = "chat list update"
	EventNewChatNotification EventType = "new chat notification"
	EventError               EventType = "error"
)

func (et EventType) String() string {
	return string(et)
}

// IsClientEvent reports whether the type is one a client may send
func (et EventType) IsClientEvent() bool {
	switch et {
	case EventSetup, EventHeartbeat, EventJoinChat, EventLeaveChat,
		EventTyping, EventStopTyping, EventNewMessage, EventAppBackground,
		EventCheckUserStatus, EventUpdateChatList, EventGetChatUpdates:
		return true
	default:
		return false
	}
}

// Event is the wire envelope for both directions
type Event struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (e *Event) Validate() error {
	if e.Event == "" {
		return fmt.Errorf("event type is required")
	}
	return nil
}

// Unmarshal decodes the event payload into v
func (e *Event) Unmarshal(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %q has no payload", e.Event)
	}
	return json.Unmarshal(e.Data, v)
}

// Inbound payloads

type SetupData struct {
	UserID uint `json:"userId"`
}

type RoomData struct {
	ChatID uint `json:"chatId"`
}

type NewMessageData struct {
	// MessageID references an already persisted message. When zero, the
	// payload itself carries the message fields and the server persists it.
	MessageID uint    `json:"messageId,omitempty"`
	ChatID    uint    `json:"chatId"`
	Text      *string `json:"text,omitempty"`
	URL       *string `json:"url,omitempty"`
	FileName  *string `json:"fileName,omitempty"`
}

type CheckStatusData struct {
	UserID uint `json:"userId"`
}

// Outbound payloads

type PresenceData struct {
	UserID uint `json:"userId"`
}

type OnlineUsersData struct {
	UserIDs []uint `json:"userIds"`
}

type ConnectedData struct {
	ConnectionID string `json:"connectionId"`
}

type TypingData struct {
	UserID uint `json:"userId"`
	ChatID uint `json:"chatId"`
}

type MessagesReadData struct {
	ChatID uint `json:"chatId"`
	UserID uint `json:"userId"`
}

type ChatListUpdateData struct {
	ChatID      uint            `json:"chatId"`
	LastMessage *models.Message `json:"lastMessage,omitempty"`
	UnreadCount int64           `json:"unreadCount"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event constructors

func newEvent(t EventType, payload interface{}) *Event {
	ev := &Event{Event: t}
	if payload == nil {
		return ev
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal event payload", "event", t, "error", err)
		return ev
	}
	ev.Data = data
	return ev
}

func NewConnectedEvent(connectionID string) *Event {
	return newEvent(EventConnected, ConnectedData{ConnectionID: connectionID})
}

func NewOnlineUsersEvent(userIDs []uint) *Event {
	return newEvent(EventOnlineUsers, OnlineUsersData{UserIDs: userIDs})
}

func NewUserOnlineEvent(userID uint) *Event {
	return newEvent(EventUserOnline, PresenceData{UserID: userID})
}

func NewUserOfflineEvent(userID uint) *Event {
	return newEvent(EventUserOffline, PresenceData{UserID: userID})
}

func NewTypingEvent(userID, chatID uint) *Event {
	return newEvent(EventTyping, TypingData{UserID: userID, ChatID: chatID})
}

func NewStopTypingEvent(userID, chatID uint) *Event {
	return newEvent(EventStopTyping, TypingData{UserID: userID, ChatID: chatID})
}

func NewMessageReceivedEvent(msg *models.Message) *Event {
	return newEvent(EventMessageReceived, msg)
}

func NewMessagesReadEvent(chatID, userID uint) *Event {
	return newEvent(EventMessagesRead, MessagesReadData{ChatID: chatID, UserID: userID})
}

func NewChatListUpdateEvent(chatID uint, last *models.Message, unread int64) *Event {
	return newEvent(EventChatListUpdate, ChatListUpdateData{
		ChatID:      chatID,
		LastMessage: last,
		UnreadCount: unread,
	})
}

func NewChatNotificationEvent(chat *models.Chat) *Event {
	return newEvent(EventNewChatNotification, chat)
}

func NewErrorEvent(code, message string) *Event {
	return newEvent(EventError, ErrorData{Code: code, Message: message})
}
