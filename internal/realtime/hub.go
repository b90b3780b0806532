package realtime

import (
	"context"
	"time"

	"log/slog"

	"chat-sync-service/internal/config"
	"chat-sync-service/internal/models"
	"chat-sync-service/internal/notifier"
	"chat-sync-service/internal/services"
	"chat-sync-service/internal/store"
)

// Hub owns the realtime session lifecycle and routes inbound events to the
// presence, liveness, room, read-receipt, and fan-out components. Inbound
// events from one connection are dispatched in order by that connection's
// read pump; events from different connections run concurrently.
type Hub struct {
	registry *Registry
	rooms    *Rooms
	liveness *Liveness
	readsync *ReadSync
	fanout   *Fanout

	users    store.UserStore
	chats    store.ChatStore
	messages store.MessageStore

	presence *services.PresenceCache

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(
	cfg config.LivenessConfig,
	users store.UserStore,
	chats store.ChatStore,
	messages store.MessageStore,
	presence *services.PresenceCache,
	n notifier.Notifier,
) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		users:    users,
		chats:    chats,
		messages: messages,
		presence: presence,
		ctx:      ctx,
		cancel:   cancel,
	}

	h.registry = NewRegistry()
	h.rooms = NewRooms()
	h.liveness = NewLiveness(cfg, h.registry, h.evictSession)
	h.readsync = NewReadSync(messages, h.rooms)
	h.fanout = NewFanout(users, chats, messages, h.registry, h.rooms, h.readsync, n)

	return h
}

// Run blocks sweeping liveness until Stop is called.
func (h *Hub) Run() {
	h.liveness.Run(h.ctx)
}

func (h *Hub) Stop() {
	h.cancel()
}

// Registry exposes the connection registry for presence queries.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// dispatch routes one inbound event. Malformed or out-of-order payloads are
// ignored with a debug log; nothing a client sends can crash the hub.
func (h *Hub) dispatch(c *Client, ev *Event) {
	switch ev.Event {
	case EventSetup:
		h.handleSetup(c, ev)
	case EventHeartbeat:
		h.liveness.Touch(c.userID)
	case EventJoinChat:
		h.handleJoinChat(c, ev)
	case EventLeaveChat:
		h.handleLeaveChat(c, ev)
	case EventTyping, EventStopTyping:
		h.handleTyping(c, ev)
	case EventNewMessage:
		h.handleNewMessage(c, ev)
	case EventAppBackground:
		h.liveness.Backgrounded(c.userID)
	case EventCheckUserStatus:
		h.handleCheckStatus(c, ev)
	case EventUpdateChatList, EventGetChatUpdates:
		h.handleUpdateChatList(c)
	default:
		slog.Debug("Ignoring unsupported event", "event", ev.Event, "connectionID", c.id)
	}
}

// handleSetup installs the connection as the user's live session. A prior
// connection for the same user is signalled closed and never waited on; its
// late disconnect cannot undo this registration because the registry removal
// is guarded by connection id.
func (h *Hub) handleSetup(c *Client, ev *Event) {
	if len(ev.Data) > 0 {
		var data SetupData
		if err := ev.Unmarshal(&data); err != nil {
			slog.Debug("Ignoring malformed setup", "connectionID", c.id, "error", err)
			return
		}
		if data.UserID != 0 && data.UserID != c.userID {
			slog.Warn("Setup userId does not match authenticated user",
				"connectionID", c.id, "claimed", data.UserID, "authenticated", c.userID)
			return
		}
	}
	if c.userID == 0 {
		return
	}

	if prior := h.registry.Register(c.userID, c); prior != nil {
		slog.Info("Duplicate login, replacing connection",
			"userID", c.userID, "oldConnection", prior.id, "newConnection", c.id)
		prior.ForceClose()
	}

	h.rooms.JoinPersonal(c)
	h.liveness.Touch(c.userID)

	h.markOnline(c.userID)
	h.broadcastAll(NewUserOnlineEvent(c.userID))

	c.SendEvent(NewOnlineUsersEvent(h.registry.OnlineUsers()))
	c.SendEvent(NewConnectedEvent(c.id))

	slog.Info("Session registered", "userID", c.userID, "connectionID", c.id,
		"activeSessions", h.registry.Len())
}

func (h *Hub) handleJoinChat(c *Client, ev *Event) {
	var data RoomData
	if err := ev.Unmarshal(&data); err != nil || data.ChatID == 0 {
		slog.Debug("Ignoring malformed join chat", "connectionID", c.id, "error", err)
		return
	}
	if _, ok := h.registry.Resolve(c.userID); !ok {
		// join before setup
		return
	}

	if _, err := h.chats.FindByID(data.ChatID); err != nil {
		slog.Debug("Join for unknown chat", "chatID", data.ChatID, "userID", c.userID, "error", err)
		return
	}

	left := h.rooms.SetForeground(c, ChatRoom(data.ChatID))
	h.liveness.Touch(c.userID)

	if err := h.readsync.SyncOnJoin(data.ChatID, c); err != nil {
		slog.Error("Read sync failed on join", "chatID", data.ChatID, "userID", c.userID, "error", err)
	}

	slog.Debug("Foreground room switched", "userID", c.userID, "chatID", data.ChatID, "left", left)
}

func (h *Hub) handleLeaveChat(c *Client, ev *Event) {
	var data RoomData
	if err := ev.Unmarshal(&data); err != nil || data.ChatID == 0 {
		return
	}
	h.rooms.Leave(c, ChatRoom(data.ChatID))
	slog.Debug("Left room", "userID", c.userID, "chatID", data.ChatID)
}

// handleTyping relays typing state to the chat room, at most once, no
// persistence, sender excluded.
func (h *Hub) handleTyping(c *Client, ev *Event) {
	var data RoomData
	if err := ev.Unmarshal(&data); err != nil || data.ChatID == 0 {
		return
	}

	var relay *Event
	if ev.Event == EventTyping {
		relay = NewTypingEvent(c.userID, data.ChatID)
	} else {
		relay = NewStopTypingEvent(c.userID, data.ChatID)
	}
	h.rooms.Broadcast(ChatRoom(data.ChatID), relay, c)
}

// handleNewMessage resolves (or persists) the message, then runs fan-out.
func (h *Hub) handleNewMessage(c *Client, ev *Event) {
	var data NewMessageData
	if err := ev.Unmarshal(&data); err != nil || (data.MessageID == 0 && data.ChatID == 0) {
		slog.Debug("Ignoring malformed new message", "connectionID", c.id, "error", err)
		return
	}

	msg, err := h.resolveMessage(c, &data)
	if err != nil {
		slog.Error("Failed to resolve message", "chatID", data.ChatID, "userID", c.userID, "error", err)
		return
	}

	h.liveness.Touch(c.userID)

	if err := h.fanout.Dispatch(h.ctx, msg); err != nil {
		slog.Error("Fan-out failed", "messageID", msg.ID, "chatID", msg.ChatID, "error", err)
	}
}

// handleCheckStatus answers a presence probe. The answer goes to all parties,
// mirroring the presence broadcasts on register/remove.
func (h *Hub) handleCheckStatus(c *Client, ev *Event) {
	var data CheckStatusData
	if err := ev.Unmarshal(&data); err != nil || data.UserID == 0 {
		return
	}

	if _, online := h.registry.Resolve(data.UserID); online {
		h.broadcastAll(NewUserOnlineEvent(data.UserID))
	} else {
		h.broadcastAll(NewUserOfflineEvent(data.UserID))
	}
}

// handleUpdateChatList re-emits a chat list entry with a fresh unread count
// for every chat the user belongs to.
func (h *Hub) handleUpdateChatList(c *Client) {
	chats, err := h.chats.FindChatsForUser(c.userID)
	if err != nil {
		slog.Error("Failed to load chats", "userID", c.userID, "error", err)
		return
	}

	for i := range chats {
		chat := &chats[i]
		unread, err := h.readsync.UnreadCount(chat.ID, c.userID)
		if err != nil {
			slog.Error("Failed to compute unread count", "chatID", chat.ID, "userID", c.userID, "error", err)
			continue
		}
		c.SendEvent(NewChatListUpdateEvent(chat.ID, chat.LatestMessage, unread))
	}
}

// disconnect runs when a connection's read pump exits, through any path:
// peer close, eviction, or takeover. Only the connection that still owns the
// registry entry transitions the user offline.
func (h *Hub) disconnect(c *Client) {
	c.ForceClose()
	h.rooms.RemoveClient(c)

	if h.registry.Remove(c.userID, c.id) {
		h.liveness.Forget(c.userID)
		h.markOffline(c.userID)
		h.broadcastAll(NewUserOfflineEvent(c.userID))
		slog.Info("Session removed", "userID", c.userID, "connectionID", c.id,
			"activeSessions", h.registry.Len())
	} else {
		slog.Debug("Stale disconnect ignored", "userID", c.userID, "connectionID", c.id)
	}
}

// evictSession is the liveness monitor's teardown callback. The conn-id guard
// on Remove makes it idempotent against disconnects racing the timers.
func (h *Hub) evictSession(userID uint, connectionID string, reason string) {
	client, ok := h.registry.Resolve(userID)
	if !ok || client.id != connectionID {
		return
	}

	slog.Info("Evicting session", "userID", userID, "connectionID", connectionID, "reason", reason)
	client.ForceClose()
	h.rooms.RemoveClient(client)

	if h.registry.Remove(userID, connectionID) {
		h.liveness.Forget(userID)
		h.markOffline(userID)
		h.broadcastAll(NewUserOfflineEvent(userID))
	}
}

// markOnline persists the presence flip best-effort; the in-memory registry
// transition already happened and is not rolled back on store failure.
func (h *Hub) markOnline(userID uint) {
	if err := h.users.SetOnline(userID); err != nil {
		slog.Error("Failed to persist online status", "userID", userID, "error", err)
	}
	if h.presence != nil {
		ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
		defer cancel()
		h.presence.SetUserOnline(ctx, userID)
	}
}

func (h *Hub) markOffline(userID uint) {
	if err := h.users.SetOffline(userID); err != nil {
		slog.Error("Failed to persist offline status", "userID", userID, "error", err)
	}
	if h.presence != nil {
		ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
		defer cancel()
		h.presence.SetUserOffline(ctx, userID)
	}
}

func (h *Hub) broadcastAll(ev *Event) {
	for _, client := range h.registry.Clients() {
		client.SendEvent(ev)
	}
}

// resolveMessage loads the referenced message, or persists the inline fields
// when the client sent content without an id.
func (h *Hub) resolveMessage(c *Client, data *NewMessageData) (msg *models.Message, err error) {
	if data.MessageID != 0 {
		return h.messages.FindByID(data.MessageID)
	}

	msg = &models.Message{
		ChatID:   data.ChatID,
		SenderID: c.userID,
		Text:     data.Text,
		URL:      data.URL,
		FileName: data.FileName,
	}
	if err := h.messages.Create(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
