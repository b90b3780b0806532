package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"chat-sync-service/internal/config"
	"chat-sync-service/internal/models"

	"github.com/stretchr/testify/require"
)

// memStore is an in-memory implementation of all three store interfaces.
type memStore struct {
	mu sync.Mutex

	users    map[uint]*models.User
	chats    map[uint]*models.Chat
	messages map[uint]*models.Message
	reads    map[uint]map[uint]bool // messageID -> userID set
	nextID   uint

	onlineCalls  map[uint]int
	offlineCalls map[uint]int

	failUnreadFor map[uint]bool // force CountUnread errors per user

	// offlineHook runs at the top of SetOffline, outside the store lock, so
	// tests can interleave work with an in-flight offline transition. Set it
	// before any concurrent use.
	offlineHook func(id uint)
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[uint]*models.User),
		chats:         make(map[uint]*models.Chat),
		messages:      make(map[uint]*models.Message),
		reads:         make(map[uint]map[uint]bool),
		onlineCalls:   make(map[uint]int),
		offlineCalls:  make(map[uint]int),
		failUnreadFor: make(map[uint]bool),
	}
}

// UserStore

func (s *memStore) FindByID(id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d not found", id)
	}
	return u, nil
}

func (s *memStore) SetOnline(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onlineCalls[id]++
	return nil
}

func (s *memStore) SetOffline(id uint) error {
	if s.offlineHook != nil {
		s.offlineHook(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offlineCalls[id]++
	return nil
}

// ChatStore

func (s *memStore) FindWithMembers(id uint) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, fmt.Errorf("chat %d not found", id)
	}
	return c, nil
}

func (s *memStore) FindChatsForUser(userID uint) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Chat
	for _, c := range s.chats {
		for _, m := range c.Members {
			if m.ID == userID {
				out = append(out, *c)
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) UpdateLatestMessage(chatID, messageID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok {
		id := messageID
		c.LatestMessageID = &id
	}
	return nil
}

// MessageStore

func (s *memStore) Create(msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg.ID = s.nextID
	msg.CreatedAt = time.Now()
	s.messages[msg.ID] = msg
	return nil
}

func (s *memStore) FindByIDMessage(id uint) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %d not found", id)
	}
	return m, nil
}

func (s *memStore) FindByChat(chatID uint) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memStore) LatestInChat(chatID uint) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Message
	for _, m := range s.messages {
		if m.ChatID != chatID {
			continue
		}
		if latest == nil || m.ID > latest.ID {
			latest = m
		}
	}
	return latest, nil
}

func (s *memStore) CountInChat(chatID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.ChatID == chatID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountUnread(chatID, userID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUnreadFor[userID] {
		return 0, fmt.Errorf("store unavailable")
	}
	var n int64
	for _, m := range s.messages {
		if m.ChatID != chatID || m.SenderID == userID {
			continue
		}
		if !s.reads[m.ID][userID] {
			n++
		}
	}
	return n, nil
}

func (s *memStore) MarkChatRead(chatID, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ChatID == chatID {
			s.markRead(m.ID, userID)
		}
	}
	return nil
}

func (s *memStore) MarkMessageRead(messageID, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markRead(messageID, userID)
	return nil
}

func (s *memStore) markRead(messageID, userID uint) {
	if s.reads[messageID] == nil {
		s.reads[messageID] = make(map[uint]bool)
	}
	s.reads[messageID][userID] = true
}

func (s *memStore) readBy(messageID uint) map[uint]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint]bool, len(s.reads[messageID]))
	for id := range s.reads[messageID] {
		out[id] = true
	}
	return out
}

// Seeding helpers

func (s *memStore) addUser(id uint, name string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{Username: name}
	u.ID = id
	s.users[id] = u
	return u
}

func (s *memStore) addChat(id uint, members ...*models.User) *models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &models.Chat{Type: models.ChatTypeGroup, Name: fmt.Sprintf("chat-%d", id), Members: members}
	c.ID = id
	s.chats[id] = c
	return c
}

func (s *memStore) addMessage(chatID, senderID uint, text string) *models.Message {
	m := &models.Message{ChatID: chatID, SenderID: senderID, Text: &text}
	s.Create(m)
	return m
}

// chatFinder adapts memStore to the ChatStore FindByID signature without
// clashing with the message lookup.
type storeAdapter struct {
	*memStore
}

func (a storeAdapter) FindByID(id uint) (*models.Chat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.chats[id]
	if !ok {
		return nil, fmt.Errorf("chat %d not found", id)
	}
	return c, nil
}

type messageAdapter struct {
	*memStore
}

func (a messageAdapter) FindByID(id uint) (*models.Message, error) {
	return a.memStore.FindByIDMessage(id)
}

// recordingNotifier captures push jobs instead of publishing them.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []pushRecord
}

type pushRecord struct {
	userID    uint
	messageID uint
	chatID    uint
}

func (n *recordingNotifier) Notify(_ context.Context, user *models.User, msg *models.Message, chat *models.Chat, _ *models.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, pushRecord{userID: user.ID, messageID: msg.ID, chatID: chat.ID})
}

func (n *recordingNotifier) records() []pushRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]pushRecord(nil), n.sent...)
}

// Test wiring

func testLivenessConfig() config.LivenessConfig {
	return config.LivenessConfig{
		IdleTimeout:     50 * time.Millisecond,
		SweepInterval:   10 * time.Millisecond,
		BackgroundGrace: 30 * time.Millisecond,
	}
}

func newTestHub(t *testing.T, s *memStore) (*Hub, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	hub := NewHub(testLivenessConfig(), s, storeAdapter{s}, messageAdapter{s}, nil, n)
	t.Cleanup(hub.Stop)
	return hub, n
}

// newTestClient builds a transport-less client; events land in its send
// buffer where tests read them back.
func newTestClient(hub *Hub, userID uint) *Client {
	return NewClient(hub, nil, userID)
}

func setupClient(t *testing.T, hub *Hub, userID uint) *Client {
	t.Helper()
	c := newTestClient(hub, userID)
	hub.dispatch(c, &Event{Event: EventSetup})
	drainEvents(t, c)
	return c
}

// drainEvents empties and decodes the client's outbound buffer.
func drainEvents(t *testing.T, c *Client) []Event {
	t.Helper()
	var evs []Event
	for {
		select {
		case data := <-c.send:
			var ev Event
			require.NoError(t, json.Unmarshal(data, &ev))
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func eventsOfType(evs []Event, et EventType) []Event {
	var out []Event
	for _, ev := range evs {
		if ev.Event == et {
			out = append(out, ev)
		}
	}
	return out
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
