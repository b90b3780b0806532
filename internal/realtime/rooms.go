package realtime

import (
	"strconv"
	"sync"
)

// RoomID names a realtime channel. Chat rooms and personal rooms share one
// namespace, so the numeric IDs are prefixed to keep chat 7 and user 7 apart.
type RoomID string

// ChatRoom is the room carrying a chat's events; by convention it wraps the
// Chat entity's ID.
func ChatRoom(chatID uint) RoomID {
	return RoomID("chat:" + strconv.FormatUint(uint64(chatID), 10))
}

// UserRoom is a user's personal room for direct-addressed events. A
// connection joins it at setup and never leaves it while connected.
func UserRoom(userID uint) RoomID {
	return RoomID("user:" + strconv.FormatUint(uint64(userID), 10))
}

// Rooms tracks which connections are joined to which rooms and delivers
// room- and user-scoped events. Membership mutations take the write lock as
// one step; the foreground-room switch in particular is a single transaction,
// not an iterate-and-leave.
type Rooms struct {
	mu      sync.RWMutex
	members map[RoomID]map[*Client]bool
	joined  map[*Client]map[RoomID]bool
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[RoomID]map[*Client]bool),
		joined:  make(map[*Client]map[RoomID]bool),
	}
}

func (r *Rooms) join(c *Client, room RoomID) {
	if r.members[room] == nil {
		r.members[room] = make(map[*Client]bool)
	}
	r.members[room][c] = true

	if r.joined[c] == nil {
		r.joined[c] = make(map[RoomID]bool)
	}
	r.joined[c][room] = true
}

func (r *Rooms) leave(c *Client, room RoomID) {
	if clients, ok := r.members[room]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(r.members, room)
		}
	}
	if rooms, ok := r.joined[c]; ok {
		delete(rooms, room)
	}
}

// JoinPersonal subscribes the connection to its user's personal room.
func (r *Rooms) JoinPersonal(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.join(c, UserRoom(c.userID))
}

// SetForeground makes room the connection's single foreground room: the
// connection leaves everything except its personal room, then joins room.
// Returns the rooms left so callers can log the switch.
func (r *Rooms) SetForeground(c *Client, room RoomID) []RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	personal := UserRoom(c.userID)
	var left []RoomID
	for joined := range r.joined[c] {
		if joined == personal || joined == room {
			continue
		}
		r.leave(c, joined)
		left = append(left, joined)
	}
	r.join(c, room)
	return left
}

// Leave drops a single room membership. No read-receipt side effects.
func (r *Rooms) Leave(c *Client, room RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leave(c, room)
}

// RemoveClient drops every membership of a disconnecting client.
func (r *Rooms) RemoveClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.joined[c] {
		if clients, ok := r.members[room]; ok {
			delete(clients, c)
			if len(clients) == 0 {
				delete(r.members, room)
			}
		}
	}
	delete(r.joined, c)
}

// Broadcast delivers an event to every connection joined to room, minus
// exclude. Fire-and-forget: a slow or closed client just drops the event.
func (r *Rooms) Broadcast(room RoomID, ev *Event, exclude *Client) {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.members[room]))
	for c := range r.members[room] {
		if c != exclude {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range targets {
		c.SendEvent(ev)
	}
}

// SendToUser delivers an event to the user's personal room. Returns false if
// no live connection is joined to it; the caller decides whether to fall back
// to deferred notification.
func (r *Rooms) SendToUser(userID uint, ev *Event) bool {
	room := UserRoom(userID)

	r.mu.RLock()
	targets := make([]*Client, 0, len(r.members[room]))
	for c := range r.members[room] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		return false
	}
	for _, c := range targets {
		c.SendEvent(ev)
	}
	return true
}

// IsUserInRoom reports whether any of the user's connections is joined to
// room. Used for the co-presence instant-read rule.
func (r *Rooms) IsUserInRoom(userID uint, room RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.members[room] {
		if c.userID == userID {
			return true
		}
	}
	return false
}

// UserIDsInRoom snapshots the users currently joined to room.
func (r *Rooms) UserIDsInRoom(room RoomID) []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[uint]bool)
	ids := make([]uint, 0, len(r.members[room]))
	for c := range r.members[room] {
		if !seen[c.userID] {
			seen[c.userID] = true
			ids = append(ids, c.userID)
		}
	}
	return ids
}
