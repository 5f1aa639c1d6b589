// internal/ws/hub.go
package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransitionFunc is invoked after a user's presence flips. online is the
// new status. Runs on its own goroutine so slow fanout never blocks the
// registry lock.
type TransitionFunc func(userID uuid.UUID, online bool)

// Hub owns the presence registry and the call-room membership. Online
// status is always derived from connection-set cardinality: one user may
// hold several tabs/devices at once, and only the empty<->non-empty
// transitions count.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]map[*Client]struct{}
	rooms       map[string]map[*Client]struct{}

	onTransition TransitionFunc
	logger       *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]map[*Client]struct{}),
		rooms:       make(map[string]map[*Client]struct{}),
		logger:      logger,
	}
}

// SetTransitionHandler wires the fanout hook. Must be called before the
// first connection is accepted.
func (h *Hub) SetTransitionHandler(fn TransitionFunc) {
	h.onTransition = fn
}

// Register adds a connection to the user's set and returns true when the
// user just came online (set was empty before).
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	set, ok := h.connections[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.connections[client.userID] = set
	}
	becameOnline := len(set) == 0
	set[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("Connection registered",
		zap.String("userId", client.userID.String()),
		zap.Bool("becameOnline", becameOnline))

	if becameOnline && h.onTransition != nil {
		go h.onTransition(client.userID, true)
	}
	return becameOnline
}

// Unregister removes a connection and returns true when the user went
// offline (set became empty). The registry entry is dropped entirely;
// absence means Offline.
func (h *Hub) Unregister(client *Client) bool {
	h.mu.Lock()
	becameOffline := false
	if set, ok := h.connections[client.userID]; ok {
		if _, exists := set[client]; exists {
			delete(set, client)
			close(client.send)
		}
		if len(set) == 0 {
			delete(h.connections, client.userID)
			becameOffline = true
		}
	}
	h.leaveAllRoomsLocked(client)
	h.mu.Unlock()

	h.logger.Info("Connection unregistered",
		zap.String("userId", client.userID.String()),
		zap.Bool("becameOffline", becameOffline))

	if becameOffline && h.onTransition != nil {
		go h.onTransition(client.userID, false)
	}
	return becameOffline
}

// SendToUser delivers the event to every live connection of the user.
// Returns whether at least one connection existed; delivery itself is
// best-effort and a full send buffer drops the frame for that connection.
func (h *Hub) SendToUser(userID uuid.UUID, event Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal event",
			zap.String("type", event.Type), zap.Error(err))
		return false
	}

	// The read lock is held across the sends. Unregister closes send
	// channels under the write lock, so a close can never interleave
	// with a send here; the sends are non-blocking and cheap.
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.connections[userID]
	if len(set) == 0 {
		return false
	}

	for c := range set {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Send buffer full, dropping event",
				zap.String("userId", userID.String()),
				zap.String("type", event.Type))
		}
	}
	return true
}

// SendToRoom broadcasts to every member of a call room, excluding the
// sender when exclude is non-nil.
func (h *Hub) SendToRoom(roomID string, exclude *Client, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal room event",
			zap.String("type", event.Type), zap.Error(err))
		return
	}

	// Same locking rule as SendToUser: sends happen under the read lock
	// so they cannot race the channel close in Unregister.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[roomID] {
		if c == exclude {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
}

// JoinRoom adds the connection to a call-scoped broadcast room.
func (h *Hub) JoinRoom(roomID string, client *Client) {
	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}
	client.joined[roomID] = struct{}{}
	h.mu.Unlock()
}

// LeaveRoom removes the connection from a room, dropping the room when empty.
func (h *Hub) LeaveRoom(roomID string, client *Client) {
	h.mu.Lock()
	h.leaveRoomLocked(roomID, client)
	h.mu.Unlock()
}

func (h *Hub) leaveRoomLocked(roomID string, client *Client) {
	if members, ok := h.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(client.joined, roomID)
}

func (h *Hub) leaveAllRoomsLocked(client *Client) {
	for roomID := range client.joined {
		h.leaveRoomLocked(roomID, client)
	}
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID]) > 0
}

// OnlineUsers returns a snapshot of all online user ids.
func (h *Hub) OnlineUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(h.connections))
	for userID := range h.connections {
		users = append(users, userID)
	}
	return users
}

// ConnectionCount returns the number of live connections for a user.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}
