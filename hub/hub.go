package hub

import (
	"log/slog"
	"sync"
	"time"

	"kestrel-signaling-server/domain"
)

type room struct {
	password  string
	createdBy string
	createdAt time.Time
	// members keeps join order; unique by connection id.
	members []domain.UserRef
}

// Hub owns the room directory and the connection registry. A single
// mutex serializes every mutation so join/leave/disconnect on the same
// room are strictly ordered and no reader sees an empty room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room
	conns map[string]domain.Connection
	users map[string]domain.UserInfo
}

func New() *Hub {
	return &Hub{
		rooms: make(map[string]*room),
		conns: make(map[string]domain.Connection),
		users: make(map[string]domain.UserInfo),
	}
}

// passwordMatches is the only place room passwords are compared.
func passwordMatches(stored, supplied string) bool {
	return stored == supplied
}

func (h *Hub) Register(conn domain.Connection) {
	h.mu.Lock()
	h.conns[conn.ID()] = conn
	count := len(h.conns)
	h.mu.Unlock()

	slog.Info("client connected", "clientId", conn.ID(), "clients", count)
}

// Unregister drops the transport entry and unbinds any registry entry.
// Idempotent; room membership is expected to be gone already via Leave.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	delete(h.conns, connID)
	delete(h.users, connID)
	count := len(h.conns)
	h.mu.Unlock()

	slog.Info("client disconnected", "clientId", connID, "clients", count)
}

func (h *Hub) CreateRoom(name, password, username string, conn domain.Connection) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rooms[name]; exists {
		return domain.ErrRoomExists
	}

	h.rooms[name] = &room{
		password:  password,
		createdBy: username,
		createdAt: time.Now(),
		members:   []domain.UserRef{{ConnectionID: conn.ID(), Username: username}},
	}
	h.users[conn.ID()] = domain.UserInfo{Username: username, RoomName: name}

	slog.Info("room created", "room", name, "clientId", conn.ID(), "username", username)
	return nil
}

// JoinRoom validates existence, password, and username uniqueness in that
// order, then commits the membership and registry entry together. The
// returned slice is the member list as it stood before the join.
func (h *Hub) JoinRoom(name, password, username string, conn domain.Connection) ([]domain.UserRef, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, exists := h.rooms[name]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}
	if !passwordMatches(r.password, password) {
		return nil, domain.ErrWrongPassword
	}
	for _, m := range r.members {
		if m.Username == username {
			return nil, domain.ErrUsernameTaken
		}
	}

	existing := make([]domain.UserRef, len(r.members))
	copy(existing, r.members)

	r.members = append(r.members, domain.UserRef{ConnectionID: conn.ID(), Username: username})
	h.users[conn.ID()] = domain.UserInfo{Username: username, RoomName: name}

	slog.Info("client joined room", "room", name, "clientId", conn.ID(), "username", username, "members", len(r.members))
	return existing, nil
}

func (h *Hub) RoomInfo(name string) (domain.RoomSnapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, exists := h.rooms[name]
	if !exists {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}

	users := make([]string, len(r.members))
	for i, m := range r.members {
		users[i] = m.Username
	}
	return domain.RoomSnapshot{
		RoomName:  name,
		CreatedBy: r.createdBy,
		CreatedAt: r.createdAt,
		UserCount: len(r.members),
		Users:     users,
	}, nil
}

// Leave removes the connection's membership and registry entry. The room
// is deleted in the same critical section the moment it empties.
func (h *Hub) Leave(connID string) (domain.LeaveResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	info, bound := h.users[connID]
	if !bound {
		return domain.LeaveResult{}, false
	}
	delete(h.users, connID)

	result := domain.LeaveResult{
		RoomName: info.RoomName,
		User:     domain.UserRef{ConnectionID: connID, Username: info.Username},
	}

	r, exists := h.rooms[info.RoomName]
	if !exists {
		return result, true
	}

	for i, m := range r.members {
		if m.ConnectionID == connID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	if len(r.members) == 0 {
		delete(h.rooms, info.RoomName)
		result.RoomDeleted = true
		slog.Info("room removed", "room", info.RoomName)
	}

	slog.Info("client left room", "room", info.RoomName, "clientId", connID, "username", info.Username)
	return result, true
}

func (h *Hub) Lookup(connID string) (domain.UserInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	info, ok := h.users[connID]
	return info, ok
}

// SendTo delivers to one connection; unknown targets are a no-op.
func (h *Hub) SendTo(connID string, data []byte) {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()

	if !ok {
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Warn("send failed", "clientId", connID, "error", err)
	}
}

// Broadcast fans out to every current member of the room except exceptID.
func (h *Hub) Broadcast(roomName, exceptID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, exists := h.rooms[roomName]
	if !exists {
		return
	}

	for _, m := range r.members {
		if m.ConnectionID == exceptID {
			continue
		}
		conn, ok := h.conns[m.ConnectionID]
		if !ok {
			continue
		}
		if err := conn.Send(data); err != nil {
			slog.Warn("broadcast send failed", "room", roomName, "clientId", m.ConnectionID, "error", err)
		}
	}
}

func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms), len(h.conns)
}
