package protocol

import (
	"encoding/json"
	"errors"
	"log/slog"

	"kestrel-signaling-server/domain"
)

// Handler is the signaling relay: it validates inbound messages against
// the registry, mutates it, and emits replies and broadcasts. It holds no
// state of its own.
type Handler struct {
	registry domain.Registry
}

func NewHandler(r domain.Registry) *Handler {
	return &Handler{registry: r}
}

func (h *Handler) Handle(conn domain.Connection, data []byte) {
	var msg domain.Envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("invalid message", "clientId", conn.ID(), "error", err)
		return
	}

	switch msg.Type {
	case "create-room":
		h.createRoom(conn, msg)
	case "join-room":
		h.joinRoom(conn, msg)
	case "get-room-info":
		h.roomInfo(conn, msg)
	case "offer", "answer", "ice-candidate":
		h.forward(conn, msg)
	case "leave-room":
		h.leaveRoom(conn)
	default:
		slog.Warn("unknown message type", "clientId", conn.ID(), "type", msg.Type)
	}
}

// Disconnect runs the leave path for a dropped connection. No reply is
// sent; the registry entry is removed even if the client never joined.
func (h *Handler) Disconnect(conn domain.Connection) {
	h.leaveCurrent(conn)
	h.registry.Unregister(conn.ID())
}

func (h *Handler) createRoom(conn domain.Connection, msg domain.Envelope) {
	if msg.RoomName == "" || msg.Username == "" || msg.Password == "" {
		h.sendError(conn, "All fields are required")
		return
	}

	// Creating while still in a room is not a supported sequence; run the
	// leave path first so the old room never keeps a stale member.
	h.leaveCurrent(conn)

	if err := h.registry.CreateRoom(msg.RoomName, msg.Password, msg.Username, conn); err != nil {
		if errors.Is(err, domain.ErrRoomExists) {
			h.sendError(conn, "Room already exists")
			return
		}
		h.sendError(conn, err.Error())
		return
	}

	h.send(conn, domain.RoomCreated{
		Type:     domain.TypeRoomCreated,
		RoomName: msg.RoomName,
		Username: msg.Username,
		Message:  "Room created successfully",
	})
}

func (h *Handler) joinRoom(conn domain.Connection, msg domain.Envelope) {
	if msg.RoomName == "" || msg.Username == "" || msg.Password == "" {
		h.sendError(conn, "All fields are required")
		return
	}

	h.leaveCurrent(conn)

	existing, err := h.registry.JoinRoom(msg.RoomName, msg.Password, msg.Username, conn)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			h.sendError(conn, "Room does not exist")
		case errors.Is(err, domain.ErrWrongPassword):
			h.sendError(conn, "Incorrect password")
		case errors.Is(err, domain.ErrUsernameTaken):
			h.sendError(conn, "Username already taken in this room")
		default:
			h.sendError(conn, err.Error())
		}
		return
	}

	h.send(conn, domain.RoomJoined{
		Type:          domain.TypeRoomJoined,
		RoomName:      msg.RoomName,
		Username:      msg.Username,
		ExistingUsers: existing,
	})

	h.broadcast(msg.RoomName, conn.ID(), domain.UserJoined{
		Type:         domain.TypeUserJoined,
		ConnectionID: conn.ID(),
		Username:     msg.Username,
	})
}

func (h *Handler) roomInfo(conn domain.Connection, msg domain.Envelope) {
	snapshot, err := h.registry.RoomInfo(msg.RoomName)
	if err != nil {
		h.sendError(conn, "Room not found")
		return
	}

	h.send(conn, domain.RoomInfo{
		Type:      domain.TypeRoomInfo,
		RoomName:  snapshot.RoomName,
		CreatedBy: snapshot.CreatedBy,
		CreatedAt: snapshot.CreatedAt,
		UserCount: snapshot.UserCount,
		Users:     snapshot.Users,
	})
}

// forward relays offer/answer/ice-candidate by target connection id.
// Delivery to an unknown id is a silent no-op.
func (h *Handler) forward(conn domain.Connection, msg domain.Envelope) {
	out := domain.Forward{Type: msg.Type, From: conn.ID()}

	switch msg.Type {
	case "offer":
		out.Username = msg.Username
		if out.Username == "" {
			out.Username = h.senderUsername(conn)
		}
		out.Offer = msg.Offer
	case "answer":
		out.Username = h.senderUsername(conn)
		out.Answer = msg.Answer
	case "ice-candidate":
		out.Candidate = msg.Candidate
	}

	if msg.Type != "ice-candidate" {
		slog.Debug("forwarding signal", "type", msg.Type, "from", conn.ID(), "to", msg.To, "username", out.Username)
	}

	data, err := json.Marshal(out)
	if err != nil {
		slog.Warn("marshal error", "clientId", conn.ID(), "error", err)
		return
	}
	h.registry.SendTo(msg.To, data)
}

func (h *Handler) senderUsername(conn domain.Connection) string {
	if info, ok := h.registry.Lookup(conn.ID()); ok {
		return info.Username
	}
	return "Unknown"
}

func (h *Handler) leaveRoom(conn domain.Connection) {
	result, ok := h.registry.Leave(conn.ID())
	if !ok {
		return
	}

	h.broadcast(result.RoomName, conn.ID(), domain.UserLeft{
		Type:         domain.TypeUserLeft,
		ConnectionID: result.User.ConnectionID,
		Username:     result.User.Username,
	})

	h.send(conn, domain.LeftRoom{
		Type:     domain.TypeLeftRoom,
		RoomName: result.RoomName,
	})
}

// leaveCurrent removes the connection's membership, if any, and notifies
// the remaining members. Used by disconnect and by rebinding requests.
func (h *Handler) leaveCurrent(conn domain.Connection) {
	result, ok := h.registry.Leave(conn.ID())
	if !ok {
		return
	}

	h.broadcast(result.RoomName, conn.ID(), domain.UserLeft{
		Type:         domain.TypeUserLeft,
		ConnectionID: result.User.ConnectionID,
		Username:     result.User.Username,
	})
}

func (h *Handler) send(conn domain.Connection, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("marshal error", "clientId", conn.ID(), "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Warn("send failed", "clientId", conn.ID(), "error", err)
	}
}

func (h *Handler) sendError(conn domain.Connection, message string) {
	h.send(conn, domain.RoomError{Type: domain.TypeRoomError, Message: message})
}

func (h *Handler) broadcast(roomName, exceptID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("marshal error", "room", roomName, "error", err)
		return
	}
	h.registry.Broadcast(roomName, exceptID, data)
}
