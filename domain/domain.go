package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// Envelope is the single inbound message shape. Fields are populated
// depending on Type; signaling payloads stay opaque raw JSON.
type Envelope struct {
	Type      string          `json:"type"`
	RoomName  string          `json:"roomName,omitempty"`
	Username  string          `json:"username,omitempty"`
	Password  string          `json:"password,omitempty"`
	To        string          `json:"to,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// UserRef identifies one room member on the wire.
type UserRef struct {
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
}

// UserInfo is the registry entry for a connection that joined a room.
type UserInfo struct {
	Username string
	RoomName string
}

// RoomSnapshot is the read-only view served by get-room-info.
type RoomSnapshot struct {
	RoomName  string    `json:"roomName"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UserCount int       `json:"userCount"`
	Users     []string  `json:"users"`
}

// LeaveResult reports what a membership removal changed.
type LeaveResult struct {
	RoomName    string
	User        UserRef
	RoomDeleted bool
}

// Room directory failures. The protocol layer owns the client-facing
// wording; these carry internal text only.
var (
	ErrRoomExists    = errors.New("room already exists")
	ErrRoomNotFound  = errors.New("room not found")
	ErrWrongPassword = errors.New("incorrect password")
	ErrUsernameTaken = errors.New("username taken in room")
)

type Connection interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// Registry is the combined room directory and connection registry. All
// methods are safe for concurrent use; each compound operation commits
// atomically so readers never observe a half-joined room.
type Registry interface {
	Register(conn Connection)
	Unregister(connID string)
	CreateRoom(name, password, username string, conn Connection) error
	JoinRoom(name, password, username string, conn Connection) ([]UserRef, error)
	RoomInfo(name string) (RoomSnapshot, error)
	Leave(connID string) (LeaveResult, bool)
	Lookup(connID string) (UserInfo, bool)
	SendTo(connID string, data []byte)
	Broadcast(roomName, exceptID string, data []byte)
	Stats() (rooms, clients int)
}

type MessageHandler interface {
	Handle(conn Connection, data []byte)
	Disconnect(conn Connection)
}
