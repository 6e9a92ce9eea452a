package domain

import (
	"encoding/json"
	"time"
)

// Outbound message types.
const (
	TypeRoomCreated  = "room-created"
	TypeRoomError    = "room-error"
	TypeRoomJoined   = "room-joined"
	TypeUserJoined   = "user-joined"
	TypeRoomInfo     = "room-info"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeUserLeft     = "user-left"
	TypeLeftRoom     = "left-room"
)

type RoomCreated struct {
	Type     string `json:"type"`
	RoomName string `json:"roomName"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type RoomError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type RoomJoined struct {
	Type          string    `json:"type"`
	RoomName      string    `json:"roomName"`
	Username      string    `json:"username"`
	ExistingUsers []UserRef `json:"existingUsers"`
}

type UserJoined struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
}

type RoomInfo struct {
	Type      string    `json:"type"`
	RoomName  string    `json:"roomName"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UserCount int       `json:"userCount"`
	Users     []string  `json:"users"`
}

// Forward carries a relayed offer, answer, or ice-candidate. Exactly one
// of Offer, Answer, or Candidate is set, matching Type.
type Forward struct {
	Type      string          `json:"type"`
	From      string          `json:"from"`
	Username  string          `json:"username,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type UserLeft struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
}

type LeftRoom struct {
	Type     string `json:"type"`
	RoomName string `json:"roomName"`
}
