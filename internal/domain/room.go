package domain

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const MaxParticipants = 2

type RoomState string

const (
	RoomStateEmpty   RoomState = "empty"
	RoomStateForming RoomState = "forming"
	RoomStateActive  RoomState = "active"
)

// Participant is one member of a room. ConnID is a lookup key into the
// transport, never an owned socket.
type Participant struct {
	ConnID   ConnID    `json:"-"`
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	IsInCall bool      `json:"isInCall"`
	JoinedAt time.Time `json:"joinedAt"`
}

func NewParticipant(conn ConnID, userID, userName string) Participant {
	return Participant{
		ConnID:   conn,
		UserID:   userID,
		UserName: userName,
		IsInCall: true,
		JoinedAt: time.Now().UTC(),
	}
}

// Room is a two-party call container. All fields below Mutex are guarded by it.
// Deleted is set once the last participant leaves; a deleted room is no longer
// reachable from the registry and must not accept members.
type Room struct {
	Mutex         sync.Mutex
	ID            string
	TransactionID string
	Participants  []Participant
	CreatedAt     time.Time
	Deleted       bool
}

func NewRoom(id string, transactionID string, first Participant) *Room {
	return &Room{
		ID:            id,
		TransactionID: transactionID,
		Participants:  []Participant{first},
		CreatedAt:     time.Now().UTC(),
	}
}

// NewRoomID returns 32 hex characters drawn from a random v4 uuid.
func NewRoomID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// State must be called with Mutex held.
func (r *Room) State() RoomState {
	switch len(r.Participants) {
	case 0:
		return RoomStateEmpty
	case 1:
		return RoomStateForming
	default:
		return RoomStateActive
	}
}

// IndexOf must be called with Mutex held.
func (r *Room) IndexOf(conn ConnID) int {
	for i, p := range r.Participants {
		if p.ConnID == conn {
			return i
		}
	}
	return -1
}

// Snapshot must be called with Mutex held.
func (r *Room) Snapshot() RoomSnapshot {
	participants := make([]Participant, len(r.Participants))
	copy(participants, r.Participants)
	return RoomSnapshot{
		ID:            r.ID,
		State:         r.State(),
		TransactionID: r.TransactionID,
		Participants:  participants,
		CreatedAt:     r.CreatedAt,
	}
}

// RoomSnapshot is an immutable copy of a room handed out of the registry.
type RoomSnapshot struct {
	ID            string        `json:"id"`
	State         RoomState     `json:"state"`
	TransactionID string        `json:"transactionId,omitempty"`
	Participants  []Participant `json:"participants"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Others returns every participant except the one bound to conn.
func (s RoomSnapshot) Others(conn ConnID) []Participant {
	others := make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.ConnID != conn {
			others = append(others, p)
		}
	}
	return others
}

func (s RoomSnapshot) Has(conn ConnID) bool {
	for _, p := range s.Participants {
		if p.ConnID == conn {
			return true
		}
	}
	return false
}

// Reservation holds a room id handed out by the call coordinator before any
// participant has joined.
type Reservation struct {
	RoomID        string
	TransactionID string
	ExpiresAt     time.Time
}

func (r Reservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}
