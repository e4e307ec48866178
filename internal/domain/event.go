package domain

import (
	"encoding/json"
	"time"

	"github.com/pion/webrtc/v3"
)

type EventType string

// Client to server.
const (
	EventJoinService EventType = "join-service"
	EventCreateRoom  EventType = "create-room"
	EventJoinRoom    EventType = "join-room"
	EventToggleAudio EventType = "toggle-audio"
	EventToggleVideo EventType = "toggle-video"
	EventEndCall     EventType = "end-call"
)

// Relayed in both directions.
const (
	EventOffer        EventType = "offer"
	EventAnswer       EventType = "answer"
	EventICECandidate EventType = "ice-candidate"
	EventHangup       EventType = "hangup"
)

// Server to client.
const (
	EventServiceJoined   EventType = "service-joined"
	EventRoomCreated     EventType = "room-created"
	EventRoomJoined      EventType = "room-joined"
	EventUserJoined      EventType = "user-joined"
	EventUserLeft        EventType = "user-left"
	EventPeerAudioToggle EventType = "peer-audio-toggle"
	EventPeerVideoToggle EventType = "peer-video-toggle"
	EventCallEnded       EventType = "call-ended"
	EventCallError       EventType = "call-error"
	EventIncomingCall    EventType = "incoming-call"
)

// Envelope is an inbound frame as read from the wire. Data stays raw until
// the dispatcher knows which payload type to decode.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound frame.
type Event struct {
	Name EventType `json:"event"`
	Data any       `json:"data,omitempty"`
}

type JoinServicePayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type CreateRoomPayload struct {
	TransactionID string `json:"transactionId,omitempty"`
	// SwapRequestID is accepted from older clients and treated as TransactionID.
	SwapRequestID string `json:"swapRequestId,omitempty"`
}

func (p CreateRoomPayload) Transaction() string {
	if p.TransactionID != "" {
		return p.TransactionID
	}
	return p.SwapRequestID
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// SignalPayload carries offer, answer and ice-candidate bodies. The body may
// arrive under "payload" or under the event-specific key.
type SignalPayload struct {
	RoomID       string          `json:"roomId"`
	TargetUserID string          `json:"targetUserId,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
}

func (p SignalPayload) Body() json.RawMessage {
	for _, body := range []json.RawMessage{p.Payload, p.Offer, p.Answer, p.Candidate} {
		if len(body) > 0 {
			return body
		}
	}
	return nil
}

type TogglePayload struct {
	RoomID    string `json:"roomId"`
	IsEnabled bool   `json:"isEnabled"`
}

type ServiceJoined struct {
	UserID     string             `json:"userId"`
	UserName   string             `json:"userName"`
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type RoomCreated struct {
	RoomID string       `json:"roomId"`
	Room   RoomSnapshot `json:"room"`
}

type RoomJoined struct {
	Room RoomSnapshot `json:"room"`
}

type UserJoined struct {
	Participant Participant  `json:"participant"`
	Room        RoomSnapshot `json:"room"`
}

type UserLeft struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Relayed is what the recipient of an offer, answer, ice-candidate or hangup
// sees. The body is carried under "payload" and mirrored under the
// event-specific key that older clients read.
type Relayed struct {
	RoomID       string          `json:"roomId"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
	FromUserID   string          `json:"fromUserId"`
	FromUserName string          `json:"fromUserName"`
}

func NewRelayed(event EventType, roomID string, body json.RawMessage, from Participant) Relayed {
	r := Relayed{
		RoomID:       roomID,
		Payload:      body,
		FromUserID:   from.UserID,
		FromUserName: from.UserName,
	}
	switch event {
	case EventOffer:
		r.Offer = body
	case EventAnswer:
		r.Answer = body
	case EventICECandidate:
		r.Candidate = body
	}
	return r
}

type PeerToggle struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	IsEnabled bool   `json:"isEnabled"`
}

type CallEnded struct {
	RoomID string `json:"roomId"`
}

type CallError struct {
	Message string `json:"message"`
}

type IncomingCall struct {
	RoomID        string `json:"roomId"`
	TransactionID string `json:"transactionId,omitempty"`
	// SwapRequestID mirrors TransactionID for older clients.
	SwapRequestID string    `json:"swapRequestId,omitempty"`
	FromUserID    string    `json:"fromUserId"`
	FromUserName  string    `json:"fromUserName,omitempty"`
	CallType      string    `json:"callType"`
	SentAt        time.Time `json:"sentAt"`
}
