package converter

import (
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
)

type RoomResponse struct {
	ID            string                `json:"id"`
	State         domain.RoomState      `json:"state"`
	TransactionID string                `json:"transaction_id,omitempty"`
	Participants  []ParticipantResponse `json:"participants"`
	CreatedAt     time.Time             `json:"created_at"`
}

type ParticipantResponse struct {
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	IsInCall bool      `json:"is_in_call"`
	JoinedAt time.Time `json:"joined_at"`
}

func RoomToApi(s domain.RoomSnapshot) *RoomResponse {
	participants := make([]ParticipantResponse, 0, len(s.Participants))
	for _, p := range s.Participants {
		participants = append(participants, ParticipantResponse{
			UserID:   p.UserID,
			UserName: p.UserName,
			IsInCall: p.IsInCall,
			JoinedAt: p.JoinedAt,
		})
	}

	return &RoomResponse{
		ID:            s.ID,
		State:         s.State,
		TransactionID: s.TransactionID,
		Participants:  participants,
		CreatedAt:     s.CreatedAt,
	}
}
