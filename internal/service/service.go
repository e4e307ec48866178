package service

import (
	"context"
	"errors"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrPeerOffline    = errors.New("one or both users are offline")
	ErrNotRegistered  = errors.New("join the call service first")
	ErrNotParticipant = errors.New("not a participant of this room")
	ErrAlreadyInRoom  = errors.New("already in this room")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrSelfCall       = errors.New("cannot call yourself")
	ErrIdentityInUse  = errors.New("cannot switch identity while in a room")
)

// UserDirectory resolves display names. It belongs to the surrounding
// application; a nil UserDirectory means names come from clients only.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type CallInitiator interface {
	InitiateCall(ctx context.Context, transactionID, initiatorID, targetID string) (string, error)
}

type RoomInspector interface {
	Get(roomID string) (domain.RoomSnapshot, error)
}

// ConnectionHandler is bound to exactly one live connection and is driven
// by that connection's receive loop.
type ConnectionHandler interface {
	Dispatch(ctx context.Context, env domain.Envelope)
	Detach(ctx context.Context)
}

type SignalingInteractor interface {
	Attach(conn domain.Conn) ConnectionHandler
}

type UserInteractor interface {
	CreateUser(ctx context.Context, id string, name string, email string) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}
