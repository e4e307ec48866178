package domain

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// ConnID is the opaque handle of one live client connection.
type ConnID string

func NewConnID() ConnID {
	return ConnID(ulid.Make().String())
}

// Conn is the transport-side view of a live full-duplex channel.
// Services hold Conn values as references only; the transport owns the socket.
type Conn interface {
	ID() ConnID
	// Send enqueues an event for delivery and returns once it is accepted
	// by the connection or ctx is done.
	Send(ctx context.Context, event Event) error
	Close()
}
