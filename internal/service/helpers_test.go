package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/stretchr/testify/require"
)

var errFakeClosed = errors.New("fake connection closed")

type fakeConn struct {
	id domain.ConnID

	mu     sync.Mutex
	events []domain.Event
	closed bool
	// stall makes Send block until its context expires.
	stall bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: domain.ConnID(id)}
}

func (c *fakeConn) ID() domain.ConnID { return c.id }

func (c *fakeConn) Send(ctx context.Context, event domain.Event) error {
	c.mu.Lock()
	stall, closed := c.stall, c.closed
	c.mu.Unlock()

	if closed {
		return errFakeClosed
	}
	if stall {
		<-ctx.Done()
		return ctx.Err()
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) received() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *fakeConn) named(name domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range c.received() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeConn) last(t *testing.T, name domain.EventType) domain.Event {
	t.Helper()
	events := c.named(name)
	require.NotEmpty(t, events, "no %s event received by %s", name, c.id)
	return events[len(events)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	presence  *PresenceDirectory
	rooms     *RoomRegistry
	relay     *SignalRelay
	signaling *SignalingService
	calls     *CallCoordinator
}

func newFixture(users UserDirectory) *fixture {
	log := discardLogger()
	presence := NewPresenceDirectory(nil, log)
	rooms := NewRoomRegistry(time.Minute, nil, log)
	relay := NewSignalRelay(rooms, presence, 50*time.Millisecond, nil, log)
	return &fixture{
		presence:  presence,
		rooms:     rooms,
		relay:     relay,
		signaling: NewSignalingService(presence, rooms, relay, users, nil, log),
		calls:     NewCallCoordinator(presence, rooms, relay, users, nil, log),
	}
}

func envelope(t *testing.T, event domain.EventType, data any) domain.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return domain.Envelope{Event: event, Data: raw}
}
