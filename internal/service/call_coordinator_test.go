package service

import (
	"context"
	"testing"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallCoordinator_PeerOffline(t *testing.T) {
	f := newFixture(nil)
	alice := newFakeConn("ca")
	f.presence.Register("alice", "Alice", alice)

	roomID, err := f.calls.InitiateCall(context.Background(), "42", "alice", "carol")
	assert.ErrorIs(t, err, ErrPeerOffline)
	assert.Empty(t, roomID)
	assert.Equal(t, 0, f.rooms.Count())
	assert.Equal(t, 0, f.rooms.Reservations())
	assert.Empty(t, alice.received())

	_, err = f.calls.InitiateCall(context.Background(), "42", "carol", "alice")
	assert.ErrorIs(t, err, ErrPeerOffline)
	assert.Equal(t, 0, f.rooms.Reservations())
}

func TestCallCoordinator_RejectsBadInput(t *testing.T) {
	f := newFixture(nil)
	f.presence.Register("alice", "Alice", newFakeConn("ca"))

	_, err := f.calls.InitiateCall(context.Background(), "", "alice", "")
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = f.calls.InitiateCall(context.Background(), "", "alice", "alice")
	assert.ErrorIs(t, err, ErrSelfCall)
	assert.Equal(t, 0, f.rooms.Reservations())
}

func TestCallCoordinator_InvitesTargetAndReservesRoom(t *testing.T) {
	users := repository.NewInMemoryUserRepository()
	require.NoError(t, users.Create(context.Background(), domain.NewUser("alice", "Alice Directory", "")))

	f := newFixture(users)
	alice, bob := newFakeConn("ca"), newFakeConn("cb")
	f.presence.Register("alice", "Alice", alice)
	f.presence.Register("bob", "Bob", bob)

	roomID, err := f.calls.InitiateCall(context.Background(), "42", "alice", "bob")
	require.NoError(t, err)
	require.NotEmpty(t, roomID)

	invite := bob.last(t, domain.EventIncomingCall).Data.(domain.IncomingCall)
	assert.Equal(t, roomID, invite.RoomID)
	assert.Equal(t, "42", invite.TransactionID)
	assert.Equal(t, "42", invite.SwapRequestID)
	assert.Equal(t, "alice", invite.FromUserID)
	assert.Equal(t, "Alice Directory", invite.FromUserName)
	assert.Equal(t, "skill-session", invite.CallType)
	assert.Empty(t, alice.received())

	// No room until someone joins.
	assert.Equal(t, 0, f.rooms.Count())
	assert.True(t, f.rooms.Reserved(roomID))
}

func TestCallCoordinator_FallsBackToPresenceName(t *testing.T) {
	f := newFixture(repository.NewInMemoryUserRepository())
	bob := newFakeConn("cb")
	f.presence.Register("alice", "Alice", newFakeConn("ca"))
	f.presence.Register("bob", "Bob", bob)

	_, err := f.calls.InitiateCall(context.Background(), "", "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "Alice", bob.last(t, domain.EventIncomingCall).Data.(domain.IncomingCall).FromUserName)
}

func TestCallCoordinator_UndeliverableInviteLeavesNothing(t *testing.T) {
	f := newFixture(nil)
	bob := newFakeConn("cb")
	f.presence.Register("alice", "Alice", newFakeConn("ca"))
	f.presence.Register("bob", "Bob", bob)
	bob.Close()

	_, err := f.calls.InitiateCall(context.Background(), "", "alice", "bob")
	assert.ErrorIs(t, err, ErrPeerOffline)
	assert.Equal(t, 0, f.rooms.Reservations())
	assert.Equal(t, 0, f.rooms.Count())
}
