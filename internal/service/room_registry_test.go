package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participant(conn, user string) domain.Participant {
	return domain.NewParticipant(domain.ConnID(conn), user, user+"-name")
}

func TestRoomRegistry_Lifecycle(t *testing.T) {
	r := NewRoomRegistry(time.Minute, nil, discardLogger())

	snap := r.CreateRoom(participant("ca", "alice"), "tx-1")
	assert.Equal(t, domain.RoomStateForming, snap.State)
	assert.Len(t, snap.Participants, 1)
	assert.Equal(t, "tx-1", snap.TransactionID)

	joined, err := r.JoinRoom(snap.ID, participant("cb", "bob"))
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStateActive, joined.State)
	assert.Len(t, joined.Participants, 2)

	res := r.LeaveRoom(snap.ID, "ca")
	assert.True(t, res.Removed)
	assert.False(t, res.Deleted)
	assert.Equal(t, "alice", res.Left.UserID)
	assert.Equal(t, domain.RoomStateForming, res.Room.State)

	res = r.LeaveRoom(snap.ID, "cb")
	assert.True(t, res.Removed)
	assert.True(t, res.Deleted)

	_, err = r.Get(snap.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, 0, r.Count())
}

func TestRoomRegistry_ThirdJoinIsRejected(t *testing.T) {
	r := NewRoomRegistry(time.Minute, nil, discardLogger())
	snap := r.CreateRoom(participant("ca", "alice"), "")
	_, err := r.JoinRoom(snap.ID, participant("cb", "bob"))
	require.NoError(t, err)

	_, err = r.JoinRoom(snap.ID, participant("cc", "carol"))
	assert.ErrorIs(t, err, ErrRoomFull)

	after, err := r.Get(snap.ID)
	require.NoError(t, err)
	assert.Len(t, after.Participants, 2)
	assert.False(t, after.Has("cc"))
}

func TestRoomRegistry_JoinUnknownRoom(t *testing.T) {
	r := NewRoomRegistry(time.Minute, nil, discardLogger())
	_, err := r.JoinRoom("does-not-exist", participant("ca", "alice"))
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, 0, r.Count())
}

func TestRoomRegistry_JoinTwiceFromSameConnection(t *testing.T) {
	r := NewRoomRegistry(time.Minute, nil, discardLogger())
	snap := r.CreateRoom(participant("ca", "alice"), "")

	_, err := r.JoinRoom(snap.ID, participant("ca", "alice"))
	assert.ErrorIs(t, err, ErrAlreadyInRoom)

	after, err := r.Get(snap.ID)
	require.NoError(t, err)
	assert.Len(t, after.Participants, 1)
}

func TestRoomRegistry_LeaveIsIdempotent(t *testing.T) {
	r := NewRoomRegistry(time.Minute, nil, discardLogger())
	snap := r.CreateRoom(participant("ca", "alice"), "")
	_, err := r.JoinRoom(snap.ID, participant("cb", "bob"))
	require.NoError(t, err)

	first := r.LeaveRoom(snap.ID, "cb")
	assert.True(t, first.Removed)

	second := r.LeaveRoom(snap.ID, "cb")
	assert.False(t, second.Removed)
	assert.False(t, second.Deleted)

	assert.True(t, r.LeaveRoom(snap.ID, "ca").Deleted)
	assert.NotPanics(t, func() {
		res := r.LeaveRoom(snap.ID, "ca")
		assert.False(t, res.Removed)
	})
}

func TestRoomRegistry_ConcurrentJoinsForLastSeat(t *testing.T) {
	r := NewRoomRegistry(time.Minute, nil, discardLogger())

	for round := 0; round < 20; round++ {
		snap := r.CreateRoom(participant("owner", "owner"), "")

		const joiners = 16
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success int
			full    int
		)
		start := make(chan struct{})
		for i := 0; i < joiners; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, err := r.JoinRoom(snap.ID, participant(fmt.Sprintf("c%d", i), fmt.Sprintf("u%d", i)))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					success++
				case assert.ErrorIs(t, err, ErrRoomFull):
					full++
				}
			}(i)
		}
		close(start)
		wg.Wait()

		assert.Equal(t, 1, success)
		assert.Equal(t, joiners-1, full)

		after, err := r.Get(snap.ID)
		require.NoError(t, err)
		assert.Len(t, after.Participants, domain.MaxParticipants)
	}
}

func TestRoomRegistry_ConcurrentLeaveAndJoinNeverRevivesRoom(t *testing.T) {
	r := NewRoomRegistry(time.Minute, nil, discardLogger())

	for round := 0; round < 100; round++ {
		snap := r.CreateRoom(participant("owner", "owner"), "")

		var wg sync.WaitGroup
		var joinErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.LeaveRoom(snap.ID, "owner")
		}()
		go func() {
			defer wg.Done()
			_, joinErr = r.JoinRoom(snap.ID, participant("late", "late"))
		}()
		wg.Wait()

		got, err := r.Get(snap.ID)
		if joinErr == nil {
			// Joined before the owner left: the joiner is alone in the room.
			require.NoError(t, err)
			assert.Len(t, got.Participants, 1)
			assert.True(t, got.Has("late"))
			r.LeaveRoom(snap.ID, "late")
		} else {
			assert.ErrorIs(t, joinErr, ErrRoomNotFound)
			assert.ErrorIs(t, err, ErrRoomNotFound)
		}
	}
	assert.Equal(t, 0, r.Count())
}

func TestRoomRegistry_FindRoomsContaining(t *testing.T) {
	r := NewRoomRegistry(time.Minute, nil, discardLogger())
	a := r.CreateRoom(participant("ca", "alice"), "")
	b := r.CreateRoom(participant("cb", "bob"), "")
	_, err := r.JoinRoom(b.ID, participant("ca", "alice"))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{a.ID, b.ID}, r.FindRoomsContaining("ca"))
	assert.Equal(t, []string{b.ID}, r.FindRoomsContaining("cb"))
	assert.Empty(t, r.FindRoomsContaining("nobody"))
}

func TestRoomRegistry_ReservedRoomMaterializesOnFirstJoin(t *testing.T) {
	r := NewRoomRegistry(time.Minute, nil, discardLogger())

	id := r.Reserve("tx-42")
	assert.True(t, r.Reserved(id))
	assert.Equal(t, 0, r.Count())

	_, err := r.Get(id)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	snap, err := r.JoinRoom(id, participant("cb", "bob"))
	require.NoError(t, err)
	assert.Equal(t, id, snap.ID)
	assert.Equal(t, "tx-42", snap.TransactionID)
	assert.Equal(t, domain.RoomStateForming, snap.State)
	assert.False(t, r.Reserved(id))
	assert.Equal(t, 0, r.Reservations())

	snap, err = r.JoinRoom(id, participant("ca", "alice"))
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStateActive, snap.State)
}

func TestRoomRegistry_ConcurrentJoinsOnReservation(t *testing.T) {
	r := NewRoomRegistry(time.Minute, nil, discardLogger())
	id := r.Reserve("")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.JoinRoom(id, participant(fmt.Sprintf("c%d", i), fmt.Sprintf("u%d", i)))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	snap, err := r.Get(id)
	require.NoError(t, err)
	assert.Len(t, snap.Participants, 2)
}

func TestRoomRegistry_ExpiredReservation(t *testing.T) {
	r := NewRoomRegistry(time.Minute, nil, discardLogger())
	now := time.Now()
	r.now = func() time.Time { return now }

	id := r.Reserve("")
	kept := r.Reserve("")

	now = now.Add(2 * time.Minute)
	_, err := r.JoinRoom(id, participant("ca", "alice"))
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, 0, r.Count())

	assert.Equal(t, 1, r.SweepReservations())
	assert.False(t, r.Reserved(kept))
	assert.Equal(t, 0, r.Reservations())
}

func TestRoomRegistry_CancelReservation(t *testing.T) {
	r := NewRoomRegistry(0, nil, discardLogger())
	id := r.Reserve("")
	r.CancelReservation(id)
	r.CancelReservation(id)

	_, err := r.JoinRoom(id, participant("ca", "alice"))
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomRegistry_RunSweepsUntilCanceled(t *testing.T) {
	r := NewRoomRegistry(time.Millisecond, nil, discardLogger())
	r.Reserve("")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return r.Reservations() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRoomRegistry_ConsumedReservationNeverReopens(t *testing.T) {
	r := NewRoomRegistry(time.Minute, nil, discardLogger())

	for i := 0; i < 200; i++ {
		id := r.Reserve("")

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			opened  int
			members = []string{"ca", "cb"}
		)
		for _, conn := range members {
			wg.Add(1)
			go func(conn string) {
				defer wg.Done()
				snap, err := r.JoinRoom(id, participant(conn, conn))
				if err != nil {
					assert.ErrorIs(t, err, ErrRoomNotFound)
					return
				}
				if len(snap.Participants) == 1 {
					mu.Lock()
					opened++
					mu.Unlock()
				}
				r.LeaveRoom(id, domain.ConnID(conn))
			}(conn)
		}
		wg.Wait()

		require.Equal(t, 1, opened, "iteration %d", i)
		require.Equal(t, 0, r.Count())
		require.False(t, r.Reserved(id))
	}
}

func TestRoomRegistry_RebindMovesSeat(t *testing.T) {
	r := NewRoomRegistry(time.Minute, nil, discardLogger())
	snap := r.CreateRoom(participant("ca", "alice"), "")
	_, err := r.JoinRoom(snap.ID, participant("cb", "bob"))
	require.NoError(t, err)

	assert.Empty(t, r.Rebind("alice", "cb", "cb2"), "seat belongs to another user")
	assert.Equal(t, []string{snap.ID}, r.Rebind("bob", "cb", "cb2"))

	assert.Empty(t, r.FindRoomsContaining("cb"))
	assert.Equal(t, []string{snap.ID}, r.FindRoomsContaining("cb2"))

	_, err = r.JoinRoom(snap.ID, participant("cb2", "bob"))
	assert.ErrorIs(t, err, ErrAlreadyInRoom)

	res := r.LeaveRoom(snap.ID, "cb")
	assert.False(t, res.Removed)
}
