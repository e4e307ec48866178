package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/metrics"
)

// LeaveResult describes the outcome of RoomRegistry.LeaveRoom.
type LeaveResult struct {
	Room    domain.RoomSnapshot
	Left    domain.Participant
	Removed bool
	Deleted bool
}

// RoomRegistry owns every room and its membership list.
//
// The index of rooms is a sync.Map; membership changes take only the lock of
// the room being changed, so unrelated rooms never contend. A room is removed
// from the index under its own lock at the moment its last participant
// leaves and is flagged Deleted, so a joiner that raced the removal retries
// the lookup instead of joining a dead room.
type RoomRegistry struct {
	log       *slog.Logger
	metrics   *metrics.Metrics
	inviteTTL time.Duration
	now       func() time.Time

	rooms        sync.Map // room id -> *domain.Room
	reservations sync.Map // room id -> domain.Reservation
	claimMu      sync.Mutex
}

func NewRoomRegistry(inviteTTL time.Duration, m *metrics.Metrics, log *slog.Logger) *RoomRegistry {
	if log == nil {
		log = slog.Default()
	}
	return &RoomRegistry{
		log:       log,
		metrics:   m,
		inviteTTL: inviteTTL,
		now:       time.Now,
	}
}

// CreateRoom allocates a fresh room with creator as its first participant.
func (r *RoomRegistry) CreateRoom(creator domain.Participant, transactionID string) domain.RoomSnapshot {
	for {
		id := domain.NewRoomID()
		if _, reserved := r.reservations.Load(id); reserved {
			continue
		}

		room := domain.NewRoom(id, transactionID, creator)
		snap := room.Snapshot()
		if _, loaded := r.rooms.LoadOrStore(id, room); loaded {
			continue
		}

		r.metrics.RoomOpened()
		r.log.Info("room created",
			slog.String("op", "service.rooms.create"),
			slog.String("room_id", id),
			slog.String("user_id", creator.UserID),
			slog.String("transaction_id", transactionID),
		)
		return snap
	}
}

// Reserve hands out a room id without creating the room. The room
// materializes on the first JoinRoom for that id.
func (r *RoomRegistry) Reserve(transactionID string) string {
	for {
		id := domain.NewRoomID()
		if _, exists := r.rooms.Load(id); exists {
			continue
		}

		res := domain.Reservation{RoomID: id, TransactionID: transactionID}
		if r.inviteTTL > 0 {
			res.ExpiresAt = r.now().Add(r.inviteTTL)
		}
		if _, loaded := r.reservations.LoadOrStore(id, res); loaded {
			continue
		}

		r.metrics.ReservationAdded()
		return id
	}
}

func (r *RoomRegistry) CancelReservation(roomID string) {
	if _, ok := r.reservations.LoadAndDelete(roomID); ok {
		r.metrics.ReservationRemoved()
	}
}

// JoinRoom adds p to the room. Exactly one of two concurrent joiners for the
// last seat succeeds; the other observes ErrRoomFull.
func (r *RoomRegistry) JoinRoom(roomID string, p domain.Participant) (domain.RoomSnapshot, error) {
	const op = "service.rooms.join"
	log := r.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("user_id", p.UserID),
	)

	for {
		if v, ok := r.rooms.Load(roomID); ok {
			snap, retry, err := r.join(v.(*domain.Room), p)
			if retry {
				continue
			}
			if err != nil {
				log.Info("join rejected", slog.String("reason", err.Error()))
				return domain.RoomSnapshot{}, err
			}
			log.Info("participant joined", slog.String("state", string(snap.State)))
			return snap, nil
		}

		snap, retry, err := r.materialize(roomID, p)
		if retry {
			continue
		}
		if err != nil {
			log.Info("join rejected", slog.String("reason", err.Error()))
			return domain.RoomSnapshot{}, err
		}
		log.Info("reserved room materialized", slog.String("transaction_id", snap.TransactionID))
		return snap, nil
	}
}

// materialize turns the reservation for roomID into a room with p as its
// first participant. The room is stored and the reservation consumed under
// claimMu, so a consumed reservation can never produce a second room.
func (r *RoomRegistry) materialize(roomID string, p domain.Participant) (domain.RoomSnapshot, bool, error) {
	r.claimMu.Lock()
	defer r.claimMu.Unlock()

	if _, ok := r.rooms.Load(roomID); ok {
		return domain.RoomSnapshot{}, true, nil
	}

	v, ok := r.reservations.Load(roomID)
	if !ok {
		return domain.RoomSnapshot{}, false, ErrRoomNotFound
	}
	res := v.(domain.Reservation)
	if res.Expired(r.now()) {
		r.CancelReservation(roomID)
		return domain.RoomSnapshot{}, false, fmt.Errorf("reservation expired: %w", ErrRoomNotFound)
	}

	room := domain.NewRoom(roomID, res.TransactionID, p)
	snap := room.Snapshot()
	if _, loaded := r.rooms.LoadOrStore(roomID, room); loaded {
		return domain.RoomSnapshot{}, true, nil
	}
	r.CancelReservation(roomID)
	r.metrics.RoomOpened()

	return snap, false, nil
}

func (r *RoomRegistry) join(room *domain.Room, p domain.Participant) (domain.RoomSnapshot, bool, error) {
	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	if room.Deleted {
		return domain.RoomSnapshot{}, true, nil
	}
	if room.IndexOf(p.ConnID) >= 0 {
		return domain.RoomSnapshot{}, false, ErrAlreadyInRoom
	}
	if len(room.Participants) >= domain.MaxParticipants {
		return domain.RoomSnapshot{}, false, ErrRoomFull
	}

	room.Participants = append(room.Participants, p)
	return room.Snapshot(), false, nil
}

// LeaveRoom removes the participant bound to conn. Leaving a room that does
// not exist, or that conn is not part of, is a no-op.
func (r *RoomRegistry) LeaveRoom(roomID string, conn domain.ConnID) LeaveResult {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return LeaveResult{}
	}
	room := v.(*domain.Room)

	room.Mutex.Lock()
	defer room.Mutex.Unlock()

	if room.Deleted {
		return LeaveResult{}
	}

	idx := room.IndexOf(conn)
	if idx < 0 {
		return LeaveResult{Room: room.Snapshot()}
	}

	res := LeaveResult{Left: room.Participants[idx], Removed: true}
	room.Participants = slices.Delete(room.Participants, idx, idx+1)

	if len(room.Participants) == 0 {
		room.Deleted = true
		r.rooms.CompareAndDelete(roomID, room)
		r.metrics.RoomClosed()
		res.Deleted = true
	}
	res.Room = room.Snapshot()

	r.log.Info("participant left",
		slog.String("op", "service.rooms.leave"),
		slog.String("room_id", roomID),
		slog.String("user_id", res.Left.UserID),
		slog.Bool("room_deleted", res.Deleted),
	)
	return res
}

// FindRoomsContaining lists every room conn is a participant of.
func (r *RoomRegistry) FindRoomsContaining(conn domain.ConnID) []string {
	var ids []string
	r.rooms.Range(func(key, value any) bool {
		room := value.(*domain.Room)
		room.Mutex.Lock()
		member := !room.Deleted && room.IndexOf(conn) >= 0
		room.Mutex.Unlock()
		if member {
			ids = append(ids, key.(string))
		}
		return true
	})
	return ids
}

// Rebind moves every seat userID holds through from over to to. Rooms where
// to already sits are left alone. It returns the ids of the rebound rooms.
func (r *RoomRegistry) Rebind(userID string, from, to domain.ConnID) []string {
	var ids []string
	r.rooms.Range(func(key, value any) bool {
		room := value.(*domain.Room)
		room.Mutex.Lock()
		if !room.Deleted && room.IndexOf(to) < 0 {
			if i := room.IndexOf(from); i >= 0 && room.Participants[i].UserID == userID {
				room.Participants[i].ConnID = to
				ids = append(ids, key.(string))
			}
		}
		room.Mutex.Unlock()
		return true
	})

	if len(ids) > 0 {
		r.log.Info("seats rebound to new connection",
			slog.String("op", "service.rooms.rebind"),
			slog.String("user_id", userID),
			slog.String("from_conn_id", string(from)),
			slog.String("to_conn_id", string(to)),
			slog.Int("rooms", len(ids)),
		)
	}
	return ids
}

func (r *RoomRegistry) Get(roomID string) (domain.RoomSnapshot, error) {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return domain.RoomSnapshot{}, ErrRoomNotFound
	}
	room := v.(*domain.Room)

	room.Mutex.Lock()
	defer room.Mutex.Unlock()
	if room.Deleted {
		return domain.RoomSnapshot{}, ErrRoomNotFound
	}
	return room.Snapshot(), nil
}

// Reserved reports whether roomID is an outstanding, unexpired reservation.
func (r *RoomRegistry) Reserved(roomID string) bool {
	v, ok := r.reservations.Load(roomID)
	return ok && !v.(domain.Reservation).Expired(r.now())
}

func (r *RoomRegistry) Count() int {
	n := 0
	r.rooms.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (r *RoomRegistry) Reservations() int {
	n := 0
	r.reservations.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// SweepReservations drops expired reservations and returns how many were removed.
func (r *RoomRegistry) SweepReservations() int {
	now := r.now()
	removed := 0
	r.reservations.Range(func(key, value any) bool {
		if value.(domain.Reservation).Expired(now) {
			if _, ok := r.reservations.LoadAndDelete(key); ok {
				r.metrics.ReservationRemoved()
				removed++
			}
		}
		return true
	})
	if removed > 0 {
		r.log.Debug("expired reservations swept", slog.Int("count", removed))
	}
	return removed
}

// Run sweeps reservations every interval until ctx is done.
func (r *RoomRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SweepReservations()
		}
	}
}
