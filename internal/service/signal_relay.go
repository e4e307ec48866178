package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/metrics"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
)

const defaultSendTimeout = 2 * time.Second

// SignalRelay moves events between connections. It never looks inside
// negotiation payloads. Recipients are resolved through the presence
// directory at delivery time, so a peer that reconnected on a new handle
// still receives what is addressed to it.
type SignalRelay struct {
	rooms       *RoomRegistry
	presence    *PresenceDirectory
	sendTimeout time.Duration
	log         *slog.Logger
	metrics     *metrics.Metrics
}

func NewSignalRelay(rooms *RoomRegistry, presence *PresenceDirectory, sendTimeout time.Duration, m *metrics.Metrics, log *slog.Logger) *SignalRelay {
	if log == nil {
		log = slog.Default()
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &SignalRelay{
		rooms:       rooms,
		presence:    presence,
		sendTimeout: sendTimeout,
		log:         log,
		metrics:     m,
	}
}

// Forward delivers an event from sender to the other participant of roomID.
// build receives the sender's participant record and returns the event body.
// targetUserID, when set, restricts delivery to that user.
func (r *SignalRelay) Forward(
	ctx context.Context,
	sender domain.ConnID,
	roomID string,
	event domain.EventType,
	targetUserID string,
	build func(from domain.Participant) any,
) error {
	const op = "service.relay.forward"
	log := r.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("event", string(event)),
	)

	snap, err := r.rooms.Get(roomID)
	if err != nil {
		return err
	}

	var from domain.Participant
	found := false
	for _, p := range snap.Participants {
		if p.ConnID == sender {
			from, found = p, true
			break
		}
	}
	if !found {
		return ErrNotParticipant
	}

	delivered := 0
	for _, to := range snap.Others(sender) {
		if targetUserID != "" && to.UserID != targetUserID {
			continue
		}
		if r.deliver(ctx, sender, to.UserID, domain.Event{Name: event, Data: build(from)}) {
			delivered++
		}
	}
	if delivered == 0 {
		r.metrics.Dropped(metrics.DropReasonNoPeer)
		log.Debug("no peer to deliver to")
	}
	return nil
}

// NotifyOthers sends event to every participant of snap except the one bound to exclude.
func (r *SignalRelay) NotifyOthers(ctx context.Context, snap domain.RoomSnapshot, exclude domain.ConnID, event domain.Event) {
	for _, p := range snap.Others(exclude) {
		r.deliver(ctx, exclude, p.UserID, event)
	}
}

// NotifyUser delivers event to userID's live connection.
func (r *SignalRelay) NotifyUser(ctx context.Context, userID string, event domain.Event) bool {
	return r.deliver(ctx, "", userID, event)
}

// Reply sends event straight back to conn.
func (r *SignalRelay) Reply(ctx context.Context, conn domain.Conn, event domain.Event) {
	r.send(ctx, conn, event)
}

func (r *SignalRelay) deliver(ctx context.Context, sender domain.ConnID, userID string, event domain.Event) bool {
	entry, ok := r.presence.Lookup(userID)
	if !ok {
		r.metrics.Dropped(metrics.DropReasonRecipientOffline)
		r.log.Debug("recipient offline",
			slog.String("user_id", userID),
			slog.String("event", string(event.Name)),
		)
		return false
	}
	// A user in a call with themselves from two tabs resolves to the newest tab.
	if entry.Conn.ID() == sender {
		return false
	}
	if !r.send(ctx, entry.Conn, event) {
		return false
	}
	r.metrics.Relayed(string(event.Name))
	return true
}

// send applies the send deadline. A recipient that cannot accept the event in
// time is disconnected; its own receive loop then runs the cleanup.
func (r *SignalRelay) send(ctx context.Context, conn domain.Conn, event domain.Event) bool {
	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	err := conn.Send(sendCtx, event)
	if err == nil {
		return true
	}

	log := r.log.With(
		slog.String("conn_id", string(conn.ID())),
		slog.String("event", string(event.Name)),
	)
	if errors.Is(err, context.DeadlineExceeded) {
		r.metrics.Dropped(metrics.DropReasonSendTimeout)
		log.Warn("send timed out, closing slow connection", sl.Err(err))
		conn.Close()
		return false
	}

	r.metrics.Dropped(metrics.DropReasonConnClosed)
	log.Debug("send failed", sl.Err(err))
	return false
}
