package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/metrics"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
)

const callTypeSkillSession = "skill-session"

// CallCoordinator is the single entry point for the booking layer.
type CallCoordinator struct {
	presence *PresenceDirectory
	rooms    *RoomRegistry
	relay    *SignalRelay
	users    UserDirectory
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewCallCoordinator(
	presence *PresenceDirectory,
	rooms *RoomRegistry,
	relay *SignalRelay,
	users UserDirectory,
	m *metrics.Metrics,
	log *slog.Logger,
) *CallCoordinator {
	if log == nil {
		log = slog.Default()
	}
	return &CallCoordinator{
		presence: presence,
		rooms:    rooms,
		relay:    relay,
		users:    users,
		log:      log,
		metrics:  m,
	}
}

// InitiateCall invites targetID to a call with initiatorID and returns the
// room id both parties should join. The room itself is created by the first
// join; on failure nothing is left behind.
func (c *CallCoordinator) InitiateCall(ctx context.Context, transactionID, initiatorID, targetID string) (string, error) {
	const op = "service.call.initiate"
	log := c.log.With(
		slog.String("op", op),
		slog.String("initiator_id", initiatorID),
		slog.String("target_id", targetID),
		slog.String("transaction_id", transactionID),
	)

	initiatorID = strings.TrimSpace(initiatorID)
	targetID = strings.TrimSpace(targetID)
	if initiatorID == "" || targetID == "" {
		c.metrics.CallInitiated(metrics.CallResultRejected)
		return "", fmt.Errorf("%s: %w", op, ErrInvalidPayload)
	}
	if initiatorID == targetID {
		c.metrics.CallInitiated(metrics.CallResultRejected)
		return "", fmt.Errorf("%s: %w", op, ErrSelfCall)
	}

	initiator, initiatorOnline := c.presence.Lookup(initiatorID)
	_, targetOnline := c.presence.Lookup(targetID)
	if !initiatorOnline || !targetOnline {
		c.metrics.CallInitiated(metrics.CallResultPeerOffline)
		log.Info("peer offline",
			slog.Bool("initiator_online", initiatorOnline),
			slog.Bool("target_online", targetOnline),
		)
		return "", ErrPeerOffline
	}

	roomID := c.rooms.Reserve(transactionID)

	invite := domain.IncomingCall{
		RoomID:        roomID,
		TransactionID: transactionID,
		SwapRequestID: transactionID,
		FromUserID:    initiatorID,
		FromUserName:  c.displayName(ctx, initiator),
		CallType:      callTypeSkillSession,
		SentAt:        time.Now().UTC(),
	}
	if !c.relay.NotifyUser(ctx, targetID, domain.Event{Name: domain.EventIncomingCall, Data: invite}) {
		c.rooms.CancelReservation(roomID)
		c.metrics.CallInitiated(metrics.CallResultPeerOffline)
		log.Info("invitation not delivered")
		return "", ErrPeerOffline
	}

	c.metrics.CallInitiated(metrics.CallResultInitiated)
	log.Info("call initiated", slog.String("room_id", roomID))
	return roomID, nil
}

func (c *CallCoordinator) displayName(ctx context.Context, entry PresenceEntry) string {
	if c.users == nil {
		return entry.UserName
	}
	user, err := c.users.GetByID(ctx, entry.UserID)
	if err != nil {
		c.log.Debug("directory lookup failed", slog.String("user_id", entry.UserID), sl.Err(err))
		return entry.UserName
	}
	if user.Name == "" {
		return entry.UserName
	}
	return user.Name
}
