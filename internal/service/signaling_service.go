package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

// SignalingService binds live connections to the presence directory, the
// room registry and the relay. It is constructed once per process and handed
// to the transport.
type SignalingService struct {
	presence   *PresenceDirectory
	rooms      *RoomRegistry
	relay      *SignalRelay
	users      UserDirectory
	iceServers []webrtc.ICEServer
	log        *slog.Logger
}

func NewSignalingService(
	presence *PresenceDirectory,
	rooms *RoomRegistry,
	relay *SignalRelay,
	users UserDirectory,
	iceServers []webrtc.ICEServer,
	log *slog.Logger,
) *SignalingService {
	if log == nil {
		log = slog.Default()
	}
	return &SignalingService{
		presence:   presence,
		rooms:      rooms,
		relay:      relay,
		users:      users,
		iceServers: iceServers,
		log:        log,
	}
}

func (s *SignalingService) Attach(conn domain.Conn) ConnectionHandler {
	return &Session{
		svc:  s,
		conn: conn,
		log:  s.log.With(slog.String("conn_id", string(conn.ID()))),
	}
}

// Session is the per-connection state. Its methods are called only from the
// connection's own receive loop.
type Session struct {
	svc      *SignalingService
	conn     domain.Conn
	log      *slog.Logger
	userID   string
	userName string
	// resumed holds rooms whose seat moved to this connection from the
	// user's previous one; a join-room for them resumes instead of failing.
	resumed map[string]struct{}
}

func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) Dispatch(ctx context.Context, env domain.Envelope) {
	var err error

	switch env.Event {
	case domain.EventJoinService:
		err = s.joinService(ctx, env.Data)
	case domain.EventCreateRoom:
		err = s.createRoom(ctx, env.Data)
	case domain.EventJoinRoom:
		err = s.joinRoom(ctx, env.Data)
	case domain.EventOffer, domain.EventAnswer, domain.EventICECandidate:
		err = s.forwardSignal(ctx, env.Event, env.Data)
	case domain.EventToggleAudio:
		err = s.forwardToggle(ctx, domain.EventPeerAudioToggle, env.Data)
	case domain.EventToggleVideo:
		err = s.forwardToggle(ctx, domain.EventPeerVideoToggle, env.Data)
	case domain.EventHangup:
		err = s.hangup(ctx, env.Data)
	case domain.EventEndCall:
		err = s.endCall(ctx, env.Data)
	default:
		s.log.Debug("unsupported event", slog.String("event", string(env.Event)))
		err = errors.New("unsupported event: " + string(env.Event))
	}

	if err != nil {
		s.log.Info("event failed", slog.String("event", string(env.Event)), sl.Err(err))
		s.svc.relay.Reply(ctx, s.conn, domain.Event{
			Name: domain.EventCallError,
			Data: domain.CallError{Message: errorMessage(err)},
		})
	}
}

// Detach runs the disconnect cleanup: presence first, then every room the
// connection still belongs to.
func (s *Session) Detach(ctx context.Context) {
	s.svc.presence.Unregister(s.conn.ID())

	for _, roomID := range s.svc.rooms.FindRoomsContaining(s.conn.ID()) {
		s.leave(ctx, roomID)
	}
	s.log.Debug("connection detached", slog.String("user_id", s.userID))
}

func (s *Session) joinService(ctx context.Context, data json.RawMessage) error {
	var p domain.JoinServicePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	p.UserID = strings.TrimSpace(p.UserID)
	if p.UserID == "" {
		return ErrInvalidPayload
	}

	name := strings.TrimSpace(p.UserName)
	if name == "" && s.svc.users != nil {
		if user, err := s.svc.users.GetByID(ctx, p.UserID); err == nil {
			name = user.Name
		}
	}

	if s.userID != "" && s.userID != p.UserID && len(s.svc.rooms.FindRoomsContaining(s.conn.ID())) > 0 {
		return ErrIdentityInUse
	}

	s.userID, s.userName = p.UserID, name
	if superseded, ok := s.svc.presence.Register(s.userID, s.userName, s.conn); ok {
		for _, roomID := range s.svc.rooms.Rebind(s.userID, superseded, s.conn.ID()) {
			if s.resumed == nil {
				s.resumed = make(map[string]struct{})
			}
			s.resumed[roomID] = struct{}{}
		}
	}

	s.svc.relay.Reply(ctx, s.conn, domain.Event{
		Name: domain.EventServiceJoined,
		Data: domain.ServiceJoined{
			UserID:     s.userID,
			UserName:   s.userName,
			ICEServers: s.svc.iceServers,
		},
	})
	return nil
}

func (s *Session) createRoom(ctx context.Context, data json.RawMessage) error {
	if s.userID == "" {
		return ErrNotRegistered
	}
	var p domain.CreateRoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	snap := s.svc.rooms.CreateRoom(s.participant(), p.Transaction())
	s.svc.relay.Reply(ctx, s.conn, domain.Event{
		Name: domain.EventRoomCreated,
		Data: domain.RoomCreated{RoomID: snap.ID, Room: snap},
	})
	return nil
}

func (s *Session) joinRoom(ctx context.Context, data json.RawMessage) error {
	if s.userID == "" {
		return ErrNotRegistered
	}
	var p domain.RoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.RoomID == "" {
		return ErrInvalidPayload
	}

	participant := s.participant()
	snap, err := s.svc.rooms.JoinRoom(p.RoomID, participant)
	if errors.Is(err, ErrAlreadyInRoom) {
		if _, ok := s.resumed[p.RoomID]; ok {
			delete(s.resumed, p.RoomID)
			snap, err = s.svc.rooms.Get(p.RoomID)
		}
	}
	if err != nil {
		return err
	}

	s.svc.relay.Reply(ctx, s.conn, domain.Event{
		Name: domain.EventRoomJoined,
		Data: domain.RoomJoined{Room: snap},
	})
	s.svc.relay.NotifyOthers(ctx, snap, s.conn.ID(), domain.Event{
		Name: domain.EventUserJoined,
		Data: domain.UserJoined{Participant: participant, Room: snap},
	})
	return nil
}

func (s *Session) forwardSignal(ctx context.Context, event domain.EventType, data json.RawMessage) error {
	var p domain.SignalPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.RoomID == "" {
		return ErrInvalidPayload
	}

	body := p.Body()
	return s.svc.relay.Forward(ctx, s.conn.ID(), p.RoomID, event, p.TargetUserID, func(from domain.Participant) any {
		return domain.NewRelayed(event, p.RoomID, body, from)
	})
}

func (s *Session) forwardToggle(ctx context.Context, event domain.EventType, data json.RawMessage) error {
	var p domain.TogglePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.RoomID == "" {
		return ErrInvalidPayload
	}

	return s.svc.relay.Forward(ctx, s.conn.ID(), p.RoomID, event, "", func(from domain.Participant) any {
		return domain.PeerToggle{
			RoomID:    p.RoomID,
			UserID:    from.UserID,
			IsEnabled: p.IsEnabled,
		}
	})
}

// hangup is relayed to the peer and then ends the sender's participation.
func (s *Session) hangup(ctx context.Context, data json.RawMessage) error {
	var p domain.RoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.RoomID == "" {
		return ErrInvalidPayload
	}

	err := s.svc.relay.Forward(ctx, s.conn.ID(), p.RoomID, domain.EventHangup, "", func(from domain.Participant) any {
		return domain.NewRelayed(domain.EventHangup, p.RoomID, nil, from)
	})
	if err != nil {
		return err
	}
	s.endParticipation(ctx, p.RoomID)
	return nil
}

func (s *Session) endCall(ctx context.Context, data json.RawMessage) error {
	var p domain.RoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.RoomID == "" {
		return ErrInvalidPayload
	}
	s.endParticipation(ctx, p.RoomID)
	return nil
}

func (s *Session) endParticipation(ctx context.Context, roomID string) {
	if s.leave(ctx, roomID) {
		s.svc.relay.Reply(ctx, s.conn, domain.Event{
			Name: domain.EventCallEnded,
			Data: domain.CallEnded{RoomID: roomID},
		})
	}
}

func (s *Session) leave(ctx context.Context, roomID string) bool {
	res := s.svc.rooms.LeaveRoom(roomID, s.conn.ID())
	if !res.Removed {
		return false
	}
	if !res.Deleted {
		s.svc.relay.NotifyOthers(ctx, res.Room, s.conn.ID(), domain.Event{
			Name: domain.EventUserLeft,
			Data: domain.UserLeft{
				RoomID:   roomID,
				UserID:   res.Left.UserID,
				UserName: res.Left.UserName,
			},
		})
	}
	return true
}

func (s *Session) participant() domain.Participant {
	return domain.NewParticipant(s.conn.ID(), s.userID, s.userName)
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ErrInvalidPayload
	}
	return nil
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, ErrRoomFull):
		return "Room is full"
	case errors.Is(err, ErrNotRegistered):
		return "Join the call service first"
	case errors.Is(err, ErrNotParticipant):
		return "You are not in this room"
	case errors.Is(err, ErrAlreadyInRoom):
		return "Already in this room"
	case errors.Is(err, ErrInvalidPayload):
		return "Invalid message"
	case errors.Is(err, ErrIdentityInUse):
		return "Leave the call before switching user"
	default:
		return err.Error()
	}
}
