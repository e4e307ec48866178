package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/metrics"
)

type PresenceEntry struct {
	UserID   string
	UserName string
	Conn     domain.Conn
	Since    time.Time
}

// PresenceDirectory maps a user id to the single connection that currently
// represents that user. A newer registration for the same user replaces the
// older one; the superseded connection stays open but is no longer reachable
// through the directory.
//
// Entries are stored as pointers so that Unregister can remove an entry only
// if it still belongs to the disconnecting handle.
type PresenceDirectory struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	byUser sync.Map // user id -> *PresenceEntry
	byConn sync.Map // domain.ConnID -> user id
}

func NewPresenceDirectory(m *metrics.Metrics, log *slog.Logger) *PresenceDirectory {
	if log == nil {
		log = slog.Default()
	}
	return &PresenceDirectory{log: log, metrics: m}
}

// Register records conn as the live connection of userID and returns the
// handle it superseded, if any.
func (d *PresenceDirectory) Register(userID, userName string, conn domain.Conn) (domain.ConnID, bool) {
	const op = "service.presence.register"
	log := d.log.With(
		slog.String("op", op),
		slog.String("user_id", userID),
		slog.String("conn_id", string(conn.ID())),
	)

	// The same connection may re-register under another identity.
	if prevUser, ok := d.byConn.Load(conn.ID()); ok && prevUser.(string) != userID {
		d.removeIfOwned(prevUser.(string), conn.ID())
	}

	entry := &PresenceEntry{
		UserID:   userID,
		UserName: userName,
		Conn:     conn,
		Since:    time.Now().UTC(),
	}
	d.byConn.Store(conn.ID(), userID)

	prev, loaded := d.byUser.Swap(userID, entry)
	if !loaded {
		d.metrics.UserOnline()
		log.Info("user online")
		return "", false
	}

	old := prev.(*PresenceEntry)
	if old.Conn.ID() == conn.ID() {
		return "", false
	}
	log.Info("presence superseded", slog.String("previous_conn_id", string(old.Conn.ID())))
	return old.Conn.ID(), true
}

// Unregister removes the entry owned by conn. It is a no-op when the handle
// is unknown or has already been superseded.
func (d *PresenceDirectory) Unregister(conn domain.ConnID) (string, bool) {
	v, ok := d.byConn.LoadAndDelete(conn)
	if !ok {
		return "", false
	}
	userID := v.(string)
	return userID, d.removeIfOwned(userID, conn)
}

func (d *PresenceDirectory) removeIfOwned(userID string, conn domain.ConnID) bool {
	v, ok := d.byUser.Load(userID)
	if !ok {
		return false
	}
	entry := v.(*PresenceEntry)
	if entry.Conn.ID() != conn {
		return false
	}
	if !d.byUser.CompareAndDelete(userID, entry) {
		return false
	}

	d.metrics.UserOffline()
	d.log.Info("user offline",
		slog.String("op", "service.presence.unregister"),
		slog.String("user_id", userID),
		slog.String("conn_id", string(conn)),
	)
	return true
}

func (d *PresenceDirectory) Lookup(userID string) (PresenceEntry, bool) {
	v, ok := d.byUser.Load(userID)
	if !ok {
		return PresenceEntry{}, false
	}
	return *v.(*PresenceEntry), true
}

func (d *PresenceDirectory) Count() int {
	n := 0
	d.byUser.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
