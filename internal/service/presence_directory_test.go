package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceDirectory_RegisterLookupUnregister(t *testing.T) {
	d := NewPresenceDirectory(nil, discardLogger())
	conn := newFakeConn("c1")

	d.Register("alice", "Alice", conn)

	entry, ok := d.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "Alice", entry.UserName)
	assert.Equal(t, conn.ID(), entry.Conn.ID())
	assert.Equal(t, 1, d.Count())

	userID, removed := d.Unregister(conn.ID())
	assert.Equal(t, "alice", userID)
	assert.True(t, removed)

	_, ok = d.Lookup("alice")
	assert.False(t, ok)
	assert.Equal(t, 0, d.Count())
}

func TestPresenceDirectory_UnregisterIsIdempotent(t *testing.T) {
	d := NewPresenceDirectory(nil, discardLogger())
	d.Register("alice", "Alice", newFakeConn("c1"))

	_, removed := d.Unregister("c1")
	assert.True(t, removed)

	_, removed = d.Unregister("c1")
	assert.False(t, removed)

	_, removed = d.Unregister("never-seen")
	assert.False(t, removed)
}

func TestPresenceDirectory_NewestConnectionWins(t *testing.T) {
	d := NewPresenceDirectory(nil, discardLogger())
	first, second := newFakeConn("c1"), newFakeConn("c2")

	_, superseded := d.Register("alice", "Alice", first)
	assert.False(t, superseded)

	old, superseded := d.Register("alice", "Alice (tab 2)", second)
	require.True(t, superseded)
	assert.Equal(t, first.ID(), old)

	_, superseded = d.Register("alice", "Alice (tab 2)", second)
	assert.False(t, superseded)

	entry, ok := d.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, second.ID(), entry.Conn.ID())
	assert.Equal(t, 1, d.Count())

	// The late disconnect of the superseded handle must not evict the new one.
	_, removed := d.Unregister(first.ID())
	assert.False(t, removed)

	entry, ok = d.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, second.ID(), entry.Conn.ID())

	_, removed = d.Unregister(second.ID())
	assert.True(t, removed)
	assert.Equal(t, 0, d.Count())
}

func TestPresenceDirectory_ReRegisterUnderAnotherIdentity(t *testing.T) {
	d := NewPresenceDirectory(nil, discardLogger())
	conn := newFakeConn("c1")

	d.Register("alice", "Alice", conn)
	d.Register("bob", "Bob", conn)

	_, ok := d.Lookup("alice")
	assert.False(t, ok)
	_, ok = d.Lookup("bob")
	assert.True(t, ok)

	userID, removed := d.Unregister(conn.ID())
	assert.Equal(t, "bob", userID)
	assert.True(t, removed)
	assert.Equal(t, 0, d.Count())
}
