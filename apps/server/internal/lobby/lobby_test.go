package lobby

import (
	"testing"
	"time"

	"otrio-lite/apps/server/internal/room"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopBroadcast(string, []byte) {}

func newTestLobby(t *testing.T) *Lobby {
	t.Helper()
	l := New(room.Config{
		TurnTimeout: time.Hour,
		RoomTTL:     time.Hour,
		Seed:        42,
	}, time.Hour)
	t.Cleanup(l.Stop)
	return l
}

func TestCreateValidation(t *testing.T) {
	l := newTestLobby(t)

	_, err := l.Create("h1", "", 2, false, "", noopBroadcast)
	assert.ErrorIs(t, err, ErrInvalidRoomName)
	_, err = l.Create("h1", "   ", 2, false, "", noopBroadcast)
	assert.ErrorIs(t, err, ErrInvalidRoomName)

	_, err = l.Create("h1", "room", 1, false, "", noopBroadcast)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	_, err = l.Create("h1", "room", 5, false, "", noopBroadcast)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = l.Create("h1", "room", 2, true, "abc", noopBroadcast)
	assert.ErrorIs(t, err, ErrInvalidRoomCode)

	r, err := l.Create("h1", "room", 2, true, "abcd", noopBroadcast)
	require.NoError(t, err)
	assert.True(t, r.Opts.IsPrivate)
	assert.NotEmpty(t, r.Opts.CodeHash)
}

func TestHostUniqueness(t *testing.T) {
	l := newTestLobby(t)

	r1, err := l.Create("h1", "first", 2, false, "", noopBroadcast)
	require.NoError(t, err)

	_, err = l.Create("h1", "second", 2, false, "", noopBroadcast)
	assert.ErrorIs(t, err, ErrHostBusy)

	// Another host is unaffected.
	_, err = l.Create("h2", "other", 2, false, "", noopBroadcast)
	require.NoError(t, err)

	// A dead room vacates the slot.
	r1.Close()
	r2, err := l.Create("h1", "third", 2, false, "", noopBroadcast)
	require.NoError(t, err)
	assert.NotEqual(t, r1.ID, r2.ID)
}

func TestReleaseHost(t *testing.T) {
	l := newTestLobby(t)
	_, err := l.Create("h1", "first", 2, false, "", noopBroadcast)
	require.NoError(t, err)

	l.ReleaseHost("h1")
	_, err = l.Create("h1", "second", 2, false, "", noopBroadcast)
	assert.NoError(t, err)
}

func TestGetAndRemove(t *testing.T) {
	l := newTestLobby(t)
	r, err := l.Create("h1", "room", 2, false, "", noopBroadcast)
	require.NoError(t, err)

	got, err := l.Get(r.ID)
	require.NoError(t, err)
	assert.Same(t, r, got)

	_, err = l.Get("missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	l.Remove(r.ID)
	_, err = l.Get(r.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.True(t, r.IsClosed())
}

func TestGetClosedRoomReadsAsAbsent(t *testing.T) {
	l := newTestLobby(t)
	r, err := l.Create("h1", "room", 2, false, "", noopBroadcast)
	require.NoError(t, err)

	r.Close()
	_, err = l.Get(r.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestListFilterSortPage(t *testing.T) {
	l := newTestLobby(t)
	mk := func(host, name string, private bool) {
		code := ""
		if private {
			code = "code1234"
		}
		_, err := l.Create(host, name, 4, private, code, noopBroadcast)
		require.NoError(t, err)
	}
	mk("h1", "Charlie", false)
	mk("h2", "alpha", false)
	mk("h3", "Bravo", true)

	items, total, hasMore := l.List(ListOptions{SortBy: "name"})
	require.Equal(t, 3, total)
	assert.False(t, hasMore)
	require.Len(t, items, 3)
	assert.Equal(t, "alpha", items[0].Name)
	assert.Equal(t, "Bravo", items[1].Name)
	assert.Equal(t, "Charlie", items[2].Name)

	items, _, _ = l.List(ListOptions{SortBy: "name", Desc: true})
	assert.Equal(t, "Charlie", items[0].Name)

	priv := true
	items, total, _ = l.List(ListOptions{IsPrivate: &priv})
	require.Equal(t, 1, total)
	assert.Equal(t, "Bravo", items[0].Name)

	items, total, _ = l.List(ListOptions{Name: "RAV"})
	require.Equal(t, 1, total)
	assert.Equal(t, "Bravo", items[0].Name)

	items, total, hasMore = l.List(ListOptions{SortBy: "name", Limit: 2})
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.True(t, hasMore)

	items, _, hasMore = l.List(ListOptions{SortBy: "name", Offset: 2, Limit: 2})
	require.Len(t, items, 1)
	assert.Equal(t, "Charlie", items[0].Name)
	assert.False(t, hasMore)

	items, total, _ = l.List(ListOptions{Status: string(room.StatusPlaying)})
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestListSortByCreated(t *testing.T) {
	l := newTestLobby(t)
	for _, name := range []string{"one", "two", "three"} {
		_, err := l.Create("h"+name, name, 2, false, "", noopBroadcast)
		require.NoError(t, err)
	}
	items, _, _ := l.List(ListOptions{SortBy: "created"})
	require.Len(t, items, 3)
	assert.Equal(t, "one", items[0].Name)
	assert.Equal(t, "three", items[2].Name)
}

func TestJoinableExcludesStartedRooms(t *testing.T) {
	l := newTestLobby(t)
	open, err := l.Create("h1", "open", 3, false, "", noopBroadcast)
	require.NoError(t, err)
	full, err := l.Create("h2", "full", 2, false, "", noopBroadcast)
	require.NoError(t, err)

	_, err = full.Join("alice", "")
	require.NoError(t, err)
	_, err = full.Join("bob", "")
	require.NoError(t, err)
	require.Equal(t, room.StatusPlaying, full.Status())

	items := l.Joinable()
	require.Len(t, items, 1)
	assert.Equal(t, open.ID, items[0].ID)
	assert.Equal(t, "waiting", items[0].Status)
}

func TestSweepPurgesDeadRooms(t *testing.T) {
	l := newTestLobby(t)
	dead, err := l.Create("h1", "dead", 2, false, "", noopBroadcast)
	require.NoError(t, err)
	alive, err := l.Create("h2", "alive", 2, false, "", noopBroadcast)
	require.NoError(t, err)

	dead.Close()
	l.sweep()

	_, err = l.Get(dead.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = l.Get(alive.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, l.RoomCount())

	// The dead host key was vacated by the sweep.
	_, err = l.Create("h1", "fresh", 2, false, "", noopBroadcast)
	assert.NoError(t, err)
}
