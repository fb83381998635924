package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

func TestNewRoomStartsPaused(t *testing.T) {
	room := NewRoom("movies", "host-1", "https://cdn.example/a.mkv", nil, 30.0)

	assert.Equal(t, "movies", room.ID())
	assert.Equal(t, "host-1", room.HostID())
	assert.True(t, room.IsHost("host-1"))
	assert.False(t, room.FreePlay())

	state := room.State()
	assert.Equal(t, 30.0, state.Position)
	assert.Equal(t, PlayStatePaused, state.PlayState)
}

func TestAddParticipantKeepsJoinOrder(t *testing.T) {
	room := NewRoom("r", "a", "", nil, 0)
	room.AddParticipant(NewParticipant("a", "Alice", "r", nil))
	room.AddParticipant(NewParticipant("b", "Bob", "r", nil))
	room.AddParticipant(NewParticipant("c", "Cara", "r", nil))

	infos := room.ParticipantsPayload()
	require.Len(t, infos.Participants, 3)
	assert.Equal(t, "a", infos.Participants[0].ClientID)
	assert.Equal(t, "b", infos.Participants[1].ClientID)
	assert.Equal(t, "c", infos.Participants[2].ClientID)
	assert.True(t, infos.Participants[0].IsHost)
	assert.False(t, infos.Participants[1].IsHost)
}

func TestReAddingParticipantKeepsPosition(t *testing.T) {
	room := NewRoom("r", "a", "", nil, 0)
	room.AddParticipant(NewParticipant("a", "Alice", "r", nil))
	room.AddParticipant(NewParticipant("b", "Bob", "r", nil))

	// Reconnect under the same client id.
	room.AddParticipant(NewParticipant("a", "Alice2", "r", nil))

	infos := room.ParticipantsPayload()
	require.Len(t, infos.Participants, 2)
	assert.Equal(t, "a", infos.Participants[0].ClientID)
	assert.Equal(t, "Alice2", infos.Participants[0].Name)
}

func TestPromoteNextHostFollowsJoinOrder(t *testing.T) {
	room := NewRoom("r", "a", "", nil, 0)
	room.AddParticipant(NewParticipant("a", "", "r", nil))
	room.AddParticipant(NewParticipant("b", "", "r", nil))
	room.AddParticipant(NewParticipant("c", "", "r", nil))

	room.RemoveParticipant("a")
	host, ok := room.PromoteNextHost()
	require.True(t, ok)
	assert.Equal(t, "b", host)
	assert.True(t, room.IsHost("b"))

	room.RemoveParticipant("b")
	host, ok = room.PromoteNextHost()
	require.True(t, ok)
	assert.Equal(t, "c", host)

	room.RemoveParticipant("c")
	_, ok = room.PromoteNextHost()
	assert.False(t, ok)
	assert.True(t, room.Empty())
}

func TestEvictSkipsHostFailover(t *testing.T) {
	room := NewRoom("r", "a", "", nil, 0)
	room.AddParticipant(NewParticipant("a", "", "r", nil))
	room.AddParticipant(NewParticipant("b", "", "r", nil))

	room.Evict([]string{"a"})

	// The evicted host keeps host_id until a formal disconnect.
	assert.Equal(t, "a", room.HostID())
	assert.False(t, room.HasParticipant("a"))
	assert.Equal(t, 1, room.Size())
}

func TestApplyPlayerEvent(t *testing.T) {
	room := NewRoom("r", "a", "", nil, 0)

	room.ApplyPlayerEvent(ActionPlay, floatPtr(10))
	state := room.State()
	assert.Equal(t, PlayStatePlaying, state.PlayState)
	assert.Equal(t, 10.0, state.Position)

	// Seeks move position but never touch play_state.
	room.ApplyPlayerEvent(ActionPause, nil)
	room.ApplyPlayerEvent(ActionSeek, floatPtr(50))
	state = room.State()
	assert.Equal(t, PlayStatePaused, state.PlayState)
	assert.Equal(t, 50.0, state.Position)

	// Play without a position keeps the old one.
	room.ApplyPlayerEvent(ActionPlay, nil)
	state = room.State()
	assert.Equal(t, PlayStatePlaying, state.PlayState)
	assert.Equal(t, 50.0, state.Position)
}

func TestApplyStateUpdate(t *testing.T) {
	room := NewRoom("r", "a", "", nil, 0)

	room.ApplyStateUpdate(floatPtr(33), strPtr(PlayStatePlaying))
	state := room.State()
	assert.Equal(t, 33.0, state.Position)
	assert.Equal(t, PlayStatePlaying, state.PlayState)

	// Partial updates leave the other field alone.
	room.ApplyStateUpdate(nil, strPtr(PlayStatePaused))
	state = room.State()
	assert.Equal(t, 33.0, state.Position)
	assert.Equal(t, PlayStatePaused, state.PlayState)
}

func TestStatePayloadSnapshot(t *testing.T) {
	options := RoomOptions{"free_play": true, "theme": "dark"}
	room := NewRoom("movies", "a", "https://cdn.example/a.mkv", options, 5)
	room.AddParticipant(NewParticipant("a", "Alice", "movies", nil))

	payload := room.StatePayload()
	assert.Equal(t, "movies", payload.Room)
	assert.Equal(t, "a", payload.HostID)
	assert.Equal(t, "https://cdn.example/a.mkv", payload.MediaURL)
	assert.Equal(t, "dark", payload.Options["theme"])
	assert.True(t, room.FreePlay())
	assert.Equal(t, 1, payload.ParticipantCount)
}

func TestRecipientsExcludes(t *testing.T) {
	room := NewRoom("r", "a", "", nil, 0)
	room.AddParticipant(NewParticipant("a", "", "r", nil))
	room.AddParticipant(NewParticipant("b", "", "r", nil))

	all := room.Recipients("")
	assert.Len(t, all, 2)

	withoutA := room.Recipients("a")
	require.Len(t, withoutA, 1)
	assert.Equal(t, "b", withoutA[0].ClientID)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	room := NewRoom("r", "a", "", nil, 0)

	assert.True(t, registry.CreateRoom(room))
	assert.False(t, registry.CreateRoom(NewRoom("r", "b", "", nil, 0)), "duplicate id must be rejected")
	assert.Equal(t, 1, registry.RoomCount())

	got, ok := registry.Room("r")
	require.True(t, ok)
	assert.Same(t, room, got)

	registry.DeleteRoom("r")
	_, ok = registry.Room("r")
	assert.False(t, ok)
	assert.Equal(t, 0, registry.RoomCount())
}

func TestRegistryBindUnbind(t *testing.T) {
	registry := NewRegistry()
	sender := &fakeSender{}
	participant := NewParticipant("a", "Alice", "r", sender)

	registry.Bind(sender, participant)
	got, ok := registry.Unbind(sender)
	require.True(t, ok)
	assert.Same(t, participant, got)

	_, ok = registry.Unbind(sender)
	assert.False(t, ok, "second unbind must miss")
}
