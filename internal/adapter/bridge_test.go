package adapter

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observer/syncparty/internal/mpv"
	"github.com/observer/syncparty/internal/session"
)

type propertyCall struct {
	name  string
	value interface{}
}

type fakePlayer struct {
	calls    []propertyCall
	observed []string
	events   chan mpv.Event
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{events: make(chan mpv.Event, 8)}
}

func (p *fakePlayer) SetProperty(name string, value interface{}) error {
	p.calls = append(p.calls, propertyCall{name, value})
	return nil
}

func (p *fakePlayer) ObserveProperty(id int, name string) error {
	p.observed = append(p.observed, name)
	return nil
}

func (p *fakePlayer) Events() <-chan mpv.Event { return p.events }
func (p *fakePlayer) Close() error             { return nil }

type fakeChannel struct {
	sent []*session.Message
}

func (c *fakeChannel) WriteJSON(v interface{}) error {
	c.sent = append(c.sent, v.(*session.Message))
	return nil
}

func newTestBridge(t *testing.T, host bool) (*Bridge, *fakePlayer, *fakeChannel, *time.Time) {
	t.Helper()
	player := newFakePlayer()
	channel := &fakeChannel{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	b := New(Config{
		Room:     "movies",
		Name:     "MPV",
		ClientID: "mpv-1",
		Host:     host,
		MediaURL: "https://cdn.example/movie.mkv",
	}, player, channel, logger)

	clock := time.Unix(1700000000, 0)
	b.now = func() time.Time { return clock }
	return b, player, channel, &clock
}

func decodePayload[T any](t *testing.T, msg *session.Message) T {
	t.Helper()
	var payload T
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	return payload
}

func TestStartAsHostCreatesRoom(t *testing.T) {
	b, player, channel, _ := newTestBridge(t, true)

	require.NoError(t, b.Start())

	assert.Equal(t, []string{"pause", "time-pos"}, player.observed)
	require.Len(t, channel.sent, 1)
	msg := channel.sent[0]
	assert.Equal(t, session.TypeCreateRoom, msg.Type)
	assert.Equal(t, "movies", msg.Room)
	assert.Equal(t, "mpv-1", msg.Client)

	payload := decodePayload[session.CreateRoomPayload](t, msg)
	assert.Equal(t, "https://cdn.example/movie.mkv", payload.MediaURL)
	assert.Equal(t, "MPV", payload.Name)
	assert.False(t, payload.Options.FreePlay())
}

func TestStartAsObserverJoinsRoom(t *testing.T) {
	b, _, channel, _ := newTestBridge(t, false)
	b.cfg.InviteToken = "inv-token"

	require.NoError(t, b.Start())

	require.Len(t, channel.sent, 1)
	assert.Equal(t, session.TypeJoinRoom, channel.sent[0].Type)
	payload := decodePayload[session.JoinRoomPayload](t, channel.sent[0])
	assert.Equal(t, "inv-token", payload.InviteToken)
}

func TestRemotePlayerEventAppliedWithSuppression(t *testing.T) {
	b, player, channel, clock := newTestBridge(t, false)

	pos := 42.0
	payload, _ := json.Marshal(session.PlayerEventPayload{Action: session.ActionSeek, Position: &pos})
	require.NoError(t, b.HandleSessionMessage(&session.Message{
		Type: session.TypePlayerEvent, Room: "movies", Payload: payload,
	}))

	require.Len(t, player.calls, 1)
	assert.Equal(t, propertyCall{"time-pos", 42.0}, player.calls[0])

	// A pause change inside the suppression window stays local.
	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "pause", Data: true,
	}))
	assert.Empty(t, channel.sent)

	// Past the window the same change would go out, but only for hosts.
	*clock = clock.Add(suppressWindow + time.Millisecond)
	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "pause", Data: true,
	}))
	assert.Empty(t, channel.sent)
}

func TestHostSuppressionBreaksFeedbackLoop(t *testing.T) {
	b, player, channel, clock := newTestBridge(t, true)
	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "time-pos", Data: 2.0,
	}))

	// A remote seek lands on the player and opens the window.
	pos := 10.0
	payload, _ := json.Marshal(session.PlayerEventPayload{Action: session.ActionSeek, Position: &pos})
	require.NoError(t, b.HandleSessionMessage(&session.Message{
		Type: session.TypePlayerEvent, Room: "movies", Payload: payload,
	}))
	require.Len(t, player.calls, 1)

	// The player's echo of that seek arrives inside the window.
	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "time-pos", Data: 10.0,
	}))
	assert.Empty(t, channel.sent)

	// A genuine local seek after the window goes out.
	*clock = clock.Add(500 * time.Millisecond)
	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "time-pos", Data: 60.0,
	}))
	require.Len(t, channel.sent, 1)
	emitted := decodePayload[session.PlayerEventPayload](t, channel.sent[0])
	assert.Equal(t, session.ActionSeek, emitted.Action)
	assert.Equal(t, 60.0, *emitted.Position)
}

func TestHostPauseChangeEmitsEvent(t *testing.T) {
	b, _, channel, _ := newTestBridge(t, true)

	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "time-pos", Data: 30.0,
	}))
	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "pause", Data: true,
	}))

	require.Len(t, channel.sent, 1)
	msg := channel.sent[0]
	assert.Equal(t, session.TypePlayerEvent, msg.Type)
	payload := decodePayload[session.PlayerEventPayload](t, msg)
	assert.Equal(t, session.ActionPause, payload.Action)
	require.NotNil(t, payload.Position)
	assert.Equal(t, 30.0, *payload.Position)
}

func TestHostUnpauseEmitsPlay(t *testing.T) {
	b, _, channel, _ := newTestBridge(t, true)

	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "pause", Data: false,
	}))

	require.Len(t, channel.sent, 1)
	payload := decodePayload[session.PlayerEventPayload](t, channel.sent[0])
	assert.Equal(t, session.ActionPlay, payload.Action)
	assert.Equal(t, 0.0, *payload.Position)
}

func TestTimePosJumpEmitsSeek(t *testing.T) {
	b, _, channel, _ := newTestBridge(t, true)

	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "time-pos", Data: 10.0,
	}))
	assert.Empty(t, channel.sent, "first observation only primes the tracker")

	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "time-pos", Data: 10.5,
	}))
	assert.Empty(t, channel.sent, "sub-threshold drift is normal playback")

	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "time-pos", Data: 95.0,
	}))
	require.Len(t, channel.sent, 1)
	payload := decodePayload[session.PlayerEventPayload](t, channel.sent[0])
	assert.Equal(t, session.ActionSeek, payload.Action)
	assert.Equal(t, 95.0, *payload.Position)

	// Backwards jumps count too.
	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "time-pos", Data: 5.0,
	}))
	require.Len(t, channel.sent, 2)
}

func TestObserverTracksTimePosSilently(t *testing.T) {
	b, _, channel, _ := newTestBridge(t, false)

	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "time-pos", Data: 10.0,
	}))
	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "time-pos", Data: 200.0,
	}))

	assert.Empty(t, channel.sent)
	assert.Equal(t, 200.0, b.lastTimePos)
}

func TestNullTimePosIgnored(t *testing.T) {
	b, _, channel, _ := newTestBridge(t, true)

	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "time-pos", Data: nil,
	}))

	assert.Empty(t, channel.sent)
	assert.False(t, b.hasTimePos)
}

func TestSeekEventUsesLastKnownPosition(t *testing.T) {
	b, _, channel, _ := newTestBridge(t, true)

	// Without a known position a bare seek event is dropped.
	require.NoError(t, b.HandlePlayerEvent(mpv.Event{Event: "seek"}))
	assert.Empty(t, channel.sent)

	require.NoError(t, b.HandlePlayerEvent(mpv.Event{
		Event: "property-change", Name: "time-pos", Data: 77.0,
	}))
	require.NoError(t, b.HandlePlayerEvent(mpv.Event{Event: "seek"}))

	require.Len(t, channel.sent, 1)
	payload := decodePayload[session.PlayerEventPayload](t, channel.sent[0])
	assert.Equal(t, session.ActionSeek, payload.Action)
	assert.Equal(t, 77.0, *payload.Position)
}

func TestRoomStateAppliesPositionAndPlayState(t *testing.T) {
	b, player, _, _ := newTestBridge(t, false)

	payload, _ := json.Marshal(session.RoomStatePayload{
		Room:   "movies",
		HostID: "host-1",
		State:  session.State{Position: 120.0, PlayState: session.PlayStatePlaying},
	})
	require.NoError(t, b.HandleSessionMessage(&session.Message{
		Type: session.TypeRoomState, Room: "movies", Payload: payload,
	}))

	require.Len(t, player.calls, 2)
	assert.Equal(t, propertyCall{"time-pos", 120.0}, player.calls[0])
	assert.Equal(t, propertyCall{"pause", false}, player.calls[1])
	assert.True(t, b.suppressed())
}

func TestStateUpdateAppliesPosition(t *testing.T) {
	b, player, _, _ := newTestBridge(t, false)

	pos := 64.0
	payload, _ := json.Marshal(session.StateUpdatePayload{Position: &pos})
	require.NoError(t, b.HandleSessionMessage(&session.Message{
		Type: session.TypeStateUpdate, Room: "movies", Payload: payload,
	}))

	require.Len(t, player.calls, 1)
	assert.Equal(t, propertyCall{"time-pos", 64.0}, player.calls[0])
}

func TestMessagesForOtherRoomsIgnored(t *testing.T) {
	b, player, _, _ := newTestBridge(t, false)

	pos := 10.0
	payload, _ := json.Marshal(session.PlayerEventPayload{Action: session.ActionSeek, Position: &pos})
	require.NoError(t, b.HandleSessionMessage(&session.Message{
		Type: session.TypePlayerEvent, Room: "other", Payload: payload,
	}))

	assert.Empty(t, player.calls)
}

func TestSendPing(t *testing.T) {
	b, _, channel, clock := newTestBridge(t, false)

	require.NoError(t, b.SendPing())

	require.Len(t, channel.sent, 1)
	assert.Equal(t, session.TypePing, channel.sent[0].Type)
	payload := decodePayload[session.PingPayload](t, channel.sent[0])
	assert.Equal(t, clock.UnixMilli(), payload.ClientTS)
}
