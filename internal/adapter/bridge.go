// Package adapter bridges a local mpv instance to a playback session.
//
// The bridge watches mpv's pause and time-pos properties and translates
// them into player events on the session channel, and applies incoming
// session events back onto the player. A short suppression window after
// every remote command keeps the player's own feedback from echoing back
// into the room.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/observer/syncparty/internal/mpv"
	"github.com/observer/syncparty/internal/session"
)

const (
	// suppressWindow is how long locally observed player changes are
	// ignored after applying a remote command, so the player's reaction
	// to that command is not re-broadcast as a fresh event.
	suppressWindow = 400 * time.Millisecond

	// seekThreshold is the time-pos jump, in seconds, beyond which a
	// property change is treated as a seek rather than normal playback.
	seekThreshold = 1.0

	pingInterval = 3 * time.Second
)

// Player is the control surface the bridge needs from mpv.
type Player interface {
	SetProperty(name string, value interface{}) error
	ObserveProperty(id int, name string) error
	Events() <-chan mpv.Event
	Close() error
}

// channelWriter is the send half of the session connection.
type channelWriter interface {
	WriteJSON(v interface{}) error
}

// Config identifies the session and the local player.
type Config struct {
	ServerURL   string
	Room        string
	Name        string
	ClientID    string
	Host        bool // create the room and act as host
	MediaURL    string
	AuthToken   string
	InviteToken string
	SocketPath  string
}

// Bridge ties one mpv instance to one room. All state is owned by the
// Run loop; the exported methods are only safe before Run starts.
type Bridge struct {
	cfg    Config
	player Player
	conn   channelWriter
	logger *slog.Logger
	now    func() time.Time

	suppressUntil time.Time
	lastTimePos   float64
	hasTimePos    bool
}

// New builds a bridge over an already connected player and session channel.
func New(cfg Config, player Player, conn channelWriter, logger *slog.Logger) *Bridge {
	return &Bridge{
		cfg:    cfg,
		player: player,
		conn:   conn,
		logger: logger,
		now:    time.Now,
	}
}

// Run connects to mpv and the session server, announces the client, and
// pumps events in both directions until the context is cancelled or
// either side disconnects.
func Run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	player, err := mpv.Dial(cfg.SocketPath, logger)
	if err != nil {
		return err
	}
	defer player.Close()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.ServerURL, err)
	}
	defer conn.Close()

	b := New(cfg, player, conn, logger)
	if err := b.Start(); err != nil {
		return err
	}

	// Session frames arrive on a dedicated goroutine so the main loop
	// can select over both directions.
	incoming := make(chan *session.Message)
	readErr := make(chan error, 1)
	go func() {
		defer close(incoming)
		for {
			var msg session.Message
			if err := conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			select {
			case incoming <- &msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return fmt.Errorf("session channel closed: %w", err)
		case msg, ok := <-incoming:
			if !ok {
				return fmt.Errorf("session channel closed")
			}
			if err := b.HandleSessionMessage(msg); err != nil {
				b.logger.Warn("failed to apply session message", "type", msg.Type, "error", err)
			}
		case ev, ok := <-player.Events():
			if !ok {
				return fmt.Errorf("mpv connection closed")
			}
			if err := b.HandlePlayerEvent(ev); err != nil {
				b.logger.Warn("failed to relay player event", "event", ev.Event, "error", err)
			}
		case <-ticker.C:
			if err := b.SendPing(); err != nil {
				b.logger.Warn("failed to send ping", "error", err)
			}
		}
	}
}

// Start subscribes to player properties and announces this client to the
// room, creating it when running as host.
func (b *Bridge) Start() error {
	if err := b.player.ObserveProperty(1, "pause"); err != nil {
		return err
	}
	if err := b.player.ObserveProperty(2, "time-pos"); err != nil {
		return err
	}

	if b.cfg.Host {
		return b.send(session.TypeCreateRoom, session.CreateRoomPayload{
			MediaURL:  b.cfg.MediaURL,
			StartPos:  b.lastTimePos,
			Name:      b.cfg.Name,
			Options:   session.RoomOptions{"free_play": false},
			AuthToken: b.cfg.AuthToken,
		})
	}
	return b.send(session.TypeJoinRoom, session.JoinRoomPayload{
		Name:        b.cfg.Name,
		AuthToken:   b.cfg.AuthToken,
		InviteToken: b.cfg.InviteToken,
	})
}

// SendPing emits a ping carrying the local clock for RTT measurement.
func (b *Bridge) SendPing() error {
	return b.send(session.TypePing, session.PingPayload{ClientTS: b.now().UnixMilli()})
}

// HandleSessionMessage applies one inbound frame to the local player.
// Frames for other rooms are dropped.
func (b *Bridge) HandleSessionMessage(msg *session.Message) error {
	if msg.Room != b.cfg.Room {
		return nil
	}

	switch msg.Type {
	case session.TypePong:
		var payload session.PongPayload
		if err := json.Unmarshal(msg.Payload, &payload); err == nil && payload.ClientTS > 0 {
			b.logger.Info("session RTT", "rtt_ms", b.now().UnixMilli()-payload.ClientTS)
		}
		return nil

	case session.TypeError:
		var payload session.ErrorPayload
		_ = json.Unmarshal(msg.Payload, &payload)
		b.logger.Warn("session error", "code", payload.Code, "message", payload.Message)
		return nil

	case session.TypeRoomState:
		var payload session.RoomStatePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return err
		}
		b.suppress()
		if err := b.player.SetProperty("time-pos", payload.State.Position); err != nil {
			return err
		}
		switch payload.State.PlayState {
		case session.PlayStatePlaying:
			b.suppress()
			return b.player.SetProperty("pause", false)
		case session.PlayStatePaused:
			b.suppress()
			return b.player.SetProperty("pause", true)
		}
		return nil

	case session.TypePlayerEvent:
		var payload session.PlayerEventPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return err
		}
		return b.applyPlayerEvent(payload)

	case session.TypeStateUpdate:
		var payload session.StateUpdatePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return err
		}
		if payload.Position != nil {
			b.suppress()
			return b.player.SetProperty("time-pos", *payload.Position)
		}
		return nil
	}

	// Membership and chat frames have no player effect.
	return nil
}

func (b *Bridge) applyPlayerEvent(payload session.PlayerEventPayload) error {
	b.suppress()
	switch payload.Action {
	case session.ActionPlay:
		return b.player.SetProperty("pause", false)
	case session.ActionPause:
		return b.player.SetProperty("pause", true)
	case session.ActionSeek:
		if payload.Position != nil {
			return b.player.SetProperty("time-pos", *payload.Position)
		}
	}
	return nil
}

// HandlePlayerEvent translates a local mpv event into session traffic.
// Only hosts emit; observers track time-pos silently so a later failover
// starts from the right position.
func (b *Bridge) HandlePlayerEvent(ev mpv.Event) error {
	switch {
	case ev.Event == "property-change" && ev.Name == "pause":
		if !b.cfg.Host || b.suppressed() {
			return nil
		}
		action := session.ActionPlay
		if ev.Bool() {
			action = session.ActionPause
		}
		pos := b.lastTimePos
		return b.send(session.TypePlayerEvent, session.PlayerEventPayload{
			Action:   action,
			Position: &pos,
		})

	case ev.Event == "property-change" && ev.Name == "time-pos":
		pos, ok := ev.Float()
		if !ok {
			// mpv reports null while no file is loaded.
			return nil
		}
		var err error
		if b.hasTimePos && b.cfg.Host && !b.suppressed() {
			if delta := pos - b.lastTimePos; delta > seekThreshold || delta < -seekThreshold {
				p := pos
				err = b.send(session.TypePlayerEvent, session.PlayerEventPayload{
					Action:   session.ActionSeek,
					Position: &p,
				})
			}
		}
		b.lastTimePos = pos
		b.hasTimePos = true
		return err

	case ev.Event == "seek":
		if !b.cfg.Host || b.suppressed() || !b.hasTimePos {
			return nil
		}
		pos := b.lastTimePos
		return b.send(session.TypePlayerEvent, session.PlayerEventPayload{
			Action:   session.ActionSeek,
			Position: &pos,
		})
	}
	return nil
}

func (b *Bridge) send(msgType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.conn.WriteJSON(&session.Message{
		Type:    msgType,
		Room:    b.cfg.Room,
		Client:  b.cfg.ClientID,
		Payload: data,
		TS:      b.now().UnixMilli(),
	})
}

func (b *Bridge) suppress() {
	b.suppressUntil = b.now().Add(suppressWindow)
}

func (b *Bridge) suppressed() bool {
	return b.now().Before(b.suppressUntil)
}
