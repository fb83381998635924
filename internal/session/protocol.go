package session

import (
	"encoding/json"
	"time"
)

// Inbound message types (client -> server)
const (
	TypeCreateRoom    = "create_room"
	TypeJoinRoom      = "join_room"
	TypePlayerEvent   = "player_event"
	TypeStateUpdate   = "state_update"
	TypeForceResync   = "force_resync"
	TypeCreateInvite  = "create_invite"
	TypeChatMessage   = "chat_message"
	TypeQualityUpdate = "quality_update"
	TypePing          = "ping"
)

// Outbound message types (server -> client)
const (
	TypeError              = "error"
	TypeRoomState          = "room_state"
	TypeParticipantsUpdate = "participants_update"
	TypeClientJoined       = "client_joined"
	TypeClientLeft         = "client_left"
	TypeHostChange         = "host_change"
	TypeInviteCreated      = "invite_created"
	TypePong               = "pong"
)

// Error codes carried in error frames
const (
	CodeBadRequest  = "bad_request"
	CodeBadJSON     = "bad_json"
	CodeUnknownType = "unknown_type"
	CodeRoomExists  = "room_exists"
	CodeRoomMissing = "room_missing"
	CodeNotHost     = "not_host"
	CodeForbidden   = "forbidden"
	CodeAuthFailed  = "auth_failed"
)

// Player event actions
const (
	ActionPlay  = "play"
	ActionPause = "pause"
	ActionSeek  = "seek"
)

// Play states
const (
	PlayStatePlaying = "playing"
	PlayStatePaused  = "paused"
)

// Message is the envelope every frame on the session channel carries.
// Payloads are heterogeneous per type, so they stay raw until the
// dispatcher picks a variant.
type Message struct {
	Type     string          `json:"type"`
	Room     string          `json:"room,omitempty"`
	Client   string          `json:"client,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	TS       int64           `json:"ts"`
	ServerTS int64           `json:"server_ts,omitempty"`
}

// NowMS returns the current wall clock in milliseconds.
func NowMS() int64 {
	return time.Now().UnixMilli()
}

// NewMessage builds a server-originated message, stamping both ts and
// server_ts with the current wall clock.
func NewMessage(msgType, room, client string, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	now := NowMS()
	return &Message{
		Type:     msgType,
		Room:     room,
		Client:   client,
		Payload:  payloadBytes,
		TS:       now,
		ServerTS: now,
	}, nil
}

// Stamp returns a relay copy of the message with a fresh server_ts.
// The sender's ts and payload pass through untouched.
func Stamp(msg *Message) *Message {
	stamped := *msg
	stamped.ServerTS = NowMS()
	return &stamped
}

// ============================================================================
// Client -> Server payloads
// ============================================================================

// RoomOptions is the creator-supplied configuration mapping. Unknown
// keys are carried through to room_state untouched.
type RoomOptions map[string]interface{}

// FreePlay reports whether non-hosts may emit player events.
func (o RoomOptions) FreePlay() bool {
	v, _ := o["free_play"].(bool)
	return v
}

// CreateRoomPayload creates a room with the sender as host
type CreateRoomPayload struct {
	MediaURL  string      `json:"media_url"`
	StartPos  float64     `json:"start_pos"`
	Name      string      `json:"name"`
	Options   RoomOptions `json:"options"`
	AuthToken string      `json:"auth_token"`
}

// JoinRoomPayload adds the sender to an existing room
type JoinRoomPayload struct {
	Name        string `json:"name"`
	AuthToken   string `json:"auth_token"`
	InviteToken string `json:"invite_token"`
}

// PlayerEventPayload carries a play/pause/seek from a player
type PlayerEventPayload struct {
	Action   string   `json:"action"`
	Position *float64 `json:"position,omitempty"`
}

// StateUpdatePayload carries an authoritative state correction
type StateUpdatePayload struct {
	Position  *float64 `json:"position,omitempty"`
	PlayState *string  `json:"play_state,omitempty"`
}

// CreateInvitePayload requests an invite token over the channel
type CreateInvitePayload struct {
	AuthToken string `json:"auth_token"`
	ExpiresIn int64  `json:"expires_in,omitempty"` // seconds
}

// ChatMessagePayload carries a chat line from a participant
type ChatMessagePayload struct {
	Text string `json:"text"`
}

// PingPayload carries the sender's wall clock for RTT measurement
type PingPayload struct {
	ClientTS int64 `json:"client_ts"`
}

// ============================================================================
// Server -> Client payloads
// ============================================================================

// ErrorPayload for error frames
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// State is the authoritative playback state of a room
type State struct {
	Position  float64 `json:"position"`
	PlayState string  `json:"play_state"`
}

// ParticipantInfo describes one room member
type ParticipantInfo struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name,omitempty"`
	IsHost   bool   `json:"is_host"`
}

// RoomStatePayload is the full room snapshot sent to a creator or joiner
type RoomStatePayload struct {
	Room             string            `json:"room"`
	HostID           string            `json:"host_id"`
	MediaURL         string            `json:"media_url,omitempty"`
	Options          RoomOptions       `json:"options"`
	State            State             `json:"state"`
	Participants     []ParticipantInfo `json:"participants"`
	ParticipantCount int               `json:"participant_count"`
}

// ParticipantsPayload is broadcast whenever membership changes
type ParticipantsPayload struct {
	Participants     []ParticipantInfo `json:"participants"`
	ParticipantCount int               `json:"participant_count"`
}

// ClientJoinedPayload announces a new participant to the rest of the room
type ClientJoinedPayload struct {
	Name string `json:"name,omitempty"`
}

// HostChangePayload announces host failover
type HostChangePayload struct {
	HostID string `json:"host_id"`
}

// ChatBroadcastPayload is the relayed form of a chat line
type ChatBroadcastPayload struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

// PongPayload echoes the client's clock back
type PongPayload struct {
	ClientTS int64 `json:"client_ts"`
}
