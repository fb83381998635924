package session

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/observer/syncparty/internal/auth"
	"github.com/observer/syncparty/internal/metrics"
)

// Chat lines longer than this are rejected.
const maxChatLength = 1000

// Hub dispatches inbound frames to handlers and owns the fan-out path.
// Handlers run on the sender's read goroutine; all registry and room
// mutation happens there, serialized by the registry and room locks.
type Hub struct {
	registry    *Registry
	verifier    *auth.Verifier
	hostRoles   []string
	inviteRoles []string
	logger      *slog.Logger
}

// NewHub creates a hub around a registry and token verifier. hostRoles
// gates room creation, inviteRoles gates invite minting (falling back
// to hostRoles when empty).
func NewHub(registry *Registry, verifier *auth.Verifier, hostRoles, inviteRoles []string, logger *slog.Logger) *Hub {
	return &Hub{
		registry:    registry,
		verifier:    verifier,
		hostRoles:   hostRoles,
		inviteRoles: inviteRoles,
		logger:      logger,
	}
}

// Registry exposes the room index for the health endpoint.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// HandleMessage routes one parsed frame from a connected channel.
func (h *Hub) HandleMessage(sender Sender, msg *Message) {
	switch msg.Type {
	case TypeCreateRoom:
		h.handleCreateRoom(sender, msg)
	case TypeJoinRoom:
		h.handleJoinRoom(sender, msg)
	case TypePlayerEvent:
		h.handlePlayerEvent(sender, msg)
	case TypeStateUpdate:
		h.handleStateUpdate(sender, msg)
	case TypeForceResync:
		h.handleForceResync(sender, msg)
	case TypeCreateInvite:
		h.handleCreateInvite(sender, msg)
	case TypeChatMessage:
		h.handleChatMessage(sender, msg)
	case TypeQualityUpdate:
		h.handleQualityUpdate(sender, msg)
	case TypePing:
		h.handlePing(sender, msg)
	default:
		h.sendError(sender, msg, CodeUnknownType, "unknown message type: "+msg.Type)
	}
}

func (h *Hub) handleCreateRoom(sender Sender, msg *Message) {
	if msg.Room == "" || msg.Client == "" {
		h.sendError(sender, msg, CodeBadRequest, "room and client are required")
		return
	}
	var p CreateRoomPayload
	if !h.decodePayload(sender, msg, &p) {
		return
	}

	claims, err := h.requireAuth(p.AuthToken)
	if err != nil {
		h.sendError(sender, msg, err.Error(), "auth required")
		return
	}
	if claims != nil && !auth.RequireRoles(claims, h.hostRoles) {
		h.sendError(sender, msg, CodeForbidden, "insufficient role")
		return
	}

	room := NewRoom(msg.Room, msg.Client, p.MediaURL, p.Options, p.StartPos)
	name := p.Name
	if name == "" {
		name = auth.Username(claims)
	}
	participant := NewParticipant(msg.Client, name, msg.Room, sender)
	room.AddParticipant(participant)

	if !h.registry.CreateRoom(room) {
		h.sendError(sender, msg, CodeRoomExists, "room already exists")
		return
	}
	h.registry.Bind(sender, participant)
	metrics.ActiveRooms.Inc()
	h.logger.Info("room created", "room", msg.Room, "host", msg.Client)

	h.reply(sender, TypeRoomState, msg.Room, msg.Client, room.StatePayload())
	h.broadcast(room, h.makeMessage(TypeParticipantsUpdate, msg.Room, msg.Client, room.ParticipantsPayload()), "")
}

func (h *Hub) handleJoinRoom(sender Sender, msg *Message) {
	if msg.Room == "" || msg.Client == "" {
		h.sendError(sender, msg, CodeBadRequest, "room and client are required")
		return
	}
	var p JoinRoomPayload
	if !h.decodePayload(sender, msg, &p) {
		return
	}
	room, ok := h.registry.Room(msg.Room)
	if !ok {
		h.sendError(sender, msg, CodeRoomMissing, "room not found")
		return
	}

	claims, err := h.requireAuth(p.AuthToken)
	if err != nil {
		// Fall back to the invite path; its error wins when both fail.
		inviteClaims, inviteErr := h.requireInvite(p.InviteToken, msg.Room)
		if inviteErr != nil {
			h.sendError(sender, msg, inviteErr.Error(), "auth or invite required")
			return
		}
		claims = inviteClaims
	}

	name := p.Name
	if name == "" {
		name = auth.Username(claims)
	}
	participant := NewParticipant(msg.Client, name, msg.Room, sender)
	room.AddParticipant(participant)
	h.registry.Bind(sender, participant)
	h.logger.Info("client joined", "room", msg.Room, "client", msg.Client)

	h.reply(sender, TypeRoomState, msg.Room, msg.Client, room.StatePayload())
	h.broadcast(room, h.makeMessage(TypeClientJoined, msg.Room, msg.Client, ClientJoinedPayload{Name: p.Name}), msg.Client)
	h.broadcast(room, h.makeMessage(TypeParticipantsUpdate, msg.Room, msg.Client, room.ParticipantsPayload()), "")
}

func (h *Hub) handlePlayerEvent(sender Sender, msg *Message) {
	room, ok := h.requireRoom(sender, msg)
	if !ok {
		return
	}
	if !room.IsHost(msg.Client) && !room.FreePlay() {
		h.sendError(sender, msg, CodeNotHost, "only host can send player events")
		return
	}
	var p PlayerEventPayload
	if !h.decodePayload(sender, msg, &p) {
		return
	}

	room.ApplyPlayerEvent(p.Action, p.Position)
	h.broadcast(room, Stamp(msg), "")
}

func (h *Hub) handleStateUpdate(sender Sender, msg *Message) {
	room, ok := h.requireRoom(sender, msg)
	if !ok {
		return
	}
	var p StateUpdatePayload
	if !h.decodePayload(sender, msg, &p) {
		return
	}

	// Only the host moves room state; everyone's updates are relayed.
	if room.IsHost(msg.Client) {
		room.ApplyStateUpdate(p.Position, p.PlayState)
	}
	h.broadcast(room, Stamp(msg), "")
}

func (h *Hub) handleForceResync(sender Sender, msg *Message) {
	room, ok := h.requireRoom(sender, msg)
	if !ok {
		return
	}
	if !room.IsHost(msg.Client) {
		h.sendError(sender, msg, CodeNotHost, "only host can resync")
		return
	}
	h.broadcast(room, Stamp(msg), "")
}

func (h *Hub) handleCreateInvite(sender Sender, msg *Message) {
	room, ok := h.requireRoom(sender, msg)
	if !ok {
		return
	}
	if !room.IsHost(msg.Client) {
		h.sendError(sender, msg, CodeNotHost, "only host can create invite")
		return
	}
	if !h.verifier.Enabled() {
		h.sendError(sender, msg, auth.ErrInviteDisabled.Error(), "JWT_SECRET required")
		return
	}
	var p CreateInvitePayload
	if !h.decodePayload(sender, msg, &p) {
		return
	}
	claims, err := h.requireAuth(p.AuthToken)
	if err != nil {
		h.sendError(sender, msg, err.Error(), "auth required")
		return
	}
	required := h.inviteRoles
	if len(required) == 0 {
		required = h.hostRoles
	}
	if claims != nil && !auth.RequireRoles(claims, required) {
		h.sendError(sender, msg, CodeForbidden, "insufficient role")
		return
	}

	invite, err := h.verifier.IssueInvite(msg.Room, time.Duration(p.ExpiresIn)*time.Second)
	if err != nil {
		h.sendError(sender, msg, auth.ErrInviteDisabled.Error(), err.Error())
		return
	}
	metrics.InvitesIssued.Inc()
	h.reply(sender, TypeInviteCreated, msg.Room, msg.Client, invite)
}

func (h *Hub) handleChatMessage(sender Sender, msg *Message) {
	room, ok := h.requireRoom(sender, msg)
	if !ok {
		return
	}
	if !room.HasParticipant(msg.Client) {
		h.sendError(sender, msg, CodeForbidden, "not a participant of this room")
		return
	}
	var p ChatMessagePayload
	if !h.decodePayload(sender, msg, &p) {
		return
	}
	if p.Text == "" {
		h.sendError(sender, msg, CodeBadRequest, "chat message cannot be empty")
		return
	}
	if len(p.Text) > maxChatLength {
		h.sendError(sender, msg, CodeBadRequest, "chat message too long")
		return
	}

	username := room.ParticipantName(msg.Client)
	if username == "" {
		username = "Anonymous"
	}
	h.broadcast(room, h.makeMessage(TypeChatMessage, msg.Room, msg.Client, ChatBroadcastPayload{
		Username: username,
		Text:     p.Text,
	}), "")
}

func (h *Hub) handleQualityUpdate(sender Sender, msg *Message) {
	room, ok := h.requireRoom(sender, msg)
	if !ok {
		return
	}
	if !room.IsHost(msg.Client) {
		h.sendError(sender, msg, CodeNotHost, "only host can change quality settings")
		return
	}
	h.broadcast(room, Stamp(msg), msg.Client)
}

func (h *Hub) handlePing(sender Sender, msg *Message) {
	var p PingPayload
	if msg.Payload != nil {
		_ = json.Unmarshal(msg.Payload, &p)
	}
	h.reply(sender, TypePong, msg.Room, msg.Client, PongPayload{ClientTS: p.ClientTS})
}

// HandleDisconnect runs the cleanup path for a closed channel: drop the
// participant, fail the host over in join order, and delete the room
// when nobody remains.
func (h *Hub) HandleDisconnect(conn Sender) {
	participant, ok := h.registry.Unbind(conn)
	if !ok {
		return
	}
	room, ok := h.registry.Room(participant.RoomID)
	if !ok {
		return
	}

	room.RemoveParticipant(participant.ClientID)

	if room.HostID() == participant.ClientID {
		newHost, ok := room.PromoteNextHost()
		if !ok {
			h.registry.DeleteRoom(room.ID())
			metrics.ActiveRooms.Dec()
			h.logger.Info("room closed", "room", room.ID())
			return
		}
		h.logger.Info("host changed", "room", room.ID(), "host", newHost)
		h.broadcast(room, h.makeMessage(TypeHostChange, room.ID(), newHost, HostChangePayload{HostID: newHost}), "")
		h.broadcast(room, h.makeMessage(TypeParticipantsUpdate, room.ID(), newHost, room.ParticipantsPayload()), "")
		return
	}

	h.broadcast(room, h.makeMessage(TypeClientLeft, room.ID(), participant.ClientID, struct{}{}), "")
	h.broadcast(room, h.makeMessage(TypeParticipantsUpdate, room.ID(), participant.ClientID, room.ParticipantsPayload()), "")

	if room.Empty() {
		h.registry.DeleteRoom(room.ID())
		metrics.ActiveRooms.Dec()
		h.logger.Info("room closed", "room", room.ID())
	}
}

// broadcast fans a frame out to the room's participants, optionally
// excluding one client id. The recipient list is copied under the room
// lock and sends happen outside it; failed channels are evicted without
// host-failover logic.
func (h *Hub) broadcast(room *Room, msg *Message, exclude string) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast frame", "error", err, "type", msg.Type)
		return
	}

	var failed []string
	for _, p := range room.Recipients(exclude) {
		if err := p.conn.SendRaw(data); err != nil {
			failed = append(failed, p.ClientID)
		}
	}
	if len(failed) > 0 {
		room.Evict(failed)
		metrics.BroadcastEvictions.Add(float64(len(failed)))
		h.logger.Warn("evicted unreachable participants", "room", room.ID(), "clients", failed)
	}
	metrics.MessagesRelayed.WithLabelValues(msg.Type).Inc()
}

// requireRoom validates the envelope and resolves its room.
func (h *Hub) requireRoom(sender Sender, msg *Message) (*Room, bool) {
	if msg.Room == "" || msg.Client == "" {
		h.sendError(sender, msg, CodeBadRequest, "room and client are required")
		return nil, false
	}
	room, ok := h.registry.Room(msg.Room)
	if !ok {
		h.sendError(sender, msg, CodeRoomMissing, "room not found")
		return nil, false
	}
	return room, true
}

// requireAuth verifies an auth token from a payload. With verification
// disabled it authorizes everyone with nil claims.
func (h *Hub) requireAuth(token string) (jwt.MapClaims, error) {
	if !h.verifier.Enabled() {
		return nil, nil
	}
	if token == "" {
		return nil, auth.ErrAuthRequired
	}
	return h.verifier.Verify(token)
}

// requireInvite verifies a room-scoped invite token from a payload.
func (h *Hub) requireInvite(token, roomID string) (jwt.MapClaims, error) {
	if !h.verifier.Enabled() {
		return nil, nil
	}
	if token == "" {
		return nil, auth.ErrInviteRequired
	}
	return h.verifier.VerifyInvite(token, roomID)
}

func (h *Hub) decodePayload(sender Sender, msg *Message, out interface{}) bool {
	if msg.Payload == nil {
		return true
	}
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		h.sendError(sender, msg, CodeBadRequest, "malformed payload")
		return false
	}
	return true
}

func (h *Hub) makeMessage(msgType, room, client string, payload interface{}) *Message {
	msg, err := NewMessage(msgType, room, client, payload)
	if err != nil {
		// Payloads are our own structs; this cannot fail at runtime.
		h.logger.Error("failed to build message", "error", err, "type", msgType)
		return &Message{Type: msgType, Room: room, Client: client, TS: NowMS(), ServerTS: NowMS()}
	}
	return msg
}

func (h *Hub) reply(sender Sender, msgType, room, client string, payload interface{}) {
	data, err := json.Marshal(h.makeMessage(msgType, room, client, payload))
	if err != nil {
		h.logger.Error("failed to marshal reply", "error", err, "type", msgType)
		return
	}
	if err := sender.SendRaw(data); err != nil {
		h.logger.Warn("failed to send reply", "error", err, "type", msgType)
	}
}

func (h *Hub) sendError(sender Sender, msg *Message, code, text string) {
	h.reply(sender, TypeError, msg.Room, msg.Client, ErrorPayload{Code: code, Message: text})
}
