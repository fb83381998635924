package session

import "sync"

// Sender is the outbound half of a participant's channel. Send failures
// are the broadcaster's eviction signal.
type Sender interface {
	SendRaw(data []byte) error
}

// Participant is one member of a room, bound to a single connection for
// its lifetime.
type Participant struct {
	ClientID string
	Name     string
	RoomID   string
	conn     Sender
}

// NewParticipant binds a connection to a room membership.
func NewParticipant(clientID, name, roomID string, conn Sender) *Participant {
	return &Participant{ClientID: clientID, Name: name, RoomID: roomID, conn: conn}
}

// Room holds the authoritative playback state for one session and its
// participants in join order. All fields are guarded by mu; methods
// never hold the lock across a send.
type Room struct {
	mu           sync.Mutex
	id           string
	hostID       string
	mediaURL     string
	options      RoomOptions
	state        State
	participants map[string]*Participant
	order        []string // join order, drives host failover
}

// NewRoom creates a room with the creator as host. Playback always
// starts paused at the creator-supplied position.
func NewRoom(id, hostID, mediaURL string, options RoomOptions, startPos float64) *Room {
	if options == nil {
		options = RoomOptions{}
	}
	return &Room{
		id:           id,
		hostID:       hostID,
		mediaURL:     mediaURL,
		options:      options,
		state:        State{Position: startPos, PlayState: PlayStatePaused},
		participants: make(map[string]*Participant),
	}
}

func (r *Room) ID() string {
	return r.id
}

func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

func (r *Room) IsHost(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID == clientID
}

func (r *Room) FreePlay() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.options.FreePlay()
}

// AddParticipant registers a member. Re-adding an existing client id
// replaces the participant but keeps its original join position.
func (r *Room) AddParticipant(p *Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.participants[p.ClientID]; !exists {
		r.order = append(r.order, p.ClientID)
	}
	r.participants[p.ClientID] = p
}

// RemoveParticipant drops a member. Returns false if it was not present.
func (r *Room) RemoveParticipant(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(clientID)
}

func (r *Room) removeLocked(clientID string) bool {
	if _, ok := r.participants[clientID]; !ok {
		return false
	}
	delete(r.participants, clientID)
	for i, id := range r.order {
		if id == clientID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Evict drops the given members without any host-failover logic. Used
// by the broadcaster when sends fail; an evicted host keeps host_id
// until its connection formally disconnects.
func (r *Room) Evict(clientIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range clientIDs {
		r.removeLocked(id)
	}
}

// PromoteNextHost makes the earliest-joined remaining participant the
// host. Returns false when the room is empty.
func (r *Room) PromoteNextHost() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return "", false
	}
	r.hostID = r.order[0]
	return r.hostID, true
}

func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants) == 0
}

func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// HasParticipant reports membership of a client id.
func (r *Room) HasParticipant(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.participants[clientID]
	return ok
}

// ParticipantName returns the display name of a member, if any.
func (r *Room) ParticipantName(clientID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.participants[clientID]; ok {
		return p.Name
	}
	return ""
}

// ApplyPlayerEvent folds a player event into room state. Only explicit
// play/pause actions touch play_state; any event carrying a position
// moves position, including seeks while paused.
func (r *Room) ApplyPlayerEvent(action string, position *float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch action {
	case ActionPlay:
		r.state.PlayState = PlayStatePlaying
	case ActionPause:
		r.state.PlayState = PlayStatePaused
	}
	if position != nil {
		r.state.Position = *position
	}
}

// ApplyStateUpdate folds a host state correction into room state.
func (r *Room) ApplyStateUpdate(position *float64, playState *string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if position != nil {
		r.state.Position = *position
	}
	if playState != nil {
		r.state.PlayState = *playState
	}
}

// State returns a copy of the current playback state.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// StatePayload snapshots the room for a room_state frame.
func (r *Room) StatePayload() RoomStatePayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomStatePayload{
		Room:             r.id,
		HostID:           r.hostID,
		MediaURL:         r.mediaURL,
		Options:          r.options,
		State:            r.state,
		Participants:     r.participantsLocked(),
		ParticipantCount: len(r.participants),
	}
}

// ParticipantsPayload snapshots membership for a participants_update frame.
func (r *Room) ParticipantsPayload() ParticipantsPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ParticipantsPayload{
		Participants:     r.participantsLocked(),
		ParticipantCount: len(r.participants),
	}
}

func (r *Room) participantsLocked() []ParticipantInfo {
	infos := make([]ParticipantInfo, 0, len(r.participants))
	for _, id := range r.order {
		p := r.participants[id]
		infos = append(infos, ParticipantInfo{
			ClientID: p.ClientID,
			Name:     p.Name,
			IsHost:   p.ClientID == r.hostID,
		})
	}
	return infos
}

// Recipients copies the member list for a broadcast so no lock is held
// while sending. An empty exclude matches nobody.
func (r *Room) Recipients(exclude string) []*Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	recipients := make([]*Participant, 0, len(r.participants))
	for _, id := range r.order {
		if exclude != "" && id == exclude {
			continue
		}
		recipients = append(recipients, r.participants[id])
	}
	return recipients
}
