package session

import "sync"

// Registry is the process-wide room index plus the channel index used
// for disconnect cleanup. Lock order is registry before room, never the
// reverse, and the registry lock is never held across a send.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	channels map[Sender]*Participant
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		channels: make(map[Sender]*Participant),
	}
}

// CreateRoom adds a room. Returns false if the id is taken.
func (reg *Registry) CreateRoom(room *Room) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.rooms[room.ID()]; exists {
		return false
	}
	reg.rooms[room.ID()] = room
	return true
}

// Room looks up a room by id.
func (reg *Registry) Room(roomID string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[roomID]
	return room, ok
}

// DeleteRoom removes a room from the registry.
func (reg *Registry) DeleteRoom(roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, roomID)
}

// RoomCount returns the number of live rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Bind records which participant a channel belongs to.
func (reg *Registry) Bind(conn Sender, p *Participant) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.channels[conn] = p
}

// Unbind removes a channel's binding and returns the participant it
// carried, if any. Called exactly once per disconnect.
func (reg *Registry) Unbind(conn Sender) (*Participant, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	p, ok := reg.channels[conn]
	if ok {
		delete(reg.channels, conn)
	}
	return p, ok
}
