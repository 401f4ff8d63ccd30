// Package hub owns the realtime core: connection lifecycle, presence,
// room membership subscriptions, message routing, and room lifecycle.
package hub

import (
	"sync"

	"chat-hub/sink"

	"github.com/google/uuid"
)

type Set map[uuid.UUID]struct{}

// Presence is the authoritative in-memory map from user identity to live
// connection handle. Nothing here is persisted: after a restart everyone
// is offline until they reconnect.
type Presence struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]sink.EventSink
}

func NewPresence() *Presence {
	return &Presence{sessions: make(map[uuid.UUID]sink.EventSink)}
}

// Register installs the handle for a user, returning any prior handle so
// the caller can close it. At most one handle per user.
func (p *Presence) Register(userID uuid.UUID, s sink.EventSink) sink.EventSink {
	p.mu.Lock()
	defer p.mu.Unlock()
	prior := p.sessions[userID]
	p.sessions[userID] = s
	return prior
}

// Unregister removes the user's handle only if it is still the given one.
// A reconnect replaces the handle before the old connection finishes its
// teardown; the stale teardown must not knock the new session offline.
func (p *Presence) Unregister(userID uuid.UUID, s sink.EventSink) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	current, ok := p.sessions[userID]
	if !ok || current != s {
		return false
	}
	delete(p.sessions, userID)
	return true
}

func (p *Presence) HandleFor(userID uuid.UUID) (sink.EventSink, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sessions[userID]
	return s, ok
}

func (p *Presence) IsOnline(userID uuid.UUID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.sessions[userID]
	return ok
}

// Snapshot returns a copy of the session map for sweeps and shutdown.
func (p *Presence) Snapshot() map[uuid.UUID]sink.EventSink {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[uuid.UUID]sink.EventSink, len(p.sessions))
	for id, s := range p.sessions {
		out[id] = s
	}
	return out
}

// Membership is the room → members index and its inverse, kept in sync
// with the persisted room documents. It is a cache for fast fan-out and
// authorization; the persisted membership stays the source of truth for
// message routing.
type Membership struct {
	mu          sync.RWMutex
	roomMembers map[uuid.UUID]Set
	userRooms   map[uuid.UUID]Set
}

func NewMembership() *Membership {
	return &Membership{
		roomMembers: make(map[uuid.UUID]Set),
		userRooms:   make(map[uuid.UUID]Set),
	}
}

// Subscribe adds one user to one room's delivery set. Missing sets are
// initialized on the fly.
func (m *Membership) Subscribe(userID, roomID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeLocked(userID, roomID)
}

func (m *Membership) subscribeLocked(userID, roomID uuid.UUID) {
	if _, ok := m.roomMembers[roomID]; !ok {
		m.roomMembers[roomID] = make(Set)
	}
	m.roomMembers[roomID][userID] = struct{}{}
	if _, ok := m.userRooms[userID]; !ok {
		m.userRooms[userID] = make(Set)
	}
	m.userRooms[userID][roomID] = struct{}{}
}

// Unsubscribe removes one user from one room, cleaning up empty sets so
// the index does not leak over time.
func (m *Membership) Unsubscribe(userID, roomID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribeLocked(userID, roomID)
}

func (m *Membership) unsubscribeLocked(userID, roomID uuid.UUID) {
	if members, ok := m.roomMembers[roomID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(m.roomMembers, roomID)
		}
	}
	if rooms, ok := m.userRooms[userID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(m.userRooms, userID)
		}
	}
}

func (m *Membership) MembersOf(roomID uuid.UUID) []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members, ok := m.roomMembers[roomID]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

func (m *Membership) RoomsOf(userID uuid.UUID) []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms, ok := m.userRooms[userID]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(rooms))
	for id := range rooms {
		out = append(out, id)
	}
	return out
}

func (m *Membership) IsMember(userID, roomID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members, ok := m.roomMembers[roomID]
	if !ok {
		return false
	}
	_, ok = members[userID]
	return ok
}

// ReplaceRoom syncs the index with a room's new persisted membership,
// dropping subscriptions of removed members and adding the rest.
func (m *Membership) ReplaceRoom(roomID uuid.UUID, members []uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(Set, len(members))
	for _, id := range members {
		next[id] = struct{}{}
	}
	for id := range m.roomMembers[roomID] {
		if _, keep := next[id]; !keep {
			m.unsubscribeLocked(id, roomID)
		}
	}
	for _, id := range members {
		m.subscribeLocked(id, roomID)
	}
}

// DropRoom removes a deleted room from the index entirely.
func (m *Membership) DropRoom(roomID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.roomMembers[roomID] {
		if rooms, ok := m.userRooms[id]; ok {
			delete(rooms, roomID)
			if len(rooms) == 0 {
				delete(m.userRooms, id)
			}
		}
	}
	delete(m.roomMembers, roomID)
}
