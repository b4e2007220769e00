package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/seeitsmanish/SongCircle/internal/domain"
)

// ConnEntry binds a live transport connection to its participant identity.
// IsAdmin is cached at join time so broadcasts don't need a lookup per tick.
type ConnEntry struct {
	Conn          SignalConnection
	ParticipantID domain.ParticipantID
	IsAdmin       bool
}

type roomConns struct {
	mu      sync.RWMutex
	entries map[SignalConnection]*ConnEntry
}

// ConnectionRegistry maps room names to their live connections. Purely
// process-local: it is rebuilt empty on restart. Each room carries its own
// lock so unrelated rooms never serialize on each other; the outer lock
// only guards the room map itself.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]*roomConns
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{rooms: make(map[domain.RoomName]*roomConns)}
}

func (r *ConnectionRegistry) room(name domain.RoomName) *roomConns {
	r.mu.RLock()
	rc, ok := r.rooms[name]
	r.mu.RUnlock()
	if ok {
		return rc
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rc, ok = r.rooms[name]; ok {
		return rc
	}
	rc = &roomConns{entries: make(map[SignalConnection]*ConnEntry)}
	r.rooms[name] = rc
	return rc
}

// Register attaches a connection to a room. Re-registering the same
// connection just refreshes its entry.
func (r *ConnectionRegistry) Register(name domain.RoomName, pid domain.ParticipantID, conn SignalConnection, isAdmin bool) {
	rc := r.room(name)
	rc.mu.Lock()
	rc.entries[conn] = &ConnEntry{Conn: conn, ParticipantID: pid, IsAdmin: isAdmin}
	rc.mu.Unlock()
	log.Info().Str("module", "core.registry").Str("room", string(name)).Str("participant", string(pid)).Bool("is_admin", isAdmin).Msg("connection registered")
}

// Unregister removes a connection and reports how many remain. Removing a
// connection that was never registered is a no-op.
func (r *ConnectionRegistry) Unregister(name domain.RoomName, conn SignalConnection) int {
	r.mu.RLock()
	rc, ok := r.rooms[name]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	rc.mu.Lock()
	delete(rc.entries, conn)
	remaining := len(rc.entries)
	rc.mu.Unlock()
	log.Info().Str("module", "core.registry").Str("room", string(name)).Int("remaining", remaining).Msg("connection unregistered")
	return remaining
}

// Snapshot returns the room's current entries for fan-out.
func (r *ConnectionRegistry) Snapshot(name domain.RoomName) []ConnEntry {
	r.mu.RLock()
	rc, ok := r.rooms[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	out := make([]ConnEntry, 0, len(rc.entries))
	for _, e := range rc.entries {
		out = append(out, *e)
	}
	return out
}

// ConnCount reports live connections for a room.
func (r *ConnectionRegistry) ConnCount(name domain.RoomName) int {
	r.mu.RLock()
	rc, ok := r.rooms[name]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return len(rc.entries)
}

// HasParticipant reports whether any room still holds a connection for
// the participant.
func (r *ConnectionRegistry) HasParticipant(pid domain.ParticipantID) bool {
	r.mu.RLock()
	rooms := make([]*roomConns, 0, len(r.rooms))
	for _, rc := range r.rooms {
		rooms = append(rooms, rc)
	}
	r.mu.RUnlock()

	for _, rc := range rooms {
		rc.mu.RLock()
		for _, e := range rc.entries {
			if e.ParticipantID == pid {
				rc.mu.RUnlock()
				return true
			}
		}
		rc.mu.RUnlock()
	}
	return false
}

// DropRoom removes a room's whole entry once its session is torn down.
func (r *ConnectionRegistry) DropRoom(name domain.RoomName) {
	r.mu.Lock()
	delete(r.rooms, name)
	r.mu.Unlock()
	log.Info().Str("module", "core.registry").Str("room", string(name)).Msg("room dropped")
}
