package chat

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/akarpov/roomcast/internal/protocol"
)

// Stats is a point-in-time gauge snapshot for health reporting.
type Stats struct {
	Sessions int `json:"sessions"`
	Rooms    int `json:"rooms"`
}

// Registry holds every live session, claimed name, and room. A single
// lock guards all three maps so name uniqueness and room membership
// mutate atomically: claiming a name, get-or-create of a room, and
// remove-room-if-empty each happen in one exclusive step. The lock is
// never held across a queue operation.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	names    map[string]*Session
	rooms    map[string]*Room

	roomQueueSize int
	log           *slog.Logger
}

// NewRegistry builds an empty registry. A nil logger falls back to
// slog.Default.
func NewRegistry(roomQueueSize int, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		sessions:      make(map[string]*Session),
		names:         make(map[string]*Session),
		rooms:         make(map[string]*Room),
		roomQueueSize: roomQueueSize,
		log:           log,
	}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

// claimName binds name to s, failing when another live session already
// holds it. Claim and session update happen under one lock so no two
// sessions ever hold the same name.
func (r *Registry) claimName(s *Session, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.names[name]; taken {
		return ErrNameTaken
	}
	r.names[name] = s
	s.setName(name)
	return nil
}

// sessionByName resolves a claimed display name to its session.
func (r *Registry) sessionByName(name string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.names[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecipientNotFound, name)
	}
	return s, nil
}

// joinRoom moves s into the named room, creating the room and its
// dispatcher on demand. Any previous room is left first; the previous
// room is returned when it survives the departure so the caller can
// announce it outside the lock.
func (r *Registry) joinRoom(s *Session, name string) (joined, left *Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	left = r.leaveLocked(s)

	rm, ok := r.rooms[name]
	if !ok {
		rm = newRoom(name, r, r.roomQueueSize)
		r.rooms[name] = rm
		r.log.Info("room created", "room", name)
	}
	rm.members[s.id] = s
	s.setRoom(rm)
	return rm, left
}

// leaveRoom removes s from its current room. It returns the room's name
// and, when the room survives the departure, the room itself.
func (r *Registry) leaveRoom(s *Session) (string, *Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm := s.currentRoom()
	if rm == nil {
		return "", nil, ErrNotInRoom
	}
	return rm.Name, r.leaveLocked(s), nil
}

// leaveLocked detaches s from its room, deleting the room when it
// empties. Callers hold r.mu. Returns the room when it survives, nil
// when there was none or it was deleted.
func (r *Registry) leaveLocked(s *Session) *Room {
	rm := s.currentRoom()
	if rm == nil {
		return nil
	}
	delete(rm.members, s.id)
	s.setRoom(nil)
	if len(rm.members) == 0 {
		r.removeRoomLocked(rm)
		return nil
	}
	return rm
}

// removeRoomLocked deletes an empty room and stops its dispatcher in
// the same exclusive step, so a join running after this point creates a
// fresh room instead of racing a half-dead one.
func (r *Registry) removeRoomLocked(rm *Room) {
	delete(r.rooms, rm.Name)
	close(rm.stop)
	r.log.Info("room removed", "room", rm.Name)
}

// evictSlow force-removes a member whose outbound queue rejected a
// room delivery, exactly as if it had left. The victim gets one
// best-effort notice, which usually fails against the same full queue.
func (r *Registry) evictSlow(rm *Room, s *Session) {
	r.mu.Lock()
	if _, member := rm.members[s.id]; !member {
		r.mu.Unlock()
		return
	}
	survivor := r.leaveLocked(s)
	r.mu.Unlock()

	r.log.Warn("evicting slow consumer", "room", rm.Name, "session", s.id, "user", s.Name())
	_ = s.Enqueue(protocol.NewError(CodeQueueFull, "too slow, removed from room "+rm.Name))

	if survivor != nil {
		_ = survivor.dispatch(dispatchItem{
			origin:     s.id,
			env:        protocol.NewSystem(protocol.SystemUserLeft, rm.Name, s.Name(), time.Now().Unix()),
			enqueuedAt: time.Now(),
		})
	}
}

// membersSnapshot copies a room's membership for lock-free fan-out.
func (r *Registry) membersSnapshot(rm *Room) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(rm.members)
}

// roomList snapshots room names and member counts, sorted by name.
func (r *Registry) roomList() []protocol.RoomInfo {
	r.mu.RLock()
	rooms := lo.MapToSlice(r.rooms, func(name string, rm *Room) protocol.RoomInfo {
		return protocol.RoomInfo{Name: name, Members: len(rm.members)}
	})
	r.mu.RUnlock()

	slices.SortFunc(rooms, func(a, b protocol.RoomInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return rooms
}

// remove tears down a disconnected session: room departure, name
// release, session map cleanup, writer shutdown. The released name is
// claimable again as soon as the lock drops. Returns the surviving room
// so the caller can announce the departure.
func (r *Registry) remove(s *Session) *Room {
	r.mu.Lock()
	delete(r.sessions, s.id)
	if name := s.Name(); name != "" && r.names[name] == s {
		delete(r.names, name)
	}
	survivor := r.leaveLocked(s)
	r.mu.Unlock()

	s.close()
	return survivor
}

func (r *Registry) stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Sessions: len(r.sessions), Rooms: len(r.rooms)}
}

// closeAll stops every dispatcher and session, then waits for the
// dispatchers to exit. Used on server shutdown.
func (r *Registry) closeAll() {
	r.mu.Lock()
	sessions := lo.Values(r.sessions)
	rooms := lo.Values(r.rooms)
	r.sessions = make(map[string]*Session)
	r.names = make(map[string]*Session)
	r.rooms = make(map[string]*Room)
	for _, s := range sessions {
		s.setRoom(nil)
	}
	for _, rm := range rooms {
		close(rm.stop)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	for _, rm := range rooms {
		<-rm.done
	}
}
