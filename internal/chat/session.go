package chat

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/akarpov/roomcast/internal/protocol"
)

// Conn is the transport half a session writes serialized envelopes to.
// Close must be safe to call more than once.
type Conn interface {
	WriteMessage(data []byte) error
	Close() error
}

// State describes where a session is in its lifecycle.
type State string

const (
	StateConnected State = "connected"
	StateNamed     State = "named"
	StateInRoom    State = "in_room"
	StateClosed    State = "closed"
)

// Session tracks one connected client and owns its bounded outbound
// queue. A single writer goroutine, started on construction, drains the
// queue in FIFO order and hands serialized frames to the transport.
type Session struct {
	id   string
	conn Conn
	out  chan protocol.Envelope
	done chan struct{}
	log  *slog.Logger

	closeMux sync.Once

	mu   sync.Mutex
	name string
	room *Room
}

func newSession(conn Conn, queueSize int, log *slog.Logger) *Session {
	s := &Session{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan protocol.Envelope, queueSize),
		done: make(chan struct{}),
		log:  log,
	}
	go s.writeLoop()
	return s
}

// ID returns the session's transport-independent identity.
func (s *Session) ID() string {
	return s.id
}

// Name returns the claimed display name, empty until set_username.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// RoomName returns the current room, empty outside one.
func (s *Session) RoomName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return ""
	}
	return s.room.Name
}

// State derives the lifecycle state from the session's fields.
func (s *Session) State() State {
	select {
	case <-s.done:
		return StateClosed
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.room != nil:
		return StateInRoom
	case s.name != "":
		return StateNamed
	default:
		return StateConnected
	}
}

// Enqueue offers an envelope to the outbound queue without blocking.
// A full queue returns ErrQueueFull; a closed session returns
// ErrSessionClosed. The writer preserves enqueue order per session.
func (s *Session) Enqueue(env protocol.Envelope) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.out <- env:
		return nil
	default:
		return ErrQueueFull
	}
}

// writeLoop serializes queued envelopes onto the transport. A write
// failure closes this session only; envelopes still queued when the
// session closes are discarded.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case env := <-s.out:
			data, err := protocol.EncodeEnvelope(env)
			if err != nil {
				s.log.Error("encode envelope", "session", s.id, "error", err)
				continue
			}
			if err := s.conn.WriteMessage(data); err != nil {
				s.log.Debug("session write failed", "session", s.id, "error", err)
				s.close()
				return
			}
		}
	}
}

// close stops the writer and the transport. Registry bookkeeping (name
// release, room departure) is the registry's job; callers outside this
// package go through Service.OnDisconnect.
func (s *Session) close() {
	s.closeMux.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Session) setName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *Session) setRoom(room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = room
}

func (s *Session) currentRoom() *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}
