package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/akarpov/roomcast/internal/config"
	"github.com/akarpov/roomcast/internal/protocol"
)

// Service wires sessions, rooms, and registries behind the three
// transport entry points. Handlers never block: every queue interaction
// is a non-blocking enqueue, so a slow session cannot stall the caller.
type Service struct {
	cfg config.ServerConfig
	reg *Registry
	log *slog.Logger
}

// NewService constructs the chat core. A nil logger falls back to
// slog.Default.
func NewService(cfg config.ServerConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg: cfg,
		reg: NewRegistry(cfg.RoomQueueSize, log),
		log: log,
	}
}

// OnConnect admits a transport connection, starts its writer, and
// greets it with the username rules.
func (svc *Service) OnConnect(conn Conn) *Session {
	s := newSession(conn, svc.cfg.OutQueueSize, svc.log)
	svc.reg.add(s)
	svc.log.Info("session connected", "session", s.id)
	svc.send(s, protocol.NewWelcome(svc.cfg.NameMinLen, svc.cfg.NameMaxLen))
	return s
}

// OnAction routes one decoded action to its handler. Handler errors
// become error envelopes for the acting session only; a panicking
// handler is contained here, logged, and reported as a generic error.
func (svc *Service) OnAction(s *Session, act protocol.Action) {
	defer func() {
		if rec := recover(); rec != nil {
			svc.log.Error("handler panic", "action", string(act.Kind), "session", s.id, "panic", rec)
			svc.send(s, protocol.NewError(CodeInternal, "internal server error"))
		}
	}()

	if err := svc.handle(s, act); err != nil {
		svc.send(s, protocol.NewError(ErrorCode(err), err.Error()))
	}
}

// OnDisconnect tears the session down: room departure, name release,
// writer shutdown. Safe to call more than once.
func (svc *Service) OnDisconnect(s *Session) {
	survivor := svc.reg.remove(s)
	if survivor != nil {
		svc.notify(survivor, s, protocol.SystemUserLeft)
	}
	svc.log.Info("session closed", "session", s.id, "user", s.Name())
}

// Stats reports live session and room gauges for health checks.
func (svc *Service) Stats() Stats {
	return svc.reg.stats()
}

// Shutdown closes every session and stops every room dispatcher.
func (svc *Service) Shutdown() {
	svc.reg.closeAll()
}

func (svc *Service) handle(s *Session, act protocol.Action) error {
	switch act.Kind {
	case protocol.ActionSetUsername:
		return svc.setUsername(s, act.Username)
	case protocol.ActionCreateRoom, protocol.ActionJoin:
		return svc.join(s, act.Room)
	case protocol.ActionListRooms:
		return svc.listRooms(s)
	case protocol.ActionLeave:
		return svc.leave(s)
	case protocol.ActionMessage:
		return svc.message(s, act.Text)
	case protocol.ActionPrivateMessage:
		return svc.private(s, act.To, act.Text)
	default:
		return fmt.Errorf("%w %s", ErrUnknownAction, string(act.Kind))
	}
}

func (svc *Service) setUsername(s *Session, candidate string) error {
	if s.Name() != "" {
		return fmt.Errorf("%w: username already set", ErrInvalidName)
	}
	name := strings.TrimSpace(candidate)
	if n := utf8.RuneCountInString(name); n < svc.cfg.NameMinLen || n > svc.cfg.NameMaxLen {
		return fmt.Errorf("%w: must be %d-%d characters", ErrInvalidName, svc.cfg.NameMinLen, svc.cfg.NameMaxLen)
	}
	if err := svc.reg.claimName(s, name); err != nil {
		return err
	}
	svc.log.Info("username claimed", "session", s.id, "user", name)
	svc.send(s, protocol.NewNameSet(name))
	return nil
}

// join implements create-or-join: the room is created on first
// reference and any previous room is left first. Rejoining the current
// room only re-confirms it.
func (svc *Service) join(s *Session, room string) error {
	if err := svc.requireName(s); err != nil {
		return err
	}
	name := strings.TrimSpace(room)
	if name == "" {
		return fmt.Errorf("%w: room name required", ErrInvalidName)
	}
	if rm := s.currentRoom(); rm != nil && rm.Name == name {
		svc.send(s, protocol.NewRoomJoined(name))
		return nil
	}

	joined, left := svc.reg.joinRoom(s, name)
	if left != nil {
		svc.notify(left, s, protocol.SystemUserLeft)
	}
	svc.send(s, protocol.NewRoomJoined(joined.Name))
	svc.notify(joined, s, protocol.SystemUserJoined)
	svc.log.Info("room joined", "session", s.id, "user", s.Name(), "room", joined.Name)
	return nil
}

func (svc *Service) listRooms(s *Session) error {
	if err := svc.requireName(s); err != nil {
		return err
	}
	svc.send(s, protocol.NewRoomList(svc.reg.roomList()))
	return nil
}

func (svc *Service) leave(s *Session) error {
	if err := svc.requireName(s); err != nil {
		return err
	}
	name, survivor, err := svc.reg.leaveRoom(s)
	if err != nil {
		return err
	}
	if survivor != nil {
		svc.notify(survivor, s, protocol.SystemUserLeft)
	}
	svc.send(s, protocol.NewRoomLeft(name))
	svc.log.Info("room left", "session", s.id, "user", s.Name(), "room", name)
	return nil
}

// message submits a broadcast onto the current room's dispatch queue.
// A full dispatch queue is a transient failure reported to the sender;
// it never blocks or crashes the room.
func (svc *Service) message(s *Session, text string) error {
	if err := svc.requireName(s); err != nil {
		return err
	}
	rm := s.currentRoom()
	if rm == nil {
		return ErrNotInRoom
	}

	env := protocol.NewBroadcast(rm.Name, s.Name(), text, nowTS())
	err := rm.dispatch(dispatchItem{origin: s.id, env: env, enqueuedAt: time.Now()})
	switch {
	case errors.Is(err, errRoomStopped):
		return ErrNotInRoom
	case errors.Is(err, ErrQueueFull):
		return fmt.Errorf("%w: room %s is overloaded, try again", ErrQueueFull, rm.Name)
	}
	return err
}

// private delivers directly to the recipient's outbound queue. A full
// recipient queue drops the message and informs the sender; it never
// evicts or disconnects the recipient.
func (svc *Service) private(s *Session, to, text string) error {
	if err := svc.requireName(s); err != nil {
		return err
	}
	target, err := svc.reg.sessionByName(to)
	if err != nil {
		return err
	}

	ts := nowTS()
	err = target.Enqueue(protocol.NewPrivate(s.Name(), to, text, ts))
	switch {
	case errors.Is(err, ErrSessionClosed):
		return fmt.Errorf("%w: %s", ErrRecipientNotFound, to)
	case errors.Is(err, ErrQueueFull):
		return fmt.Errorf("%w: %s is not keeping up", ErrQueueFull, to)
	case err != nil:
		return err
	}

	svc.send(s, protocol.NewPrivateSent(to, text, ts))
	return nil
}

func (svc *Service) requireName(s *Session) error {
	if s.Name() == "" {
		return ErrNotNamed
	}
	return nil
}

// send delivers a reply to the acting session, dropping it when the
// session cannot keep up with its own replies.
func (svc *Service) send(s *Session, env protocol.Envelope) {
	if err := s.Enqueue(env); err != nil {
		svc.log.Debug("reply dropped", "session", s.id, "kind", string(env.Kind), "error", err)
	}
}

// notify announces a membership event onto a room's dispatch queue,
// best-effort.
func (svc *Service) notify(rm *Room, s *Session, event protocol.SystemEvent) {
	item := dispatchItem{
		origin:     s.id,
		env:        protocol.NewSystem(event, rm.Name, s.Name(), nowTS()),
		enqueuedAt: time.Now(),
	}
	if err := rm.dispatch(item); err != nil {
		svc.log.Debug("membership notice dropped", "room", rm.Name, "event", string(event), "error", err)
	}
}

func nowTS() int64 {
	return time.Now().Unix()
}
