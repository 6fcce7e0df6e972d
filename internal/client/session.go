package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akarpov/roomcast/internal/config"
	"github.com/akarpov/roomcast/internal/protocol"
)

// Session is a client connection to the chat server. Connect dials the
// configured URL and starts the read loop; envelopes arrive on the
// Messages channel, which closes when the connection dies.
type Session struct {
	cfg      config.ClientConfig
	messages chan protocol.Envelope

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	writeMu sync.Mutex
}

// NewSession prepares a session without dialing.
func NewSession(cfg config.ClientConfig) *Session {
	return &Session{
		cfg:      cfg,
		messages: make(chan protocol.Envelope, 32),
	}
}

// Connect dials the server and starts reading envelopes. A session
// closed while the dial was in flight discards the connection.
func (s *Session) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.ServerURL, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("session closed")
	}
	s.conn = conn
	s.mu.Unlock()

	go s.readLoop(conn)
	return nil
}

// Messages returns the inbound envelope stream.
func (s *Session) Messages() <-chan protocol.Envelope {
	return s.messages
}

// Send writes one action frame. The context deadline, when set, bounds
// the write.
func (s *Session) Send(ctx context.Context, act protocol.Action) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	data, err := protocol.EncodeAction(act)
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close tears the connection down. Safe to call more than once; the
// read loop exits and closes the Messages channel.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	s.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return conn.Close()
}

func (s *Session) readLoop(conn *websocket.Conn) {
	defer close(s.messages)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.DecodeEnvelope(data)
		if err != nil {
			continue
		}
		s.messages <- env
	}
}
