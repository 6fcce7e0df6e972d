package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akarpov/roomcast/internal/chat"
	"github.com/akarpov/roomcast/internal/config"
	"github.com/akarpov/roomcast/internal/protocol"
)

// Server accepts WebSocket connections and feeds decoded actions into
// the chat core. Each connection gets one reader loop here; outbound
// traffic flows through the session writer the core starts.
type Server struct {
	cfg config.ServerConfig
	svc *chat.Service
	log *slog.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server
	allowed  map[string]struct{}
	allowAll bool
}

// NewServer wires the transport in front of the chat core. A nil logger
// falls back to slog.Default.
func NewServer(cfg config.ServerConfig, svc *chat.Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{cfg: cfg, svc: svc, log: log}
	s.allowed, s.allowAll = normalizeOrigins(cfg.AllowedOrigins, log)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Routes returns the HTTP mux serving the WebSocket endpoint and the
// health check.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// Run serves until the context is canceled, then shuts the HTTP server
// down gracefully and closes every live session.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	s.log.Info("listening", "addr", s.cfg.ListenAddr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("http shutdown", "error", err)
	}
	s.svc.Shutdown()
	s.log.Info("server stopped")
	return <-errCh
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	go s.serveConn(conn, r.RemoteAddr)
}

// serveConn runs one connection's read loop. A malformed frame earns an
// error envelope without killing the connection; a read error tears the
// session down.
func (s *Server) serveConn(ws *websocket.Conn, remote string) {
	conn := newWSConn(ws, s.cfg.WriteTimeout, s.cfg.PingInterval)
	sess := s.svc.OnConnect(conn)
	defer s.svc.OnDisconnect(sess)

	ws.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read failed", "remote", remote, "session", sess.ID(), "error", err)
			}
			return
		}

		act, err := protocol.DecodeAction(data)
		if err != nil {
			_ = sess.Enqueue(protocol.NewError(chat.CodeInvalidJSON, "invalid JSON"))
			continue
		}
		s.svc.OnAction(sess, act)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	payload := struct {
		Status string `json:"status"`
		chat.Stats
	}{Status: "ok", Stats: s.svc.Stats()}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Debug("healthz write failed", "error", err)
	}
}
