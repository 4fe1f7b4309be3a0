// Package websocket serves interactive exploration sessions over WebSocket.
package websocket

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/kenoir/weco-concept-explorer/application/explorer"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SessionFactory creates a session that reports to sink.
type SessionFactory func(sink explorer.Sink) *explorer.Session

// ServerConfig holds WebSocket server configuration
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
	MaxSessions     int
}

// DefaultServerConfig returns default WebSocket server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
		MaxSessions:     1000,
	}
}

// Server upgrades requests and runs one exploration session per connection.
type Server struct {
	upgrader   websocket.Upgrader
	newSession SessionFactory
	maxActive  int64
	active     atomic.Int64
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *zap.Logger
}

// NewServer creates a new WebSocket server
func NewServer(newSession SessionFactory, config *ServerConfig, logger *zap.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		newSession: newSession,
		maxActive:  int64(config.MaxSessions),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
}

// ActiveSessions returns the number of open sessions.
func (s *Server) ActiveSessions() int64 { return s.active.Load() }

// Shutdown ends every open session. New connections are refused afterwards.
// It is meant for http.Server.RegisterOnShutdown, since Shutdown does not
// wait for hijacked connections.
func (s *Server) Shutdown() {
	s.cancel()
}

// ServeHTTP handles GET /api/v1/sessions/ws. It blocks until the
// connection closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if s.maxActive > 0 && s.active.Load() >= s.maxActive {
		http.Error(w, "too many sessions", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	s.active.Add(1)
	defer s.active.Add(-1)

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: s.logger,
	}
	session := s.newSession(c)
	c.session = session
	c.logger = s.logger.With(zap.String("sessionID", session.ID()))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	go c.writePump()
	go func() {
		if err := session.Run(ctx); err != nil && ctx.Err() == nil {
			c.logger.Debug("Session stopped", zap.Error(err))
		}
	}()
	// A session that stops on its own closes the connection, which ends
	// the read pump below.
	go func() {
		<-session.Done()
		conn.Close()
	}()

	c.readPump()

	session.Close()
	<-session.Done()
	close(c.send)
}
