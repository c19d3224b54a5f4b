// Package server exposes a timeline projection over HTTP and pushes
// invalidations to websocket clients.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rybkr/rewind/internal/config"
	"github.com/rybkr/rewind/internal/metrics"
	"github.com/rybkr/rewind/internal/timeline"
)

const (
	broadcastBuffer = 256
	writeTimeout    = 5 * time.Second
)

type MessageType string

const (
	MessageTypeInvalidate MessageType = "invalidate"
)

type UpdateMessage struct {
	Type MessageType `json:"type"`
	Data interface{} `json:"data"`
}

type invalidateData struct {
	Repository string `json:"repository"`
}

type Server struct {
	projection *timeline.Projection
	addr       string
	watch      config.WatchConfig
	logger     *zap.Logger

	registry   *registry
	upgrader   websocket.Upgrader
	httpServer *http.Server

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]bool
	broadcast chan UpdateMessage

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewServer wires a server around p. Nothing runs until Start.
func NewServer(p *timeline.Projection, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		projection: p,
		addr:       cfg.Server.Addr,
		watch:      cfg.Watch,
		logger:     logger,
		registry:   newRegistry(),
		upgrader: websocket.Upgrader{
			// The API is read-only and meant for a local viewer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan UpdateMessage, broadcastBuffer),
		ctx:       ctx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
	}
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /api/roots", metrics.Middleware("/api/roots", http.HandlerFunc(s.handleRoots)))
	mux.Handle("GET /api/nodes/{id}", metrics.Middleware("/api/nodes/{id}", http.HandlerFunc(s.handleNode)))
	mux.Handle("GET /api/nodes/{id}/children", metrics.Middleware("/api/nodes/{id}/children", http.HandlerFunc(s.handleChildren)))
	mux.Handle("GET /healthz", metrics.Middleware("/healthz", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /metrics", metrics.Handler())
	// Not wrapped: the upgrade needs the raw ResponseWriter.
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	return mux
}

// Start serves until ctx is cancelled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.handleBroadcast()

	if s.watch.Enabled {
		s.startRefresh()
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.ctx.Done():
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("serving", zap.String("addr", s.addr), zap.Bool("watch", s.watch.Enabled))
	err := s.httpServer.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		s.cancel()
		return err
	}
	<-s.stopped
	return nil
}

// Shutdown stops the HTTP listener, disconnects websocket clients and waits
// for the background loops.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.cancel()
		err = s.httpServer.Shutdown(ctx)

		s.clientsMu.Lock()
		for conn := range s.clients {
			_ = conn.Close()
			delete(s.clients, conn)
		}
		s.clientsMu.Unlock()
		metrics.SetWebsocketClients(0)

		s.wg.Wait()
		close(s.stopped)
	})
	return err
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}

	n := s.addClient(conn)
	s.logger.Debug("websocket client connected", zap.Int("clients", n))

	// Clients never send anything; reading only detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	n = s.removeClient(conn)
	s.logger.Debug("websocket client disconnected", zap.Int("clients", n))
}

func (s *Server) addClient(conn *websocket.Conn) int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[conn] = true
	metrics.SetWebsocketClients(len(s.clients))
	return len(s.clients)
}

func (s *Server) removeClient(conn *websocket.Conn) int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.clients[conn] {
		delete(s.clients, conn)
		_ = conn.Close()
	}
	metrics.SetWebsocketClients(len(s.clients))
	return len(s.clients)
}

func (s *Server) clientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// handleBroadcast is the only writer to client connections.
func (s *Server) handleBroadcast() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.broadcast:
			s.clientsMu.RLock()
			var failed []*websocket.Conn
			for conn := range s.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					s.logger.Debug("websocket write", zap.Error(err))
					failed = append(failed, conn)
				}
			}
			s.clientsMu.RUnlock()

			for _, conn := range failed {
				s.removeClient(conn)
			}
		}
	}
}

func (s *Server) broadcastUpdate(msgType MessageType, data interface{}) {
	select {
	case s.broadcast <- UpdateMessage{Type: msgType, Data: data}:
	default:
		s.logger.Warn("broadcast channel full, dropping message", zap.String("type", string(msgType)))
	}
}

// invalidate drops repo's cached history and tells clients to refetch it.
func (s *Server) invalidate(repo *timeline.RepositoryNode, source string) {
	repo.Invalidate()
	metrics.RecordInvalidation(source)
	s.logger.Info("repository changed",
		zap.String("repository", repo.Folder().Name),
		zap.String("source", source))
	s.broadcastUpdate(MessageTypeInvalidate, invalidateData{Repository: repo.Folder().Name})
}
