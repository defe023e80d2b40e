// Package web exposes the engine over HTTP: a websocket endpoint pushing
// snapshots to remote subscribers, and an upload endpoint replacing the
// portfolio wholesale.
package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"folio/config"
	"folio/internal/entity"
	"folio/internal/services/broadcaster"
)

const writeTimeout = 10 * time.Second

// Engine is the part of the tracker the server needs.
type Engine interface {
	Subscribe() *broadcaster.Observer
	Unsubscribe(o *broadcaster.Observer)
	Replace(p *entity.Portfolio)
}

// Server serves websocket snapshot subscriptions and portfolio uploads.
type Server struct {
	addr     string
	engine   Engine
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewServer(addr string, engine Engine, logger *zap.Logger) *Server {
	return &Server{
		addr:   addr,
		engine: engine,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Start runs the HTTP server and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("web server listening", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleWS upgrades the connection and forwards every broadcast snapshot
// until the client goes away. Each connection has its own observer, so a
// slow client only loses its own snapshots.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	observer := s.engine.Subscribe()
	defer s.engine.Unsubscribe(observer)

	// Drain client frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for snap := range observer.C() {
		payload, err := json.Marshal(snap)
		if err != nil {
			s.logger.Error("failed to marshal snapshot", zap.Error(err))
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// handleUpload accepts a portfolio YAML document and replaces the tracked
// portfolio atomically.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	portfolio, err := config.ParsePortfolio(body)
	if err != nil {
		s.logger.Warn("rejected portfolio upload", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.engine.Replace(portfolio)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("portfolio uploaded, streaming prices\n"))
}
