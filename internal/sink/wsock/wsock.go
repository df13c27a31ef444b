// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

// Package wsock provides an observer that broadcasts accepted fixes to
// connected websocket clients.
package wsock

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/citywalk/fixtrack/internal/logger"
	"github.com/citywalk/fixtrack/internal/tracker"
)

const clientSendBuffer = 64

// Frame is the JSON structure sent to all websocket clients.
type Frame struct {
	Fix   tracker.Fix `json:"fix"`
	Stamp int64       `json:"stamp"` // Unix ms
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Sink runs a small HTTP server with a /ws endpoint and broadcasts every
// accepted fix to all connected clients. A client that does not keep up
// misses frames instead of stalling the broadcast.
type Sink struct {
	addr     string
	logger   *logger.Logger
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*wsClient]struct{}
}

// New returns a websocket Sink listening on addr.
func New(addr string, log *logger.Logger) *Sink {
	return &Sink{
		addr:   addr,
		logger: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// Run starts the HTTP server and consumes fixes from the subscription
// channel until the context is cancelled.
func (s *Sink) Run(ctx context.Context, fixes <-chan tracker.Fix) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	go s.broadcastLoop(ctx, fixes)
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	s.logger.Info("websocket sink listening", slog.String("addr", s.addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Sink) broadcastLoop(ctx context.Context, fixes <-chan tracker.Fix) {
	for {
		select {
		case <-ctx.Done():
			return
		case fix, ok := <-fixes:
			if !ok {
				return
			}
			s.broadcast(fix)
		}
	}
}

func (s *Sink) broadcast(fix tracker.Fix) {
	frame := Frame{Fix: fix, Stamp: time.Now().UnixMilli()}
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error("failed to marshal frame", logger.Err(err))
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for client := range s.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

func (s *Sink) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade websocket connection", logger.Err(err))
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Debug("websocket client connected", slog.Int("total", total))

	// writer goroutine
	go func() {
		defer func() { _ = conn.Close() }()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// reader goroutine, handles disconnects and keep-alive
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			total := len(s.clients)
			s.clientsMu.Unlock()
			close(client.send)
			s.logger.Debug("websocket client disconnected", slog.Int("total", total))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
