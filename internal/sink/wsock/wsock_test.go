// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

package wsock

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/citywalk/fixtrack/internal/logger"
	"github.com/citywalk/fixtrack/internal/tracker"
)

func (s *Sink) clientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func testSink() *Sink {
	return New("localhost:0", logger.NewLogger(slog.LevelError, io.Discard))
}

func dialTestClient(t *testing.T, s *Sink) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(s.handleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %s", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	// wait for the server side to finish registering the client
	deadline := time.After(2 * time.Second)
	for s.clientCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the client registration")
		case <-time.After(5 * time.Millisecond):
		}
	}
	return conn
}

func TestSink_Broadcast(t *testing.T) {
	t.Run("connected client receives broadcast frames", func(t *testing.T) {
		s := testSink()
		conn := dialTestClient(t, s)

		want := tracker.Fix{Latitude: 53.5511, Longitude: 9.9937, AccuracyMeters: 10,
			Provider: "gpsd"}
		s.broadcast(want)

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read broadcast frame: %s", err)
		}

		var frame Frame
		if err = json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("failed to unmarshal broadcast frame: %s", err)
		}
		if frame.Fix != want {
			t.Errorf("expected frame fix %+v, got %+v", want, frame.Fix)
		}
		if frame.Stamp == 0 {
			t.Error("expected frame stamp to be set")
		}
	})
	t.Run("broadcast without clients is a no-op", func(t *testing.T) {
		s := testSink()
		s.broadcast(tracker.Fix{Latitude: 1, Longitude: 1})
	})
	t.Run("disconnected client is removed from the registry", func(t *testing.T) {
		s := testSink()
		conn := dialTestClient(t, s)

		_ = conn.Close()
		deadline := time.After(2 * time.Second)
		for s.clientCount() != 0 {
			select {
			case <-deadline:
				t.Fatal("timed out waiting for the client removal")
			case <-time.After(5 * time.Millisecond):
			}
		}
	})
}
