// SPDX-FileCopyrightText: The fixtrack authors
//
// SPDX-License-Identifier: MIT

// Package mqtt provides an observer that publishes accepted fixes as
// JSON messages to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/citywalk/fixtrack/internal/logger"
	"github.com/citywalk/fixtrack/internal/tracker"
)

// Sink forwards every accepted fix to an MQTT topic.
type Sink struct {
	client paho.Client
	topic  string
	qos    byte
	retain bool
	logger *logger.Logger

	// publishFn is a test seam; it defaults to publishing via the client.
	publishFn func(payload []byte) error
}

// New connects to the broker and returns a ready Sink.
func New(broker, clientID, topic string, qos byte, retain bool, log *logger.Logger) (*Sink, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	s := &Sink{
		client: client,
		topic:  topic,
		qos:    qos,
		retain: retain,
		logger: log,
	}
	s.publishFn = s.publish
	return s, nil
}

// Run consumes fixes from the subscription channel and publishes them
// until the channel closes or the context is cancelled. Publish failures
// are logged and drop the affected fix; the stream continues.
func (s *Sink) Run(ctx context.Context, fixes <-chan tracker.Fix) {
	for {
		select {
		case <-ctx.Done():
			return
		case fix, ok := <-fixes:
			if !ok {
				return
			}
			payload, err := json.Marshal(fix)
			if err != nil {
				s.logger.Error("failed to marshal fix", logger.Err(err))
				continue
			}
			if err = s.publishFn(payload); err != nil {
				s.logger.Error("failed to publish fix", slog.String("topic", s.topic),
					logger.Err(err))
				continue
			}
			s.logger.Debug("published fix", slog.String("topic", s.topic),
				slog.String("provider", fix.Provider))
		}
	}
}

// Close disconnects from the broker.
func (s *Sink) Close() {
	s.client.Disconnect(250)
}

func (s *Sink) publish(payload []byte) error {
	token := s.client.Publish(s.topic, s.qos, s.retain, payload)
	token.Wait()
	return token.Error()
}
