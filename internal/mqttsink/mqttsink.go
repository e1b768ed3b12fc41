// Package mqttsink publishes the same node/resource lifecycle stream
// internal/observer fans out over websockets to an MQTT broker, so a
// pipeline's state can be watched by home-automation controllers
// without polling the HTTP API. Connection management follows the
// teacher's internal/mqtt/publisher.go: autopaho owns reconnect, a
// will message marks the instance offline on an unclean disconnect.
package mqttsink

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// Config configures one Sink instance.
type Config struct {
	BrokerURL  string // e.g. "mqtt://localhost:1883" or "mqtts://host:8883"
	ClientID   string
	TopicBase  string // e.g. "pipelined/cam1"
	InstanceID string
}

// Sink implements observer.Sink by publishing each notification as a
// non-retained MQTT message on TopicBase + "/events", plus a second
// non-retained copy on a per-type subtopic for consumers that only want node_error,
// say, without filtering the full stream.
type Sink struct {
	cfg    Config
	logger *slog.Logger
	mu     sync.Mutex
	cm     *autopaho.ConnectionManager
}

// New returns a Sink that is not yet connected; call Start to connect.
func New(cfg Config, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{cfg: cfg, logger: logger}
}

// Start connects to the broker in the background and returns once the
// initial connection attempt has been made (it does not block waiting
// for success; autopaho retries indefinitely per the teacher's pattern).
func (s *Sink) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(s.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("mqttsink: parse broker url: %w", err)
	}

	availTopic := s.cfg.TopicBase + "/availability"

	pahoCfg := autopaho.ClientConfig{
		ServerUrls: []*url.URL{brokerURL},
		KeepAlive:  30,
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			s.logger.Info("mqttsink: connected", "broker", s.cfg.BrokerURL)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := cm.Publish(ctx, &paho.Publish{
				Topic: availTopic, Payload: []byte("online"), QoS: 1, Retain: true,
			}); err != nil {
				s.logger.Warn("mqttsink: availability publish failed", "error", err)
			}
		},
		OnConnectError: func(err error) {
			s.logger.Warn("mqttsink: connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{ClientID: s.cfg.ClientID},
	}
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqttsink: connect: %w", err)
	}

	s.mu.Lock()
	s.cm = cm
	s.mu.Unlock()
	return nil
}

// Stop publishes an offline availability message and disconnects.
func (s *Sink) Stop(ctx context.Context) error {
	s.mu.Lock()
	cm := s.cm
	s.mu.Unlock()
	if cm == nil {
		return nil
	}
	cm.Publish(ctx, &paho.Publish{
		Topic: s.cfg.TopicBase + "/availability", Payload: []byte("offline"), QoS: 1, Retain: true,
	})
	return cm.Disconnect(ctx)
}

// Send implements observer.Sink. payload is already-marshaled JSON
// produced by the hub; it is republished as-is under TopicBase/events,
// and additionally under TopicBase/events/{type} when the payload
// carries a recognizable "type" field, so a broker-side subscriber can
// filter by message kind without a JSON-aware rule.
func (s *Sink) Send(payload []byte) error {
	s.mu.Lock()
	cm := s.cm
	s.mu.Unlock()
	if cm == nil {
		return fmt.Errorf("mqttsink: not connected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic: s.cfg.TopicBase + "/events", Payload: payload, QoS: 0,
	}); err != nil {
		return fmt.Errorf("mqttsink: publish: %w", err)
	}

	if kind := messageType(payload); kind != "" {
		if _, err := cm.Publish(ctx, &paho.Publish{
			Topic: s.cfg.TopicBase + "/events/" + kind, Payload: payload, QoS: 0,
		}); err != nil {
			s.logger.Debug("mqttsink: subtopic publish failed", "type", kind, "error", err)
		}
	}

	return nil
}

func messageType(payload []byte) string {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.Type
}
