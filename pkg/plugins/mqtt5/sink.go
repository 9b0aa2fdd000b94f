// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package mqtt5

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/evsim/livechannel/pkg/core"
)

type Sink struct {
	name      string
	brokerURL string
	topic     string
	qos       byte
	logger    *slog.Logger

	mu sync.RWMutex
	cm *autopaho.ConnectionManager
}

// New builds an MQTT v5 sink. topic may contain {channel}, replaced by the
// source channel name on every publish.
func New(name, brokerURL, topic string, qos byte, logger *slog.Logger) *Sink {
	return &Sink{
		name:      name,
		brokerURL: brokerURL,
		topic:     topic,
		qos:       qos,
		logger:    logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "mqtt5" }

func (s *Sink) Connect(ctx context.Context) error {
	if s.topic == "" {
		return fmt.Errorf("%w: mqtt5 sink %s needs a topic", core.ErrSinkConfig, s.name)
	}
	serverURL, err := url.Parse(s.brokerURL)
	if err != nil {
		return fmt.Errorf("mqtt5 invalid URL: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		KeepAlive:                     30,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			s.logger.Info("mqtt5 connection up", "name", s.name)
		},
		OnConnectError: func(err error) {
			s.logger.Warn("mqtt5 connect error", "name", s.name, "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "livechannel-" + s.name + "-" + uuid.New().String()[:8],
		},
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("mqtt5 connection: %w", err)
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("mqtt5 await connection: %w", err)
	}

	s.mu.Lock()
	s.cm = cm
	s.mu.Unlock()
	s.logger.Info("mqtt5 sink connected", "name", s.name, "broker", s.brokerURL, "topic", s.topic)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	cm := s.cm
	s.cm = nil
	s.mu.Unlock()
	if cm != nil {
		return cm.Disconnect(ctx)
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, evt core.Event) error {
	s.mu.RLock()
	cm := s.cm
	s.mu.RUnlock()
	if cm == nil {
		return fmt.Errorf("%w: %s", core.ErrSinkNotConnected, s.name)
	}
	_, err := cm.Publish(ctx, publishOf(s.topic, s.qos, evt))
	return err
}

func publishOf(topic string, qos byte, evt core.Event) *paho.Publish {
	props := &paho.PublishProperties{
		ContentType: "application/json",
	}
	props.User.Add("event_id", evt.ID)
	for k, v := range evt.Metadata {
		props.User.Add(k, v)
	}
	return &paho.Publish{
		Topic:      core.ExpandChannel(topic, evt.Channel),
		QoS:        qos,
		Payload:    evt.Payload,
		Properties: props,
	}
}
