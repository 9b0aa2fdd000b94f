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

package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/evsim/livechannel/pkg/core"
)

const disconnectQuiesce = 250

// Sink publishes to an MQTT 3.1.1 broker for consumers that do not speak v5.
type Sink struct {
	name     string
	broker   string
	topic    string
	clientID string
	qos      byte
	logger   *slog.Logger

	mu     sync.RWMutex
	client pahomqtt.Client
}

func New(name, broker, topic, clientID string, qos byte, logger *slog.Logger) *Sink {
	if clientID == "" {
		clientID = "livechannel-" + name
	}
	return &Sink{
		name:     name,
		broker:   broker,
		topic:    topic,
		clientID: clientID,
		qos:      qos,
		logger:   logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "mqtt" }

func (s *Sink) Connect(ctx context.Context) error {
	if s.broker == "" || s.topic == "" {
		return fmt.Errorf("%w: mqtt sink %s needs broker and topic", core.ErrSinkConfig, s.name)
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(s.broker).
		SetClientID(s.clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetOnConnectHandler(func(pahomqtt.Client) {
			s.logger.Info("mqtt connection up", "name", s.name)
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			s.logger.Warn("mqtt connection lost", "name", s.name, "error", err)
		})

	client := pahomqtt.NewClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	s.logger.Info("mqtt sink connected", "name", s.name, "broker", s.broker, "topic", s.topic)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	if client != nil {
		client.Disconnect(disconnectQuiesce)
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, evt core.Event) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return fmt.Errorf("%w: %s", core.ErrSinkNotConnected, s.name)
	}
	topic := core.ExpandChannel(s.topic, evt.Channel)
	return wait(ctx, client.Publish(topic, s.qos, false, evt.Payload))
}

func wait(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
