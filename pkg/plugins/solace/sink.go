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

package solace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"solace.dev/go/messaging"
	"solace.dev/go/messaging/pkg/solace"
	"solace.dev/go/messaging/pkg/solace/config"
	"solace.dev/go/messaging/pkg/solace/resource"

	"github.com/evsim/livechannel/pkg/core"
)

const terminateGrace = 5 * time.Second

// Sink publishes frames as direct messages on a Solace PubSub+ topic. The
// topic may carry a {channel} placeholder.
type Sink struct {
	name     string
	host     string
	vpn      string
	username string
	password string
	topic    string
	logger   *slog.Logger

	mu        sync.RWMutex
	service   solace.MessagingService
	publisher solace.DirectMessagePublisher
}

func New(name, host, vpn, username, password, topic string, logger *slog.Logger) *Sink {
	return &Sink{
		name:     name,
		host:     host,
		vpn:      vpn,
		username: username,
		password: password,
		topic:    topic,
		logger:   logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "solace" }

func (s *Sink) Connect(ctx context.Context) error {
	if s.host == "" || s.topic == "" {
		return fmt.Errorf("%w: solace sink %s needs host and topic", core.ErrSinkConfig, s.name)
	}
	service, err := messaging.NewMessagingServiceBuilder().
		FromConfigurationProvider(config.ServicePropertyMap{
			config.TransportLayerPropertyHost:                s.host,
			config.ServicePropertyVPNName:                    s.vpn,
			config.AuthenticationPropertySchemeBasicUserName: s.username,
			config.AuthenticationPropertySchemeBasicPassword: s.password,
		}).Build()
	if err != nil {
		return fmt.Errorf("solace build: %w", err)
	}
	if err = service.Connect(); err != nil {
		return fmt.Errorf("solace connect: %w", err)
	}

	publisher, err := service.CreateDirectMessagePublisherBuilder().Build()
	if err != nil {
		_ = service.Disconnect()
		return fmt.Errorf("solace publisher build: %w", err)
	}
	if err = publisher.Start(); err != nil {
		_ = service.Disconnect()
		return fmt.Errorf("solace publisher start: %w", err)
	}

	s.mu.Lock()
	s.service, s.publisher = service, publisher
	s.mu.Unlock()
	s.logger.Info("solace sink connected", "name", s.name, "host", s.host, "topic", s.topic)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publisher != nil {
		if err := s.publisher.Terminate(terminateGrace); err != nil {
			s.logger.Warn("solace publisher terminate failed", "name", s.name, "error", err)
		}
		s.publisher = nil
	}
	if s.service != nil {
		err := s.service.Disconnect()
		s.service = nil
		return err
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, evt core.Event) error {
	s.mu.RLock()
	service, publisher := s.service, s.publisher
	s.mu.RUnlock()
	if publisher == nil {
		return fmt.Errorf("%w: %s", core.ErrSinkNotConnected, s.name)
	}

	builder := service.MessageBuilder()
	for k, v := range propertiesOf(evt) {
		builder = builder.WithProperty(config.MessageProperty(k), v)
	}
	msg, err := builder.BuildWithByteArrayPayload(evt.Payload)
	if err != nil {
		return fmt.Errorf("solace message: %w", err)
	}
	return publisher.Publish(msg, resource.TopicOf(s.topicFor(evt.Channel)))
}

func (s *Sink) topicFor(channel string) string {
	return core.ExpandChannel(s.topic, channel)
}

func propertiesOf(evt core.Event) map[string]string {
	props := make(map[string]string, len(evt.Metadata)+2)
	for k, v := range evt.Metadata {
		props[k] = v
	}
	props["event_id"] = evt.ID
	props["channel"] = evt.Channel
	return props
}
