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

package jms

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Azure/go-amqp"

	"github.com/evsim/livechannel/pkg/core"
)

// Sink sends to an AMQP 1.0 queue, the wire protocol of JMS brokers such as
// ActiveMQ Artemis.
type Sink struct {
	name   string
	url    string
	queue  string
	logger *slog.Logger

	mu       sync.RWMutex
	conn     *amqp.Conn
	sendSess *amqp.Session
	sender   *amqp.Sender
}

func New(name, url, queue string, logger *slog.Logger) *Sink {
	return &Sink{
		name:   name,
		url:    url,
		queue:  queue,
		logger: logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "jms" }

func (s *Sink) Connect(ctx context.Context) error {
	if s.url == "" || s.queue == "" {
		return fmt.Errorf("%w: jms sink %s needs url and queue", core.ErrSinkConfig, s.name)
	}
	conn, err := amqp.Dial(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("jms dial: %w", err)
	}

	sess, err := conn.NewSession(ctx, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("jms send session: %w", err)
	}
	sender, err := sess.NewSender(ctx, s.queue, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("jms sender: %w", err)
	}

	s.mu.Lock()
	s.conn, s.sendSess, s.sender = conn, sess, sender
	s.mu.Unlock()
	s.logger.Info("jms sink connected", "name", s.name, "queue", s.queue)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sender != nil {
		s.sender.Close(ctx)
		s.sender = nil
	}
	if s.sendSess != nil {
		s.sendSess.Close(ctx)
		s.sendSess = nil
	}
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, evt core.Event) error {
	s.mu.RLock()
	sender := s.sender
	s.mu.RUnlock()
	if sender == nil {
		return fmt.Errorf("%w: %s", core.ErrSinkNotConnected, s.name)
	}
	return sender.Send(ctx, messageOf(evt), nil)
}

func messageOf(evt core.Event) *amqp.Message {
	props := map[string]any{"channel": evt.Channel}
	for k, v := range evt.Metadata {
		props[k] = v
	}
	created := evt.Timestamp
	return &amqp.Message{
		Data: [][]byte{evt.Payload},
		Properties: &amqp.MessageProperties{
			MessageID:    evt.ID,
			CreationTime: &created,
		},
		ApplicationProperties: props,
	}
}
