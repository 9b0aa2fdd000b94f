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

package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/evsim/livechannel/pkg/core"
)

type Sink struct {
	name   string
	url    string
	queue  string
	logger *slog.Logger

	mu    sync.Mutex
	conn  *amqp.Connection
	pubCh *amqp.Channel
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
func (s *Sink) Type() string { return "rabbitmq" }

func (s *Sink) Connect(ctx context.Context) error {
	if s.url == "" || s.queue == "" {
		return fmt.Errorf("%w: rabbitmq sink %s needs url and queue", core.ErrSinkConfig, s.name)
	}
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq publish channel: %w", err)
	}

	if _, err := pubCh.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq queue declare %s: %w", s.queue, err)
	}

	s.mu.Lock()
	s.conn, s.pubCh = conn, pubCh
	s.mu.Unlock()
	s.logger.Info("rabbitmq sink connected", "name", s.name, "queue", s.queue)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubCh != nil {
		s.pubCh.Close()
		s.pubCh = nil
	}
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// Publish serializes on the sink mutex since an amqp channel is not safe for
// concurrent publishers.
func (s *Sink) Publish(ctx context.Context, evt core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubCh == nil {
		return fmt.Errorf("%w: %s", core.ErrSinkNotConnected, s.name)
	}
	return s.pubCh.PublishWithContext(ctx,
		"",
		s.queue,
		false,
		false,
		publishingOf(evt),
	)
}

func publishingOf(evt core.Event) amqp.Publishing {
	headers := amqp.Table{"channel": evt.Channel}
	for k, v := range evt.Metadata {
		headers[k] = v
	}
	return amqp.Publishing{
		ContentType: "application/json",
		Body:        evt.Payload,
		MessageId:   evt.ID,
		Timestamp:   evt.Timestamp,
		Headers:     headers,
	}
}
