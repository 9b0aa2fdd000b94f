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

package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/evsim/livechannel/pkg/core"
)

// messageWriter is the subset of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Sink struct {
	name    string
	brokers []string
	topic   string
	logger  *slog.Logger

	mu     sync.RWMutex
	writer messageWriter
}

func New(name string, brokers []string, topic string, logger *slog.Logger) *Sink {
	return &Sink{
		name:    name,
		brokers: brokers,
		topic:   topic,
		logger:  logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "kafka" }

func (s *Sink) Connect(ctx context.Context) error {
	if len(s.brokers) == 0 || s.topic == "" {
		return fmt.Errorf("%w: kafka sink %s needs brokers and topic", core.ErrSinkConfig, s.name)
	}
	s.mu.Lock()
	s.writer = &kafka.Writer{
		Addr:     kafka.TCP(s.brokers...),
		Topic:    s.topic,
		Balancer: &kafka.Hash{},
	}
	s.mu.Unlock()
	s.logger.Info("kafka sink connected",
		"name", s.name,
		"brokers", strings.Join(s.brokers, ","),
		"topic", s.topic,
	)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	w := s.writer
	s.writer = nil
	s.mu.Unlock()
	if w != nil {
		return w.Close()
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, evt core.Event) error {
	s.mu.RLock()
	w := s.writer
	s.mu.RUnlock()
	if w == nil {
		return fmt.Errorf("%w: %s", core.ErrSinkNotConnected, s.name)
	}
	return w.WriteMessages(ctx, messageOf(evt))
}

// messageOf keys by channel so frames of one channel stay ordered within a
// partition.
func messageOf(evt core.Event) kafka.Message {
	headers := make([]kafka.Header, 0, len(evt.Metadata)+1)
	headers = append(headers, kafka.Header{Key: "event_id", Value: []byte(evt.ID)})
	for k, v := range evt.Metadata {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return kafka.Message{
		Key:     []byte(evt.Channel),
		Value:   evt.Payload,
		Headers: headers,
		Time:    evt.Timestamp,
	}
}
