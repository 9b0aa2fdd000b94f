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

package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/evsim/livechannel/pkg/core"
)

const DefaultChannel = "livechannel:{channel}"

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// Sink fans frames out over Redis pub/sub. Nothing is stored; subscribers
// that are offline miss the frame.
type Sink struct {
	name    string
	opts    *redis.Options
	channel string
	logger  *slog.Logger

	mu     sync.RWMutex
	client publisher
}

func New(name string, opts *redis.Options, channel string, logger *slog.Logger) *Sink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Sink{
		name:    name,
		opts:    opts,
		channel: channel,
		logger:  logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "redis" }

func (s *Sink) Connect(ctx context.Context) error {
	if s.opts == nil || s.opts.Addr == "" {
		return fmt.Errorf("%w: redis sink %s needs an addr", core.ErrSinkConfig, s.name)
	}
	client := redis.NewClient(s.opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("redis connection failed: %w", err)
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	s.logger.Info("redis sink connected", "name", s.name, "addr", s.opts.Addr, "channel", s.channel)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	if client != nil {
		return client.Close()
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
	target := core.ExpandChannel(s.channel, evt.Channel)
	if err := client.Publish(ctx, target, evt.Payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", target, err)
	}
	return nil
}
