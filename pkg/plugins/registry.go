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

package plugins

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/evsim/livechannel/pkg/core"
)

type registeredChannel struct {
	channel  core.Channel
	endpoint core.Endpoint
	autoOpen bool
}

// Registry holds the named channels and mirror sinks of one process.
type Registry struct {
	channels map[string]registeredChannel
	sinks    map[string]core.Sink
	healthy  map[string]bool
	logger   *slog.Logger
	mu       sync.RWMutex
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		channels: make(map[string]registeredChannel),
		sinks:    make(map[string]core.Sink),
		healthy:  make(map[string]bool),
		logger:   logger,
	}
}

// RegisterChannel adds ch with the endpoint it opens against by default.
func (r *Registry) RegisterChannel(ch core.Channel, ep core.Endpoint, autoOpen bool) {
	r.mu.Lock()
	r.channels[ch.Name()] = registeredChannel{channel: ch, endpoint: ep, autoOpen: autoOpen}
	r.mu.Unlock()
	r.logger.Info("registered channel", "name", ch.Name(), "url", ep.URL, "auto_open", autoOpen)
}

func (r *Registry) RegisterSink(s core.Sink) {
	r.mu.Lock()
	r.sinks[s.Name()] = s
	r.mu.Unlock()
	r.logger.Info("registered sink", "name", s.Name(), "type", s.Type())
}

func (r *Registry) Channel(name string) (core.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rc, ok := r.channels[name]
	return rc.channel, ok
}

// Endpoint returns the configured endpoint of a channel.
func (r *Registry) Endpoint(name string) (core.Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rc, ok := r.channels[name]
	return rc.endpoint, ok
}

// ChannelNames returns the registered channel names in sorted order.
func (r *Registry) ChannelNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) Sink(name string) (core.Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[name]
	return s, ok
}

func (r *Registry) Sinks() map[string]core.Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]core.Sink, len(r.sinks))
	for k, v := range r.sinks {
		cp[k] = v
	}
	return cp
}

// ConnectSinks connects every sink and returns how many succeeded. A failed
// sink stays registered and marked unhealthy.
func (r *Registry) ConnectSinks(ctx context.Context) int {
	connected := 0
	for name, s := range r.Sinks() {
		err := s.Connect(ctx)
		r.mu.Lock()
		r.healthy[name] = err == nil
		r.mu.Unlock()
		if err != nil {
			r.logger.Error("sink connect failed", "name", name, "error", err)
			continue
		}
		connected++
	}
	return connected
}

func (r *Registry) IsSinkHealthy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthy[name]
}

// OpenChannels opens every auto_open channel concurrently and waits for each
// open to resolve. It returns how many ended up connected.
func (r *Registry) OpenChannels(ctx context.Context) int {
	r.mu.RLock()
	var pending []registeredChannel
	for _, rc := range r.channels {
		if rc.autoOpen {
			pending = append(pending, rc)
		}
	}
	r.mu.RUnlock()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for _, rc := range pending {
		wg.Add(1)
		go func(rc registeredChannel) {
			defer wg.Done()
			if err := rc.channel.Open(ctx, rc.endpoint); err != nil {
				r.logger.Error("channel open failed", "name", rc.channel.Name(), "error", err)
				return
			}
			mu.Lock()
			opened++
			mu.Unlock()
		}(rc)
	}
	wg.Wait()
	return opened
}

func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	channels := make([]core.Channel, 0, len(r.channels))
	for _, rc := range r.channels {
		channels = append(channels, rc.channel)
	}
	r.mu.RUnlock()

	for _, ch := range channels {
		r.logger.Info("closing channel", "name", ch.Name())
		if err := ch.Close(ctx); err != nil {
			r.logger.Warn("channel close error", "name", ch.Name(), "error", err)
		}
	}
	for name, s := range r.Sinks() {
		r.logger.Info("stopping sink", "name", name)
		if err := s.Disconnect(ctx); err != nil {
			r.logger.Warn("sink disconnect error", "name", name, "error", err)
		}
	}
}
