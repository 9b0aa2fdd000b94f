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

package mirror

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evsim/livechannel/internal/channel"
	"github.com/evsim/livechannel/internal/channel/channeltest"
	"github.com/evsim/livechannel/internal/routing"
	"github.com/evsim/livechannel/pkg/core"
)

type recordingSink struct {
	name  string
	gate  chan struct{}
	err   error
	panic bool

	mu     sync.Mutex
	events []core.Event
}

func (s *recordingSink) Name() string                         { return s.name }
func (s *recordingSink) Type() string                         { return "test" }
func (s *recordingSink) Connect(ctx context.Context) error    { return nil }
func (s *recordingSink) Disconnect(ctx context.Context) error { return nil }

func (s *recordingSink) Publish(ctx context.Context, evt core.Event) error {
	if s.panic {
		panic("boom")
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.events = append(s.events, evt)
	s.mu.Unlock()
	return s.err
}

func (s *recordingSink) received() []core.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Event(nil), s.events...)
}

type counter struct {
	mu      sync.Mutex
	dropped int
	failed  int
}

func (c *counter) MirrorDropped(string, string) {
	c.mu.Lock()
	c.dropped++
	c.mu.Unlock()
}

func (c *counter) MirrorFailed(string, string) {
	c.mu.Lock()
	c.failed++
	c.mu.Unlock()
}

func (c *counter) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped, c.failed
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sinkLookup(sinks ...core.Sink) SinkLookup {
	return func(name string) (core.Sink, bool) {
		for _, s := range sinks {
			if s.Name() == name {
				return s, true
			}
		}
		return nil, false
	}
}

func openChannel(t *testing.T, name string) (*channel.Manager, *channeltest.Conn) {
	t.Helper()
	d := &channeltest.Dialer{}
	m := channel.New(name, d, channel.WithLogger(discard()))
	require.NoError(t, m.Open(context.Background(), core.Endpoint{URL: "ws://station"}))
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m, d.Last()
}

func TestRelayMirrorsToEveryRoute(t *testing.T) {
	kafka := &recordingSink{name: "kafka-main"}
	redis := &recordingSink{name: "redis-feed"}
	table := routing.NewTable()
	table.Add(&core.Route{Source: "status", Target: "kafka-main", ChannelSize: 4})
	table.Add(&core.Route{Source: "status", Target: "redis-feed", ChannelSize: 4})

	relay := NewRelay(table, sinkLookup(kafka, redis), nil, discard())
	defer relay.Stop()

	m, conn := openChannel(t, "status")
	relay.Attach(m)

	conn.Push(`[2,"hb-1","Heartbeat",{}]`)
	conn.Push(`not json`)

	require.Eventually(t, func() bool {
		return len(kafka.received()) == 2 && len(redis.received()) == 2
	}, time.Second, 5*time.Millisecond)

	first := kafka.received()[0]
	assert.Equal(t, "status", first.Channel)
	assert.Equal(t, `[2,"hb-1","Heartbeat",{}]`, string(first.Payload))
	assert.Equal(t, "Heartbeat", first.Metadata["action"])
	assert.Equal(t, "hb-1", first.Metadata["message_id"])
	assert.Equal(t, "1", first.Metadata["seq"])
	assert.NotEmpty(t, first.ID)

	second := kafka.received()[1]
	assert.Equal(t, "true", second.Metadata["parse_error"])
	assert.Equal(t, "not json", string(second.Payload))
}

func TestRelayIgnoresUnroutedChannel(t *testing.T) {
	sink := &recordingSink{name: "kafka-main"}
	table := routing.NewTable()
	table.Add(&core.Route{Source: "status", Target: "kafka-main"})

	relay := NewRelay(table, sinkLookup(sink), nil, discard())
	defer relay.Stop()

	m, conn := openChannel(t, "command")
	relay.Attach(m)
	conn.Push(`{"event":"status_update"}`)

	require.Eventually(t, func() bool { return m.Log().Len() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sink.received())
}

func TestRelayDropsWhenQueueFull(t *testing.T) {
	gate := make(chan struct{})
	slow := &recordingSink{name: "slow", gate: gate}
	table := routing.NewTable()
	table.Add(&core.Route{Source: "status", Target: "slow", ChannelSize: 1})
	rec := &counter{}

	relay := NewRelay(table, sinkLookup(slow), rec, discard())
	defer relay.Stop()

	m, conn := openChannel(t, "status")
	relay.Attach(m)

	for i := 0; i < 10; i++ {
		conn.Push(`{}`)
	}
	require.Eventually(t, func() bool {
		dropped, _ := rec.counts()
		return dropped >= 8
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 10, m.Log().Len(), "the channel log never loses entries to a slow sink")
	close(gate)
}

func TestRelayCountsFailures(t *testing.T) {
	failing := &recordingSink{name: "broken", err: errors.New("broker down")}
	panicky := &recordingSink{name: "panicky", panic: true}
	table := routing.NewTable()
	table.Add(&core.Route{Source: "status", Target: "broken", ChannelSize: 4})
	table.Add(&core.Route{Source: "status", Target: "panicky", ChannelSize: 4})
	table.Add(&core.Route{Source: "status", Target: "missing", ChannelSize: 4})
	rec := &counter{}

	relay := NewRelay(table, sinkLookup(failing, panicky), rec, discard())
	defer relay.Stop()

	m, conn := openChannel(t, "status")
	relay.Attach(m)
	conn.Push(`{}`)

	require.Eventually(t, func() bool {
		_, failed := rec.counts()
		return failed == 3
	}, time.Second, 5*time.Millisecond)
}

func TestRelayStopDetaches(t *testing.T) {
	sink := &recordingSink{name: "kafka-main"}
	table := routing.NewTable()
	table.Add(&core.Route{Source: "status", Target: "kafka-main", ChannelSize: 4})

	relay := NewRelay(table, sinkLookup(sink), nil, discard())
	m, conn := openChannel(t, "status")
	relay.Attach(m)

	relay.Stop()
	relay.Stop()

	conn.Push(`{}`)
	require.Eventually(t, func() bool { return m.Log().Len() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sink.received())
}

func TestRelayFollowsRouteReload(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	table := routing.NewTable()
	table.Add(&core.Route{Source: "status", Target: "a", ChannelSize: 4})

	relay := NewRelay(table, sinkLookup(a, b), nil, discard())
	defer relay.Stop()

	m, conn := openChannel(t, "status")
	relay.Attach(m)

	conn.Push(`{"n":1}`)
	require.Eventually(t, func() bool { return len(a.received()) == 1 }, time.Second, 5*time.Millisecond)

	table.ReplaceAll([]*core.Route{{Source: "status", Target: "b", ChannelSize: 4}})
	conn.Push(`{"n":2}`)
	require.Eventually(t, func() bool { return len(b.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, a.received(), 1)
}
