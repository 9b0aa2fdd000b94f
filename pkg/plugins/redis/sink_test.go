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
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evsim/livechannel/pkg/core"
)

type published struct {
	channel string
	message any
}

type fakeClient struct {
	err    error
	sent   []published
	closed bool
}

func (f *fakeClient) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.sent = append(f.sent, published{channel, message})
	return redis.NewIntResult(1, f.err)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishBeforeConnect(t *testing.T) {
	s := New("feed", &redis.Options{Addr: "localhost:6379"}, "", discard())
	assert.Equal(t, DefaultChannel, s.channel)
	assert.True(t, errors.Is(s.Publish(context.Background(), core.Event{}), core.ErrSinkNotConnected))
}

func TestConnectRequiresAddr(t *testing.T) {
	s := New("feed", &redis.Options{}, "", discard())
	assert.True(t, errors.Is(s.Connect(context.Background()), core.ErrSinkConfig))
}

func TestPublishToChannelTopic(t *testing.T) {
	s := New("feed", &redis.Options{Addr: "localhost:6379"}, "", discard())
	fc := &fakeClient{}
	s.client = fc

	require.NoError(t, s.Publish(context.Background(), core.Event{Channel: "status", Payload: []byte(`{}`)}))
	require.Len(t, fc.sent, 1)
	assert.Equal(t, "livechannel:status", fc.sent[0].channel)
	assert.Equal(t, []byte(`{}`), fc.sent[0].message)

	fc.err = errors.New("READONLY")
	err := s.Publish(context.Background(), core.Event{Channel: "status"})
	assert.ErrorContains(t, err, "READONLY")

	require.NoError(t, s.Disconnect(context.Background()))
	assert.True(t, fc.closed)
}
