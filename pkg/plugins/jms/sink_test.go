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
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evsim/livechannel/pkg/core"
)

func TestPublishBeforeConnect(t *testing.T) {
	s := New("artemis", "amqp://localhost:5672", "frames", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, "jms", s.Type())
	assert.True(t, errors.Is(s.Publish(context.Background(), core.Event{}), core.ErrSinkNotConnected))
	assert.NoError(t, s.Disconnect(context.Background()))
}

func TestConnectRequiresQueue(t *testing.T) {
	s := New("artemis", "amqp://localhost:5672", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.True(t, errors.Is(s.Connect(context.Background()), core.ErrSinkConfig))
}

func TestMessageOf(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := messageOf(core.Event{
		ID:        "evt-1",
		Channel:   "command",
		Payload:   []byte(`[3,"a",{}]`),
		Metadata:  map[string]string{"kind": "CALLRESULT"},
		Timestamp: ts,
	})
	require.Len(t, msg.Data, 1)
	assert.Equal(t, `[3,"a",{}]`, string(msg.Data[0]))
	assert.Equal(t, "evt-1", msg.Properties.MessageID)
	assert.Equal(t, ts, *msg.Properties.CreationTime)
	assert.Equal(t, "command", msg.ApplicationProperties["channel"])
	assert.Equal(t, "CALLRESULT", msg.ApplicationProperties["kind"])
}
