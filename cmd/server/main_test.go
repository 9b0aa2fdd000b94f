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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evsim/livechannel/pkg/config"
	"github.com/evsim/livechannel/pkg/core"
)

// newStation answers every call with a CALLRESULT carrying the same id.
func newStation(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{Subprotocols: []string{"ocpp1.6"}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var call []any
			if json.Unmarshal(data, &call) != nil || len(call) < 2 {
				continue
			}
			reply, _ := json.Marshal([]any{3, call[1], map[string]any{"status": "Accepted"}})
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSendWaitsForReply(t *testing.T) {
	url := newStation(t)
	out, err := executeCLI(t, "send",
		"--url", url,
		"--subprotocol", "ocpp1.6",
		"--action", "RemoteStartTransaction",
		"--payload", `{"connectorId":1,"idTag":"TEST_TAG"}`,
		"--id", "msg-1",
		"--wait", "2s",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "sent RemoteStartTransaction msg-1")
	assert.Contains(t, out, `[3,"msg-1",{"status":"Accepted"}]`)
}

func TestSendRequiresFlags(t *testing.T) {
	_, err := executeCLI(t, "send", "--url", "ws://localhost:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "action" not set`)
}

func TestSendRejectsInvalidPayload(t *testing.T) {
	_, err := executeCLI(t, "send", "--url", "ws://localhost:1", "--action", "Heartbeat", "--payload", "{nope")
	assert.True(t, errors.Is(err, core.ErrInvalidMessage))
}

func TestSendOpenFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	_, err := executeCLI(t, "send", "--url", url, "--action", "Heartbeat")
	assert.True(t, errors.Is(err, core.ErrOpenFailed))
}

func TestSendNoReply(t *testing.T) {
	upgrader := websocket.Upgrader{}
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := executeCLI(t, "send",
		"--url", "ws"+strings.TrimPrefix(srv.URL, "http"),
		"--action", "Heartbeat",
		"--wait", "50ms",
	)
	assert.True(t, errors.Is(err, errNoReply))
}

func TestNewAppWiresConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(`
channels:
  - name: status
    url: ws://localhost:9000/ws/charging/station/DTS-CC-001/CHG001/
  - name: command
    url: ws://localhost:9000/ws/charging/station/DTS-CC-001/CHG001/charge/
sinks:
  - {name: k, type: kafka, config: {brokers: "a:9092, b:9092", topic: frames}}
  - {name: r, type: rabbitmq, config: {url: "amqp://localhost", queue: frames}}
  - {name: m5, type: mqtt5, config: {broker: "mqtt://localhost:1883", topic: "evsim/{channel}"}}
  - {name: m3, type: mqtt, config: {broker: "tcp://localhost:1883", topic: evsim, qos: "0"}}
  - {name: j, type: jms, config: {url: "amqp://localhost:5672", queue: frames}}
  - {name: rd, type: redis, config: {addr: "localhost:6379", db: "2"}}
  - {name: sol, type: solace, config: {host: "tcp://localhost:55555", vpn: default, topic: "evsim/{channel}"}}
  - {name: x, type: carrier-pigeon}
mirrors:
  - {source: status, target: k}
  - {source: status, target: rd}
  - {source: status, target: rd, channel_size: 8}
`))
	require.NoError(t, err)

	a := newApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer a.shutdown(context.Background())

	assert.Equal(t, []string{"command", "status"}, a.registry.ChannelNames())
	sinks := a.registry.Sinks()
	assert.Len(t, sinks, 7, "unknown sink types are skipped")
	for name, typ := range map[string]string{"k": "kafka", "r": "rabbitmq", "m5": "mqtt5", "m3": "mqtt", "j": "jms", "rd": "redis", "sol": "solace"} {
		require.Contains(t, sinks, name)
		assert.Equal(t, typ, sinks[name].Type())
	}
	routes := a.routes.Lookup("status")
	require.Len(t, routes, 2, "duplicate mirrors collapse to the last entry")
	assert.Equal(t, "rd", routes[1].Target)
	assert.Equal(t, 8, routes[1].ChannelSize)
	assert.Empty(t, a.routes.Lookup("command"))

	ep, ok := a.registry.Endpoint("command")
	require.True(t, ok)
	assert.Equal(t, "ws://localhost:9000/ws/charging/station/DTS-CC-001/CHG001/charge/", ep.URL)
}

func TestSplitListAndQos(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitList(" a:9092, ,b:9092 "))
	assert.Nil(t, splitList(""))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Equal(t, byte(1), qosOf("", logger))
	assert.Equal(t, byte(2), qosOf("2", logger))
	assert.Equal(t, byte(1), qosOf("7", logger))
}

func TestServeMissingConfig(t *testing.T) {
	_, err := executeCLI(t, "serve", "--config", "/nonexistent/config.yaml")
	require.Error(t, err)
}

