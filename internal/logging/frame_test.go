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

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/evsim/livechannel/pkg/core"
)

func TestFrameLoggerInbound(t *testing.T) {
	var buf bytes.Buffer
	fl := NewFrameLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	var parsed any
	_ = json.Unmarshal([]byte(`[2,"id-1","Heartbeat",{}]`), &parsed)
	fl.Inbound("status", core.Entry{Seq: 3, Raw: `[2,"id-1","Heartbeat",{}]`, Parsed: parsed})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unexpected log output %q: %v", buf.String(), err)
	}
	if line["action"] != "Heartbeat" {
		t.Fatalf("expected action Heartbeat, got %v", line["action"])
	}
	if line["direction"] != DirectionInbound {
		t.Fatalf("expected inbound, got %v", line["direction"])
	}
}

func TestFrameLoggerSkipsBelowDebug(t *testing.T) {
	var buf bytes.Buffer
	fl := NewFrameLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	fl.Inbound("status", core.Entry{Raw: "x", ParseError: true})
	fl.Outbound("command", core.NewCall("a", "Heartbeat", nil), 25)

	if buf.Len() != 0 {
		t.Fatalf("expected no output at info level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
