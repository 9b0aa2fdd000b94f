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
	"context"
	"log/slog"

	"github.com/evsim/livechannel/pkg/core"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// FrameLogger writes one debug line per frame crossing a channel.
type FrameLogger struct {
	logger *slog.Logger
}

func NewFrameLogger(logger *slog.Logger) *FrameLogger {
	return &FrameLogger{logger: logger}
}

func (f *FrameLogger) Inbound(channel string, e core.Entry) {
	if !f.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := []any{
		"channel", channel,
		"direction", DirectionInbound,
		"seq", e.Seq,
		"payload_size", len(e.Raw),
		"parse_error", e.ParseError,
		"timestamp", e.ReceivedAt,
	}
	if fr, ok := e.Frame(); ok {
		attrs = append(attrs, "kind", fr.Kind.String(), "message_id", fr.ID, "action", fr.Action)
	}
	f.logger.Debug("frame", attrs...)
}

func (f *FrameLogger) Outbound(channel string, msg core.OutboundMessage, size int) {
	f.logger.Debug("frame",
		"channel", channel,
		"direction", DirectionOutbound,
		"kind", msg.Kind.String(),
		"message_id", msg.ID,
		"action", msg.Action,
		"payload_size", size,
	)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
