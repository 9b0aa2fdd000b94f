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

package core

import (
	"strings"
	"time"
)

// Status is the lifecycle position of a single channel.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusClosing
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusClosing:
		return "closing"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CloseReason is attached to the terminal transition of a session.
type CloseReason int

const (
	ReasonNone CloseReason = iota
	ReasonNormal
	ReasonError
	ReasonTimeout
)

func (r CloseReason) String() string {
	switch r {
	case ReasonNormal:
		return "normal"
	case ReasonError:
		return "error"
	case ReasonTimeout:
		return "timeout"
	default:
		return "none"
	}
}

func (r CloseReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Endpoint identifies the remote side of a channel. Subprotocol is handed to
// the transport untouched.
type Endpoint struct {
	URL         string `json:"url" yaml:"url"`
	Subprotocol string `json:"subprotocol,omitempty" yaml:"subprotocol"`
}

type ConnectionState struct {
	Status   Status    `json:"status"`
	Endpoint Endpoint  `json:"endpoint"`
	OpenedAt time.Time `json:"opened_at,omitempty"`
}

func (s ConnectionState) Connected() bool {
	return s.Status == StatusConnected
}

type StatusChange struct {
	Channel string      `json:"channel"`
	From    Status      `json:"from"`
	To      Status      `json:"to"`
	Reason  CloseReason `json:"reason"`
	Err     error       `json:"-"`
	At      time.Time   `json:"at"`
}

// Terminal reports whether the change ends a session.
func (c StatusChange) Terminal() bool {
	return c.To == StatusDisconnected
}

// Event is a mirrored copy of an inbound entry, handed to sinks.
type Event struct {
	ID        string            `json:"id"`
	Channel   string            `json:"channel"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp time.Time         `json:"timestamp"`
}

// Route sends the inbound entries of Source to the sink named Target.
type Route struct {
	Source      string      `yaml:"source"`
	Target      string      `yaml:"target"`
	ChannelSize int         `yaml:"channel_size"`
	Filter      RouteFilter `yaml:"filter"`
}

// RouteFilter narrows what a route mirrors. Empty lists match everything.
type RouteFilter struct {
	Kinds        []string `yaml:"kinds"`
	Actions      []string `yaml:"actions"`
	BlockPattern string   `yaml:"block_pattern"`
}

// ExpandChannel substitutes {channel} in a sink topic pattern.
func ExpandChannel(pattern, channel string) string {
	return strings.ReplaceAll(pattern, "{channel}", channel)
}
