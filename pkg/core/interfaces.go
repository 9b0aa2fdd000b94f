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
	"context"
	"iter"
)

// Dialer establishes a transport session to an endpoint. Dial must return
// promptly once ctx is cancelled.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Conn, error)
}

// Conn is one live transport handle. ReadMessage is only ever called from a
// single goroutine; WriteMessage and Close may be called concurrently with it.
// Close must be safe to call more than once.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Sink receives mirrored inbound entries.
type Sink interface {
	Name() string
	Type() string
	Connect(ctx context.Context) error
	Publish(ctx context.Context, evt Event) error
	Disconnect(ctx context.Context) error
}

// Channel is the read and send surface the dashboard and the mirror relay
// depend on.
type Channel interface {
	Name() string
	State() ConnectionState
	Open(ctx context.Context, ep Endpoint) error
	Close(ctx context.Context) error
	Send(ctx context.Context, msg OutboundMessage) error
	Subscribe(fn func(Entry)) (unsubscribe func())
	SubscribeStatus(fn func(StatusChange)) (unsubscribe func())
	Log() LogView
}

// LogView is the read-only side of a channel's event log.
type LogView interface {
	Len() int
	LatestWhere(pred func(Entry) bool) (Entry, bool)
	Recent(n int) iter.Seq[Entry]
}
