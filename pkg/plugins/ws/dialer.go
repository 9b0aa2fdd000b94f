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

package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evsim/livechannel/pkg/core"
)

const writeWait = 10 * time.Second

type Options struct {
	HandshakeTimeout time.Duration
	// PingInterval enables keepalive pings; a peer that stays silent for two
	// intervals ends the session with ReasonTimeout.
	PingInterval time.Duration
	Header       http.Header
}

// Dialer opens client WebSocket sessions with gorilla/websocket.
type Dialer struct {
	opts   Options
	dialer *websocket.Dialer
	logger *slog.Logger
}

func NewDialer(opts Options, logger *slog.Logger) *Dialer {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	return &Dialer{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		logger: logger,
	}
}

func (d *Dialer) Dial(ctx context.Context, ep core.Endpoint) (core.Conn, error) {
	dialer := *d.dialer
	if ep.Subprotocol != "" {
		dialer.Subprotocols = []string{ep.Subprotocol}
	}

	conn, resp, err := dialer.DialContext(ctx, ep.URL, d.opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws dial %s: %w (status %d)", ep.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("ws dial %s: %w", ep.URL, err)
	}

	c := &Conn{
		conn:   conn,
		logger: d.logger,
		done:   make(chan struct{}),
	}
	if d.opts.PingInterval > 0 {
		c.startKeepalive(d.opts.PingInterval)
	}
	d.logger.Info("ws connected", "url", ep.URL, "subprotocol", conn.Subprotocol())
	return c, nil
}

// Conn adapts a gorilla connection to core.Conn. Writes are serialized since
// gorilla allows a single concurrent writer.
type Conn struct {
	conn      *websocket.Conn
	logger    *slog.Logger
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Conn) Subprotocol() string { return c.conn.Subprotocol() }

func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

func (c *Conn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal closure frame and releases the socket.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		werr := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()
		if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			c.logger.Debug("ws close frame failed", "error", werr)
		}
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) startKeepalive(interval time.Duration) {
	wait := 2 * interval
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				c.writeMu.Lock()
				err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
				c.writeMu.Unlock()
				if err != nil {
					c.logger.Debug("ws ping failed", "error", err)
					return
				}
			}
		}
	}()
}

func classify(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		reason := core.ReasonError
		switch ce.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			reason = core.ReasonNormal
		}
		return &core.TransportError{Reason: reason, Code: ce.Code, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &core.TransportError{Reason: core.ReasonTimeout, Err: err}
	}
	return &core.TransportError{Reason: core.ReasonError, Err: err}
}
