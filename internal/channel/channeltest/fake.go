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

// Package channeltest provides an in-memory transport for exercising channels
// without a network.
package channeltest

import (
	"context"
	"errors"
	"sync"

	"github.com/evsim/livechannel/pkg/core"
)

var errConnClosed = errors.New("connection closed")

// Conn is an in-memory core.Conn. Push feeds inbound frames; Drop ends the
// session from the remote side.
type Conn struct {
	inbox     chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written [][]byte
	dropErr error
	closes  int
}

func NewConn() *Conn {
	return &Conn{
		inbox:  make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (c *Conn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbox:
		return data, nil
	case <-c.closed:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.dropErr != nil {
			return nil, c.dropErr
		}
		return nil, &core.TransportError{Reason: core.ReasonNormal, Err: errConnClosed}
	}
}

func (c *Conn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Push queues an inbound frame.
func (c *Conn) Push(data string) {
	c.inbox <- []byte(data)
}

// Drop closes the connection as if the remote side went away with err.
func (c *Conn) Drop(err error) {
	c.mu.Lock()
	c.dropErr = err
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *Conn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}

func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Dialer hands out Conns. With a Gate set, Dial waits for the gate before
// returning; IgnoreCancel makes it keep waiting even after ctx is cancelled.
type Dialer struct {
	Err          error
	Gate         chan struct{}
	IgnoreCancel bool

	mu      sync.Mutex
	conns   []*Conn
	dialing chan struct{}
	dialed  []core.Endpoint
}

func (d *Dialer) Dial(ctx context.Context, ep core.Endpoint) (core.Conn, error) {
	d.mu.Lock()
	d.dialed = append(d.dialed, ep)
	if d.dialing != nil {
		close(d.dialing)
		d.dialing = nil
	}
	d.mu.Unlock()

	if d.Gate != nil {
		if d.IgnoreCancel {
			<-d.Gate
		} else {
			select {
			case <-d.Gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if d.Err != nil {
		return nil, d.Err
	}
	conn := NewConn()
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

// Dialing returns a channel closed when the next Dial call starts.
func (d *Dialer) Dialing() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan struct{})
	d.dialing = ch
	return ch
}

// Last returns the most recently dialled connection.
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *Dialer) Endpoints() []core.Endpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]core.Endpoint(nil), d.dialed...)
}
