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

package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/evsim/livechannel/internal/eventlog"
	"github.com/evsim/livechannel/internal/logging"
	"github.com/evsim/livechannel/pkg/core"
)

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMaxEntries bounds the event log.
func WithMaxEntries(n int) Option {
	return func(m *Manager) { m.maxEntries = n }
}

func WithFrameLogger(fl *logging.FrameLogger) Option {
	return func(m *Manager) { m.frameLog = fl }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

type session struct {
	id       uint64
	endpoint core.Endpoint
	conn     core.Conn
	cancel   context.CancelFunc
	done     chan struct{}
}

// queued is one pending subscriber notification. Exactly one field is set.
type queued struct {
	status *core.StatusChange
	entry  *core.Entry
}

// Manager owns a single real-time channel: its connection state, its event
// log and the transport handle of the current session.
type Manager struct {
	name       string
	dialer     core.Dialer
	log        *eventlog.Log
	logger     *slog.Logger
	frameLog   *logging.FrameLogger
	now        func() time.Time
	maxEntries int

	mu       sync.Mutex
	state    core.ConnectionState
	current  *session
	sessions uint64
	queue    []queued
	draining bool

	statusSubs subscribers[core.StatusChange]
	entrySubs  subscribers[core.Entry]
}

var _ core.Channel = (*Manager)(nil)

func New(name string, dialer core.Dialer, opts ...Option) *Manager {
	m := &Manager{
		name:   name,
		dialer: dialer,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("channel", name)
	m.log = eventlog.New(m.maxEntries)
	m.log.SetClock(m.now)
	return m
}

func (m *Manager) Name() string { return m.name }

func (m *Manager) Log() core.LogView { return m.log }

func (m *Manager) State() core.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Open dials ep and blocks until the session is Connected, the dial fails or
// Close aborts the handshake. Only a Disconnected channel may be opened.
func (m *Manager) Open(ctx context.Context, ep core.Endpoint) error {
	m.mu.Lock()
	if m.current != nil {
		status := m.state.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: channel=%s status=%s", core.ErrAlreadyConnected, m.name, status)
	}
	m.sessions++
	dialCtx, cancel := context.WithCancel(ctx)
	sess := &session{
		id:       m.sessions,
		endpoint: ep,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	m.current = sess
	m.state.Endpoint = ep
	m.transitionLocked(core.StatusConnecting, core.ReasonNone, nil)
	m.mu.Unlock()
	m.flush()

	// A status subscriber may already have closed the session.
	m.mu.Lock()
	aborted := m.current != sess
	m.mu.Unlock()
	if aborted {
		return fmt.Errorf("%w: channel=%s", core.ErrOpenCanceled, m.name)
	}

	conn, err := m.dialer.Dial(dialCtx, ep)

	m.mu.Lock()
	if m.current != sess || m.state.Status != core.StatusConnecting {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		m.finish(sess, core.ReasonNormal, nil)
		return fmt.Errorf("%w: channel=%s", core.ErrOpenCanceled, m.name)
	}
	if err != nil {
		m.mu.Unlock()
		openErr := &core.OpenFailedError{Endpoint: ep, Err: err}
		m.finish(sess, core.ReasonError, openErr)
		return openErr
	}
	sess.conn = conn
	m.state.OpenedAt = m.now()
	m.transitionLocked(core.StatusConnected, core.ReasonNone, nil)
	m.mu.Unlock()

	go m.readLoop(sess)
	m.flush()
	return nil
}

// Close shuts the current session down and waits for the terminal transition
// or ctx. Calling it on a Disconnected channel, or again while a close is in
// progress, is harmless. Subscribers see the Disconnected change in order,
// but when another goroutine is delivering notifications, or Close is called
// from a subscriber, Close may return before that delivery happens.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sess := m.current
	if sess == nil {
		m.mu.Unlock()
		return nil
	}
	initiator := m.state.Status != core.StatusClosing
	conn := sess.conn
	if initiator {
		m.transitionLocked(core.StatusClosing, core.ReasonNone, nil)
	}
	m.mu.Unlock()

	// The session is finished before any callback runs, so a subscriber that
	// closes again on Closing finds nothing left to wait for.
	if initiator {
		sess.cancel()
		if conn != nil {
			if err := conn.Close(); err != nil {
				m.logger.Debug("transport close error", "error", err)
			}
		}
		// A session still in its handshake ends here too; Open discards any
		// handle the dial returns afterwards.
		m.finish(sess, core.ReasonNormal, nil)
	}
	m.flush()

	select {
	case <-sess.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send writes msg as a call frame. It returns ErrNotConnected unless the
// channel is Connected; no acknowledgement is awaited.
func (m *Manager) Send(ctx context.Context, msg core.OutboundMessage) error {
	if msg.Kind == 0 {
		msg.Kind = core.KindCall
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.state.Status != core.StatusConnected {
		status := m.state.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: channel=%s status=%s", core.ErrNotConnected, m.name, status)
	}
	conn := m.current.conn
	m.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal call %s: %w", msg.ID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := conn.WriteMessage(data); err != nil {
		return fmt.Errorf("send %s on %s: %w", msg.Action, m.name, err)
	}
	if m.frameLog != nil {
		m.frameLog.Outbound(m.name, msg, len(data))
	}
	return nil
}

// Subscribe registers fn for inbound entries. Entries are already in the log
// when fn runs.
func (m *Manager) Subscribe(fn func(core.Entry)) func() {
	return m.entrySubs.add(fn)
}

func (m *Manager) SubscribeStatus(fn func(core.StatusChange)) func() {
	return m.statusSubs.add(fn)
}

func (m *Manager) readLoop(sess *session) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("reader panic recovered", "session", sess.id, "error", r)
			m.finish(sess, core.ReasonError, fmt.Errorf("reader panic: %v", r))
		}
	}()
	for {
		data, err := sess.conn.ReadMessage()
		if err != nil {
			m.finish(sess, core.ReasonOf(err), err)
			return
		}
		if !m.deliver(sess, data) {
			return
		}
	}
}

// deliver appends data to the log and queues it for subscribers. It reports
// false once sess stopped being the live session.
func (m *Manager) deliver(sess *session, data []byte) bool {
	m.mu.Lock()
	if m.current != sess || m.state.Status != core.StatusConnected {
		m.mu.Unlock()
		return false
	}
	entry := m.log.Append(string(data))
	m.queue = append(m.queue, queued{entry: &entry})
	m.mu.Unlock()

	if m.frameLog != nil {
		m.frameLog.Inbound(m.name, entry)
	}
	m.flush()
	return true
}

// finish is the single terminal path of a session. Only the first call for a
// given session has any effect. A close issued locally always reports
// ReasonNormal, whatever the transport said. A connected session passes
// through Closing first; a failed dial goes straight to Disconnected.
func (m *Manager) finish(sess *session, reason core.CloseReason, err error) {
	m.mu.Lock()
	if m.current != sess {
		m.mu.Unlock()
		return
	}
	switch m.state.Status {
	case core.StatusClosing:
		reason, err = core.ReasonNormal, nil
	case core.StatusConnected:
		m.transitionLocked(core.StatusClosing, core.ReasonNone, nil)
	}
	m.current = nil
	m.state.OpenedAt = time.Time{}
	conn := sess.conn
	m.transitionLocked(core.StatusDisconnected, reason, err)
	m.mu.Unlock()

	sess.cancel()
	if conn != nil {
		_ = conn.Close()
	}
	m.flush()
	close(sess.done)
}

func (m *Manager) transitionLocked(to core.Status, reason core.CloseReason, err error) {
	change := core.StatusChange{
		Channel: m.name,
		From:    m.state.Status,
		To:      to,
		Reason:  reason,
		Err:     err,
		At:      m.now(),
	}
	m.state.Status = to
	m.queue = append(m.queue, queued{status: &change})
}

// flush drains the notification queue. Only one goroutine drains at a time,
// so callbacks never overlap; a call made while another drain is running
// (including from inside a callback) leaves its events to that drain.
func (m *Manager) flush() {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	for len(m.queue) > 0 {
		item := m.queue[0]
		m.queue[0] = queued{}
		m.queue = m.queue[1:]
		m.mu.Unlock()
		m.dispatch(item)
		m.mu.Lock()
	}
	m.queue = nil
	m.draining = false
	m.mu.Unlock()
}

func (m *Manager) dispatch(item queued) {
	switch {
	case item.status != nil:
		change := *item.status
		m.logStatus(change)
		for _, fn := range m.statusSubs.snapshot() {
			m.safeCall("status", func() { fn(change) })
		}
	case item.entry != nil:
		entry := *item.entry
		for _, fn := range m.entrySubs.snapshot() {
			m.safeCall("message", func() { fn(entry) })
		}
	}
}

func (m *Manager) safeCall(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("subscriber panic recovered", "subscription", kind, "error", r)
		}
	}()
	fn()
}

func (m *Manager) logStatus(c core.StatusChange) {
	switch {
	case c.Err != nil:
		m.logger.Warn("channel status changed",
			"from", c.From.String(), "to", c.To.String(), "reason", c.Reason.String(), "error", c.Err)
	case c.Terminal():
		m.logger.Info("channel status changed",
			"from", c.From.String(), "to", c.To.String(), "reason", c.Reason.String())
	default:
		m.logger.Info("channel status changed", "from", c.From.String(), "to", c.To.String())
	}
}
