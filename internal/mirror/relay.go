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

// Package mirror copies inbound channel entries to external sinks.
package mirror

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evsim/livechannel/internal/routing"
	"github.com/evsim/livechannel/pkg/core"
)

const publishTimeout = 5 * time.Second

// SinkLookup resolves a sink by name.
type SinkLookup func(name string) (core.Sink, bool)

// Recorder counts entries the relay could not deliver.
type Recorder interface {
	MirrorDropped(source, target string)
	MirrorFailed(source, target string)
}

type nopRecorder struct{}

func (nopRecorder) MirrorDropped(string, string) {}
func (nopRecorder) MirrorFailed(string, string)  {}

type worker struct {
	source string
	target string
	queue  chan core.Event
}

// Relay fans inbound entries out to sinks following a routing table. Each
// route gets its own bounded queue and publishing goroutine, so a slow sink
// never stalls the channel or its sibling routes. Entries that do not fit
// in the queue are dropped.
type Relay struct {
	routes   *routing.Table
	sinks    SinkLookup
	recorder Recorder
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	workers map[string]*worker
	unsubs  []func()
	stopped bool
}

func NewRelay(routes *routing.Table, sinks SinkLookup, recorder Recorder, logger *slog.Logger) *Relay {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		routes:   routes,
		sinks:    sinks,
		recorder: recorder,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		workers:  make(map[string]*worker),
	}
}

// Attach starts mirroring the inbound entries of ch.
func (r *Relay) Attach(ch core.Channel) {
	name := ch.Name()
	unsub := ch.Subscribe(func(e core.Entry) {
		r.dispatch(name, e)
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		unsub()
		return
	}
	r.unsubs = append(r.unsubs, unsub)
}

// Stop detaches from every channel and waits for in-flight publishes.
func (r *Relay) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	r.cancel()
	r.wg.Wait()
}

func (r *Relay) dispatch(source string, e core.Entry) {
	routes := r.routes.Lookup(source)
	if len(routes) == 0 {
		return
	}
	evt := eventOf(source, e)
	for _, route := range routes {
		if !allows(route.Filter, evt) {
			continue
		}
		w := r.worker(route)
		if w == nil {
			return
		}
		select {
		case w.queue <- evt:
		default:
			r.recorder.MirrorDropped(route.Source, route.Target)
			r.logger.Warn("mirror queue full, dropping entry",
				"source", route.Source,
				"target", route.Target,
				"seq", e.Seq,
			)
		}
	}
}

// worker returns the publisher for route, starting it on first use. Queue
// capacity is fixed when the worker starts.
func (r *Relay) worker(route *core.Route) *worker {
	key := route.Source + "->" + route.Target
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil
	}
	if w, ok := r.workers[key]; ok {
		return w
	}
	size := route.ChannelSize
	if size <= 0 {
		size = 1
	}
	w := &worker{
		source: route.Source,
		target: route.Target,
		queue:  make(chan core.Event, size),
	}
	r.workers[key] = w
	r.wg.Add(1)
	go r.run(w)
	r.logger.Info("mirror route started",
		"source", route.Source,
		"target", route.Target,
		"channel_size", size,
	)
	return w
}

func (r *Relay) run(w *worker) {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case evt := <-w.queue:
			r.publish(w, evt)
		}
	}
}

func (r *Relay) publish(w *worker, evt core.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.recorder.MirrorFailed(w.source, w.target)
			r.logger.Error("mirror publish panic recovered", "target", w.target, "error", rec)
		}
	}()

	sink, ok := r.sinks(w.target)
	if !ok {
		r.recorder.MirrorFailed(w.source, w.target)
		r.logger.Error("mirror target missing", "source", w.source, "target", w.target, "error", core.ErrSinkNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, publishTimeout)
	defer cancel()
	if err := sink.Publish(ctx, evt); err != nil {
		if r.ctx.Err() != nil {
			return
		}
		r.recorder.MirrorFailed(w.source, w.target)
		r.logger.Error("mirror publish failed",
			"source", w.source,
			"target", w.target,
			"event_id", evt.ID,
			"error", err,
		)
	}
}

func eventOf(source string, e core.Entry) core.Event {
	md := map[string]string{
		"seq": strconv.FormatUint(e.Seq, 10),
	}
	if e.ParseError {
		md["parse_error"] = "true"
	}
	if fr, ok := e.Frame(); ok {
		md["kind"] = fr.Kind.String()
		md["message_id"] = fr.ID
		if fr.Action != "" {
			md["action"] = fr.Action
		}
	}
	return core.Event{
		ID:        uuid.NewString(),
		Channel:   source,
		Payload:   []byte(e.Raw),
		Metadata:  md,
		Timestamp: e.ReceivedAt,
	}
}
