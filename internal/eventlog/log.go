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

// Package eventlog keeps a bounded, ordered record of the payloads a channel
// received. Payloads that fail to parse are kept with ParseError set.
package eventlog

import (
	"encoding/json"
	"iter"
	"sync"
	"time"

	"github.com/evsim/livechannel/pkg/core"
)

const DefaultMaxEntries = 1000

type Log struct {
	mu      sync.RWMutex
	buf     []core.Entry
	start   int
	size    int
	nextSeq uint64
	evicted uint64
	now     func() time.Time
}

func New(max int) *Log {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Log{
		buf: make([]core.Entry, max),
		now: time.Now,
	}
}

// SetClock replaces the receive timestamp source.
func (l *Log) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// Append parses raw as JSON and stores it. When the log is full the oldest
// entry is evicted first.
func (l *Log) Append(raw string) core.Entry {
	var parsed any
	err := json.Unmarshal([]byte(raw), &parsed)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSeq++
	entry := core.Entry{
		Seq:        l.nextSeq,
		Raw:        raw,
		ReceivedAt: l.now(),
	}
	if err != nil {
		entry.ParseError = true
		entry.Err = err
	} else {
		entry.Parsed = parsed
	}

	if l.size == len(l.buf) {
		l.buf[l.start] = entry
		l.start = (l.start + 1) % len(l.buf)
		l.evicted++
	} else {
		l.buf[(l.start+l.size)%len(l.buf)] = entry
		l.size++
	}
	return entry
}

// at returns the i-th newest entry; 0 is the newest. Caller holds the lock.
func (l *Log) at(i int) core.Entry {
	return l.buf[(l.start+l.size-1-i)%len(l.buf)]
}

// LatestWhere scans from newest to oldest and returns the first entry the
// predicate accepts.
func (l *Log) LatestWhere(pred func(core.Entry) bool) (core.Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := 0; i < l.size; i++ {
		if e := l.at(i); pred(e) {
			return e, true
		}
	}
	return core.Entry{}, false
}

// Recent yields at most n entries, newest first. Each range over the returned
// sequence takes a fresh snapshot.
func (l *Log) Recent(n int) iter.Seq[core.Entry] {
	return func(yield func(core.Entry) bool) {
		for _, e := range l.snapshot(n) {
			if !yield(e) {
				return
			}
		}
	}
}

func (l *Log) snapshot(n int) []core.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n > l.size {
		n = l.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]core.Entry, n)
	for i := range out {
		out[i] = l.at(i)
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

func (l *Log) Cap() int {
	return len(l.buf)
}

// Evicted counts entries dropped to honour the bound.
func (l *Log) Evicted() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.evicted
}
