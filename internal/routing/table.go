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

package routing

import (
	"slices"
	"sync"

	"github.com/evsim/livechannel/pkg/core"
)

// Table maps a channel name to the mirror routes fed by it. A channel may
// fan out to several sinks, one route per target.
type Table struct {
	mu     sync.RWMutex
	routes map[string][]*core.Route
}

func NewTable() *Table {
	return &Table{routes: make(map[string][]*core.Route)}
}

// Add registers route, replacing any existing route with the same source
// and target.
func (t *Table) Add(route *core.Route) {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing := t.routes[route.Source]
	next := make([]*core.Route, 0, len(existing)+1)
	for _, r := range existing {
		if r.Target != route.Target {
			next = append(next, r)
		}
	}
	t.routes[route.Source] = append(next, route)
}

// Lookup returns the routes fed by source. The returned slice is owned by
// the caller.
func (t *Table) Lookup(source string) []*core.Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.routes[source])
}

func (t *Table) ReplaceAll(routes []*core.Route) {
	next := make(map[string][]*core.Route, len(routes))
	for _, r := range routes {
		next[r.Source] = append(next[r.Source], r)
	}
	t.mu.Lock()
	t.routes = next
	t.mu.Unlock()
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, rs := range t.routes {
		n += len(rs)
	}
	return n
}
