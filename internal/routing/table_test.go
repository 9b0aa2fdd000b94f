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
	"sync"
	"testing"

	"github.com/evsim/livechannel/pkg/core"
)

func TestTableAddAndLookup(t *testing.T) {
	table := NewTable()
	table.Add(&core.Route{Source: "status", Target: "kafka-main", ChannelSize: 1})

	got := table.Lookup("status")
	if len(got) != 1 {
		t.Fatalf("expected 1 route, got %d", len(got))
	}
	if got[0].Target != "kafka-main" {
		t.Fatalf("expected target kafka-main, got %s", got[0].Target)
	}
}

func TestTableFanOut(t *testing.T) {
	table := NewTable()
	table.Add(&core.Route{Source: "status", Target: "kafka-main"})
	table.Add(&core.Route{Source: "status", Target: "redis-feed"})
	table.Add(&core.Route{Source: "status", Target: "kafka-main", ChannelSize: 8})

	got := table.Lookup("status")
	if len(got) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(got))
	}
	if got[0].Target != "redis-feed" || got[1].ChannelSize != 8 {
		t.Fatalf("expected replaced kafka route last, got %+v %+v", got[0], got[1])
	}
	if table.Len() != 2 {
		t.Fatalf("expected Len 2, got %d", table.Len())
	}
}

func TestTableLookupMiss(t *testing.T) {
	table := NewTable()
	if got := table.Lookup("nonexistent"); len(got) != 0 {
		t.Fatal("expected no routes")
	}
}

func TestTableLookupReturnsCopy(t *testing.T) {
	table := NewTable()
	table.Add(&core.Route{Source: "status", Target: "a"})

	got := table.Lookup("status")
	got[0] = &core.Route{Source: "status", Target: "mutated"}

	if table.Lookup("status")[0].Target != "a" {
		t.Fatal("caller mutation leaked into table")
	}
}

func TestTableReplaceAll(t *testing.T) {
	table := NewTable()
	table.Add(&core.Route{Source: "old", Target: "old-target"})

	table.ReplaceAll([]*core.Route{
		{Source: "status", Target: "target-a"},
		{Source: "status", Target: "target-b"},
		{Source: "command", Target: "target-a"},
	})

	if len(table.Lookup("old")) != 0 {
		t.Fatal("expected old route to be removed")
	}
	if len(table.Lookup("status")) != 2 {
		t.Fatal("expected two status routes")
	}
	if len(table.Lookup("command")) != 1 {
		t.Fatal("expected one command route")
	}
}

func TestTableConcurrentAccess(t *testing.T) {
	table := NewTable()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			table.Add(&core.Route{Source: "src", Target: "tgt", ChannelSize: n})
			table.Lookup("src")
		}(i)
	}
	wg.Wait()

	if got := table.Lookup("src"); len(got) != 1 {
		t.Fatalf("expected a single route per target, got %d", len(got))
	}
}
