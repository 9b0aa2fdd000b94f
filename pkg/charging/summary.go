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

package charging

import (
	"fmt"

	"github.com/evsim/livechannel/pkg/core"
)

const (
	EventStatusUpdate = "status_update"

	Unknown      = "Unknown"
	NotAvailable = "N/A"
)

// Summary is the station view shown next to a channel.
type Summary struct {
	Status        string `json:"status"`
	Activity      string `json:"activity"`
	Connectivity  string `json:"connectivity"`
	LastHeartbeat string `json:"last_heartbeat"`
}

// Summarize reads the newest status_update object and the newest Heartbeat
// frame from log. Status broadcasts may carry their fields at the top level
// or nested under "data".
func Summarize(log core.LogView) Summary {
	s := Summary{
		Status:        Unknown,
		Activity:      Unknown,
		Connectivity:  Unknown,
		LastHeartbeat: NotAvailable,
	}

	if e, ok := log.LatestWhere(IsStatusUpdate); ok {
		obj, _ := e.Parsed.(map[string]any)
		nested, _ := obj["data"].(map[string]any)
		s.Status = pick(obj, nested, "status", Unknown)
		s.Activity = pick(obj, nested, "activity", Unknown)
		s.Connectivity = pick(obj, nested, "connectivity", Unknown)
	}

	if e, ok := log.LatestWhere(IsHeartbeat); ok {
		f, _ := e.Frame()
		if payload, ok := f.Payload.(map[string]any); ok {
			s.LastHeartbeat = text(payload["currentTime"], NotAvailable)
		}
	}
	return s
}

func IsStatusUpdate(e core.Entry) bool {
	v, ok := e.Field("event")
	return ok && v == EventStatusUpdate
}

func IsHeartbeat(e core.Entry) bool {
	f, ok := e.Frame()
	return ok && f.Kind == core.KindCall && f.Action == ActionHeartbeat
}

func pick(top, nested map[string]any, key, fallback string) string {
	if v, ok := top[key]; ok {
		return text(v, fallback)
	}
	if v, ok := nested[key]; ok {
		return text(v, fallback)
	}
	return fallback
}

// text renders a JSON scalar; empty strings and null count as missing.
func text(v any, fallback string) string {
	switch t := v.(type) {
	case nil:
		return fallback
	case string:
		if t == "" {
			return fallback
		}
		return t
	case bool, float64:
		return fmt.Sprint(t)
	default:
		return fallback
	}
}
