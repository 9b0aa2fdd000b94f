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

package mirror

import (
	"slices"
	"strings"

	"github.com/evsim/livechannel/pkg/core"
)

// allows reports whether evt passes the route filter. Kinds and actions
// compare case-insensitively against the event metadata; entries that did
// not parse as frames only pass an empty kind and action list.
func allows(f core.RouteFilter, evt core.Event) bool {
	if f.BlockPattern != "" && strings.Contains(string(evt.Payload), f.BlockPattern) {
		return false
	}
	if len(f.Kinds) > 0 && !containsFold(f.Kinds, evt.Metadata["kind"]) {
		return false
	}
	if len(f.Actions) > 0 && !containsFold(f.Actions, evt.Metadata["action"]) {
		return false
	}
	return true
}

func containsFold(list []string, v string) bool {
	if v == "" {
		return false
	}
	return slices.ContainsFunc(list, func(s string) bool { return strings.EqualFold(s, v) })
}
