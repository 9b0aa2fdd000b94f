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

// Package charging builds the OCPP calls the dashboard sends and reads the
// station summary out of a channel log.
package charging

import (
	"time"

	"github.com/google/uuid"

	"github.com/evsim/livechannel/pkg/core"
)

const (
	ActionRemoteStart        = "RemoteStartTransaction"
	ActionRemoteStop         = "RemoteStopTransaction"
	ActionStatusNotification = "StatusNotification"
	ActionHeartbeat          = "Heartbeat"
)

func NewCallID() string {
	return uuid.NewString()
}

func RemoteStartTransaction(id string, connectorID int, idTag string) core.OutboundMessage {
	return core.NewCall(id, ActionRemoteStart, map[string]any{
		"connectorId": connectorID,
		"idTag":       idTag,
	})
}

func RemoteStopTransaction(id string, transactionID int) core.OutboundMessage {
	return core.NewCall(id, ActionRemoteStop, map[string]any{
		"transactionId": transactionID,
	})
}

func StatusNotification(id string, connectorID int, status string, ts time.Time) core.OutboundMessage {
	return core.NewCall(id, ActionStatusNotification, map[string]any{
		"connectorId": connectorID,
		"status":      status,
		"timestamp":   ts.UTC().Format(time.RFC3339),
	})
}

func Heartbeat(id string) core.OutboundMessage {
	return core.NewCall(id, ActionHeartbeat, map[string]any{})
}
