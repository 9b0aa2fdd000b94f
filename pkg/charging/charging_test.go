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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evsim/livechannel/internal/eventlog"
)

func TestRemoteStartTransaction(t *testing.T) {
	data, err := json.Marshal(RemoteStartTransaction("msg-1", 1, "TEST_TAG"))
	require.NoError(t, err)
	assert.JSONEq(t, `[2,"msg-1","RemoteStartTransaction",{"connectorId":1,"idTag":"TEST_TAG"}]`, string(data))
}

func TestRemoteStopTransaction(t *testing.T) {
	data, err := json.Marshal(RemoteStopTransaction("msg-2", 1))
	require.NoError(t, err)
	assert.JSONEq(t, `[2,"msg-2","RemoteStopTransaction",{"transactionId":1}]`, string(data))
}

func TestStatusNotification(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	data, err := json.Marshal(StatusNotification("s-1", 1, "Charging", ts))
	require.NoError(t, err)
	assert.JSONEq(t, `[2,"s-1","StatusNotification",{"connectorId":1,"status":"Charging","timestamp":"2025-01-01T00:00:00Z"}]`, string(data))
}

func TestHeartbeat(t *testing.T) {
	data, err := json.Marshal(Heartbeat("h-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `[2,"h-1","Heartbeat",{}]`, string(data))
}

func TestNewCallIDUnique(t *testing.T) {
	a, b := NewCallID(), NewCallID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
	assert.NoError(t, RemoteStartTransaction(a, 1, "TEST_TAG").Validate())
}

func TestSummarizeEmptyLog(t *testing.T) {
	s := Summarize(eventlog.New(10))
	assert.Equal(t, Summary{
		Status:        Unknown,
		Activity:      Unknown,
		Connectivity:  Unknown,
		LastHeartbeat: NotAvailable,
	}, s)
}

func TestSummarizeUsesLatestEntries(t *testing.T) {
	log := eventlog.New(10)
	log.Append(`{"event":"status_update","status":"Available","activity":"Idle","connectivity":"Online"}`)
	log.Append(`[2,"h1","Heartbeat",{"currentTime":"2025-01-01T00:00:00Z"}]`)
	log.Append(`{"event":"status_update","status":"Charging","activity":"Charging","connectivity":"Online"}`)
	log.Append(`[2,"h2","Heartbeat",{"currentTime":"2025-01-01T00:00:10Z"}]`)
	log.Append(`{not json`)
	log.Append(`{"event":"other","status":"Faulted"}`)

	s := Summarize(log)
	assert.Equal(t, "Charging", s.Status)
	assert.Equal(t, "Charging", s.Activity)
	assert.Equal(t, "Online", s.Connectivity)
	assert.Equal(t, "2025-01-01T00:00:10Z", s.LastHeartbeat)
}

func TestSummarizeNestedBroadcast(t *testing.T) {
	log := eventlog.New(10)
	log.Append(`{"event":"status_update","charger_serial_number":"CHG001","data":{"status":"Preparing","connectivity":true}}`)

	s := Summarize(log)
	assert.Equal(t, "Preparing", s.Status)
	assert.Equal(t, Unknown, s.Activity)
	assert.Equal(t, "true", s.Connectivity)
}

func TestSummarizeHeartbeatWithoutTime(t *testing.T) {
	log := eventlog.New(10)
	log.Append(`[2,"h1","Heartbeat",{}]`)
	log.Append(`[3,"h1",{"currentTime":"2025-01-01T00:00:00Z"}]`)

	assert.Equal(t, NotAvailable, Summarize(log).LastHeartbeat)
}
