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

package dashboard

import (
	"time"

	"github.com/evsim/livechannel/pkg/charging"
	"github.com/evsim/livechannel/pkg/core"
)

type ChannelView struct {
	Name    string               `json:"name"`
	State   core.ConnectionState `json:"state"`
	Entries int                  `json:"entries"`
}

type ChannelDetail struct {
	ChannelView
	Summary charging.Summary `json:"summary"`
}

type EntryView struct {
	Seq        uint64    `json:"seq"`
	Raw        string    `json:"raw"`
	Parsed     any       `json:"parsed,omitempty"`
	ParseError bool      `json:"parse_error"`
	Error      string    `json:"error,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

func entryViewOf(e core.Entry) EntryView {
	v := EntryView{
		Seq:        e.Seq,
		Raw:        e.Raw,
		Parsed:     e.Parsed,
		ParseError: e.ParseError,
		ReceivedAt: e.ReceivedAt,
	}
	if e.Err != nil {
		v.Error = e.Err.Error()
	}
	return v
}

type StatusView struct {
	Channel string           `json:"channel"`
	From    core.Status      `json:"from"`
	To      core.Status      `json:"to"`
	Reason  core.CloseReason `json:"reason"`
	Error   string           `json:"error,omitempty"`
	At      time.Time        `json:"at"`
}

func statusViewOf(sc core.StatusChange) StatusView {
	v := StatusView{
		Channel: sc.Channel,
		From:    sc.From,
		To:      sc.To,
		Reason:  sc.Reason,
		At:      sc.At,
	}
	if sc.Err != nil {
		v.Error = sc.Err.Error()
	}
	return v
}

type OpenRequest struct {
	URL         string `json:"url"`
	Subprotocol string `json:"subprotocol"`
}

type CallRequest struct {
	ID      string `json:"id"`
	Action  string `json:"action" binding:"required"`
	Payload any    `json:"payload"`
}

type StartRequest struct {
	ConnectorID int    `json:"connector_id"`
	IDTag       string `json:"id_tag"`
}

type StopRequest struct {
	TransactionID int `json:"transaction_id"`
}
