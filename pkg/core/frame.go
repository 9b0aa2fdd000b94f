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

package core

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// MessageKind is the leading type marker of an OCPP-J style frame.
type MessageKind int

const (
	KindCall       MessageKind = 2
	KindCallResult MessageKind = 3
	KindCallError  MessageKind = 4
)

func (k MessageKind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindCallResult:
		return "call_result"
	case KindCallError:
		return "call_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// OutboundMessage is a call the caller wants sent. ID is a caller-supplied
// correlation token and must be unique among the channel's in-flight calls.
type OutboundMessage struct {
	Kind    MessageKind
	ID      string
	Action  string
	Payload any
}

func NewCall(id, action string, payload any) OutboundMessage {
	return OutboundMessage{Kind: KindCall, ID: id, Action: action, Payload: payload}
}

func (m OutboundMessage) Validate() error {
	if m.Kind != KindCall {
		return fmt.Errorf("%w: kind=%s", ErrInvalidMessage, m.Kind)
	}
	if m.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidMessage)
	}
	if m.Action == "" {
		return fmt.Errorf("%w: empty action", ErrInvalidMessage)
	}
	return nil
}

// MarshalJSON writes the call as [2, id, action, payload]. A nil payload is
// written as an empty object.
func (m OutboundMessage) MarshalJSON() ([]byte, error) {
	payload := m.Payload
	if payload == nil {
		payload = struct{}{}
	}
	return json.Marshal([]any{int(m.Kind), m.ID, m.Action, payload})
}

// ParseCall decodes a [2, id, action, payload] frame. Payload is decoded into
// generic JSON values.
func ParseCall(data []byte) (OutboundMessage, error) {
	f, err := ParseFrame(data)
	if err != nil {
		return OutboundMessage{}, err
	}
	if f.Kind != KindCall {
		return OutboundMessage{}, fmt.Errorf("%w: kind=%s", ErrInvalidMessage, f.Kind)
	}
	return OutboundMessage{Kind: f.Kind, ID: f.ID, Action: f.Action, Payload: f.Payload}, nil
}

// Frame is an inbound array interpreted as an OCPP-J frame. CALLRESULT frames
// have no action; CALLERROR frames carry their error code in Action.
type Frame struct {
	Kind    MessageKind
	ID      string
	Action  string
	Payload any
}

func ParseFrame(data []byte) (Frame, error) {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	f, ok := frameOf(parsed)
	if !ok {
		return Frame{}, fmt.Errorf("%w: not a call frame", ErrInvalidMessage)
	}
	return f, nil
}

func frameOf(v any) (Frame, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) < 3 {
		return Frame{}, false
	}
	kind, ok := arr[0].(float64)
	if !ok || kind != math.Trunc(kind) {
		return Frame{}, false
	}
	id, ok := arr[1].(string)
	if !ok {
		return Frame{}, false
	}
	f := Frame{Kind: MessageKind(kind), ID: id}
	switch f.Kind {
	case KindCall:
		if len(arr) < 4 {
			return Frame{}, false
		}
		if f.Action, ok = arr[2].(string); !ok {
			return Frame{}, false
		}
		f.Payload = arr[3]
	case KindCallResult:
		f.Payload = arr[2]
	case KindCallError:
		f.Action, _ = arr[2].(string)
		if len(arr) > 4 {
			f.Payload = arr[4]
		}
	default:
		return Frame{}, false
	}
	return f, true
}

// Entry is one inbound payload as stored in the event log.
type Entry struct {
	Seq        uint64    `json:"seq"`
	Raw        string    `json:"raw"`
	Parsed     any       `json:"parsed,omitempty"`
	ParseError bool      `json:"parse_error"`
	Err        error     `json:"-"`
	ReceivedAt time.Time `json:"received_at"`
}

// Frame interprets the parsed value as an OCPP-J frame.
func (e Entry) Frame() (Frame, bool) {
	if e.ParseError {
		return Frame{}, false
	}
	return frameOf(e.Parsed)
}

// Field returns a top-level key of an object payload.
func (e Entry) Field(key string) (any, bool) {
	obj, ok := e.Parsed.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[key]
	return v, ok
}
