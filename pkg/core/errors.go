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
	"errors"
	"fmt"
)

var (
	ErrAlreadyConnected = errors.New("channel already connected")
	ErrNotConnected     = errors.New("channel not connected")
	ErrOpenFailed       = errors.New("channel open failed")
	ErrOpenCanceled     = errors.New("channel open canceled by close")
	ErrInvalidMessage   = errors.New("invalid outbound message")
	ErrChannelNotFound  = errors.New("channel not found")
	ErrSinkNotFound     = errors.New("sink not found")
	ErrSinkNotConnected = errors.New("sink not connected")
	ErrSinkConfig       = errors.New("invalid sink config")
)

// OpenFailedError is returned by Open and carried on the status change when
// the transport could not be established. The caller may retry.
type OpenFailedError struct {
	Endpoint Endpoint
	Err      error
}

func (e *OpenFailedError) Error() string {
	return fmt.Sprintf("%v: url=%s: %v", ErrOpenFailed, e.Endpoint.URL, e.Err)
}

func (e *OpenFailedError) Unwrap() []error {
	return []error{ErrOpenFailed, e.Err}
}

// TransportError is returned by Conn.ReadMessage when the session ends. Reason
// classifies the end for the terminal status change.
type TransportError struct {
	Reason CloseReason
	Code   int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("transport closed (%s, code %d): %v", e.Reason, e.Code, e.Err)
	}
	return fmt.Sprintf("transport closed (%s): %v", e.Reason, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ReasonOf classifies an error returned by a transport. Errors that are not a
// *TransportError count as ReasonError.
func ReasonOf(err error) CloseReason {
	if err == nil {
		return ReasonNormal
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Reason
	}
	return ReasonError
}
