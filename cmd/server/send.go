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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/evsim/livechannel/internal/channel"
	"github.com/evsim/livechannel/pkg/charging"
	"github.com/evsim/livechannel/pkg/core"
	"github.com/evsim/livechannel/pkg/plugins/ws"
)

type sendOptions struct {
	url         string
	subprotocol string
	action      string
	payload     string
	id          string
	wait        time.Duration
	verbose     bool
}

func newSendCmd() *cobra.Command {
	opts := sendOptions{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Open a channel, send one call and optionally wait for its reply",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSend(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "station WebSocket URL")
	cmd.Flags().StringVar(&opts.subprotocol, "subprotocol", "", "WebSocket subprotocol, e.g. ocpp1.6")
	cmd.Flags().StringVar(&opts.action, "action", "", "call action, e.g. RemoteStartTransaction")
	cmd.Flags().StringVar(&opts.payload, "payload", "{}", "call payload as JSON")
	cmd.Flags().StringVar(&opts.id, "id", "", "call id (default: random UUID)")
	cmd.Flags().DurationVar(&opts.wait, "wait", 0, "wait this long for a reply with the same id")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "log connection and frame details to stderr")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func runSend(ctx context.Context, out io.Writer, opts sendOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var payload any
	if err := json.Unmarshal([]byte(opts.payload), &payload); err != nil {
		return fmt.Errorf("%w: payload is not JSON: %v", core.ErrInvalidMessage, err)
	}
	if opts.id == "" {
		opts.id = charging.NewCallID()
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.verbose {
		logger = newLogger("debug")
	}

	ch := channel.New("cli", ws.NewDialer(ws.Options{}, logger), channel.WithLogger(logger))
	replies := make(chan core.Entry, 1)
	ch.Subscribe(func(e core.Entry) {
		if f, ok := e.Frame(); ok && f.ID == opts.id && f.Kind != core.KindCall {
			select {
			case replies <- e:
			default:
			}
		}
	})

	closed := make(chan core.StatusChange, 1)
	ch.SubscribeStatus(func(sc core.StatusChange) {
		if sc.Terminal() {
			select {
			case closed <- sc:
			default:
			}
		}
	})

	if err := ch.Open(ctx, core.Endpoint{URL: opts.url, Subprotocol: opts.subprotocol}); err != nil {
		return err
	}
	defer ch.Close(context.Background())

	msg := core.NewCall(opts.id, opts.action, payload)
	if err := ch.Send(ctx, msg); err != nil {
		return err
	}
	fmt.Fprintf(out, "sent %s %s\n", opts.action, opts.id)

	if opts.wait <= 0 {
		return nil
	}
	select {
	case e := <-replies:
		fmt.Fprintln(out, e.Raw)
		return nil
	case sc := <-closed:
		select {
		case e := <-replies:
			fmt.Fprintln(out, e.Raw)
			return nil
		default:
		}
		return fmt.Errorf("%w: channel closed (%s)", errNoReply, sc.Reason)
	case <-time.After(opts.wait):
		return fmt.Errorf("%w: id %s within %s", errNoReply, opts.id, opts.wait)
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errNoReply = errors.New("no reply")
