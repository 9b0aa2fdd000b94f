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

// Package dashboard serves the HTTP view of the live channels: state,
// recent frames, a server-sent event stream and charging commands.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evsim/livechannel/pkg/charging"
	"github.com/evsim/livechannel/pkg/config"
	"github.com/evsim/livechannel/pkg/core"
)

const (
	defaultMessageLimit = 10
	maxMessageLimit     = 1000
	streamBuffer        = 64
)

// Registry is the lookup surface the dashboard needs from the plugin
// registry.
type Registry interface {
	Channel(name string) (core.Channel, bool)
	Endpoint(name string) (core.Endpoint, bool)
	ChannelNames() []string
	Sinks() map[string]core.Sink
	IsSinkHealthy(name string) bool
}

type Server struct {
	channels Registry
	cfg      config.DashboardConfig
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	server   *http.Server
}

func NewServer(channels Registry, cfg config.DashboardConfig, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		channels: channels,
		cfg:      cfg,
		gatherer: gatherer,
		logger:   logger,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), CorrelationIDMiddleware(s.logger))

	router.GET("/healthz", s.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	router.GET("/channels", s.ListChannels)
	router.GET("/channels/:name", s.GetChannel)
	router.GET("/channels/:name/messages", s.ListMessages)
	router.GET("/channels/:name/stream", s.StreamChannel)
	router.POST("/channels/:name/open", s.OpenChannel)
	router.POST("/channels/:name/close", s.CloseChannel)
	router.POST("/channels/:name/calls", s.SendCall)

	router.POST("/charging/start", s.StartCharging)
	router.POST("/charging/stop", s.StopCharging)
	return router
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("dashboard starting", "port", s.cfg.Port)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Health reports liveness along with the connection state of each mirror
// sink. An unhealthy sink does not fail the check.
func (s *Server) Health(c *gin.Context) {
	sinks := make(map[string]string)
	healthy := true
	for name := range s.channels.Sinks() {
		if s.channels.IsSinkHealthy(name) {
			sinks[name] = "up"
			continue
		}
		sinks[name] = "down"
		healthy = false
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"healthy": healthy,
		"sinks":   sinks,
	})
}

func (s *Server) ListChannels(c *gin.Context) {
	names := s.channels.ChannelNames()
	views := make([]ChannelView, 0, len(names))
	for _, name := range names {
		if ch, ok := s.channels.Channel(name); ok {
			views = append(views, viewOf(ch))
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"count":    len(views),
		"channels": views,
	})
}

func (s *Server) GetChannel(c *gin.Context) {
	ch, ok := s.channel(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"channel": ChannelDetail{
			ChannelView: viewOf(ch),
			Summary:     charging.Summarize(ch.Log()),
		},
	})
}

func (s *Server) ListMessages(c *gin.Context) {
	ch, ok := s.channel(c)
	if !ok {
		return
	}
	limit := defaultMessageLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = min(n, maxMessageLimit)
	}

	messages := make([]EntryView, 0, limit)
	for e := range ch.Log().Recent(limit) {
		messages = append(messages, entryViewOf(e))
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"count":    len(messages),
		"messages": messages,
	})
}

type streamEvent struct {
	name string
	data any
}

// StreamChannel pushes status changes and inbound entries as server-sent
// events. A client that falls behind loses events rather than stalling the
// channel's subscribers.
func (s *Server) StreamChannel(c *gin.Context) {
	ch, ok := s.channel(c)
	if !ok {
		return
	}
	logger := requestLogger(c, s.logger)

	events := make(chan streamEvent, streamBuffer)
	push := func(ev streamEvent) {
		select {
		case events <- ev:
		default:
			logger.Warn("sse client too slow, dropping event", "channel", ch.Name(), "event", ev.name)
		}
	}
	unsubStatus := ch.SubscribeStatus(func(sc core.StatusChange) {
		push(streamEvent{name: "status", data: statusViewOf(sc)})
	})
	defer unsubStatus()
	unsubEntries := ch.Subscribe(func(e core.Entry) {
		push(streamEvent{name: "entry", data: entryViewOf(e)})
	})
	defer unsubEntries()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("state", viewOf(ch))
	c.Writer.Flush()

	logger.Info("sse client connected", "channel", ch.Name())
	defer logger.Info("sse client disconnected", "channel", ch.Name())

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-events:
			c.SSEvent(ev.name, ev.data)
			return true
		}
	})
}

// OpenChannel opens against the configured endpoint unless the body names
// another one.
func (s *Server) OpenChannel(c *gin.Context) {
	ch, ok := s.channel(c)
	if !ok {
		return
	}
	ep, _ := s.channels.Endpoint(ch.Name())

	var req OpenRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
	}
	if req.URL != "" {
		ep = core.Endpoint{URL: req.URL, Subprotocol: req.Subprotocol}
	}
	if ep.URL == "" {
		s.fail(c, http.StatusBadRequest, errors.New("no endpoint configured for channel"))
		return
	}

	if err := ch.Open(c.Request.Context(), ep); err != nil {
		requestLogger(c, s.logger).Warn("channel open failed", "channel", ch.Name(), "error", err)
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "channel": viewOf(ch)})
}

func (s *Server) CloseChannel(c *gin.Context) {
	ch, ok := s.channel(c)
	if !ok {
		return
	}
	if err := ch.Close(c.Request.Context()); err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "channel": viewOf(ch)})
}

func (s *Server) SendCall(c *gin.Context) {
	ch, ok := s.channel(c)
	if !ok {
		return
	}
	var req CallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.ID == "" {
		req.ID = charging.NewCallID()
	}
	s.send(c, ch, core.NewCall(req.ID, req.Action, req.Payload))
}

func (s *Server) StartCharging(c *gin.Context) {
	ch, ok := s.commandChannel(c)
	if !ok {
		return
	}
	req := StartRequest{ConnectorID: s.cfg.ConnectorID, IDTag: s.cfg.IDTag}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
	}
	s.send(c, ch, charging.RemoteStartTransaction(charging.NewCallID(), req.ConnectorID, req.IDTag))
}

func (s *Server) StopCharging(c *gin.Context) {
	ch, ok := s.commandChannel(c)
	if !ok {
		return
	}
	req := StopRequest{TransactionID: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
	}
	s.send(c, ch, charging.RemoteStopTransaction(charging.NewCallID(), req.TransactionID))
}

func (s *Server) send(c *gin.Context, ch core.Channel, msg core.OutboundMessage) {
	if err := ch.Send(c.Request.Context(), msg); err != nil {
		requestLogger(c, s.logger).Warn("send failed", "channel", ch.Name(), "action", msg.Action, "error", err)
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status":  "success",
		"channel": ch.Name(),
		"id":      msg.ID,
		"action":  msg.Action,
	})
}

func (s *Server) channel(c *gin.Context) (core.Channel, bool) {
	return s.lookup(c, c.Param("name"))
}

func (s *Server) commandChannel(c *gin.Context) (core.Channel, bool) {
	return s.lookup(c, s.cfg.CommandChannel)
}

func (s *Server) lookup(c *gin.Context, name string) (core.Channel, bool) {
	ch, ok := s.channels.Channel(name)
	if !ok {
		s.fail(c, http.StatusNotFound, fmt.Errorf("%w: %s", core.ErrChannelNotFound, name))
		return nil, false
	}
	return ch, true
}

func (s *Server) fail(c *gin.Context, code int, err error) {
	c.JSON(code, gin.H{"status": "error", "message": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrAlreadyConnected),
		errors.Is(err, core.ErrNotConnected),
		errors.Is(err, core.ErrOpenCanceled):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrOpenFailed):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrChannelNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func viewOf(ch core.Channel) ChannelView {
	return ChannelView{
		Name:    ch.Name(),
		State:   ch.State(),
		Entries: ch.Log().Len(),
	}
}
