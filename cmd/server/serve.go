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
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/evsim/livechannel/internal/channel"
	"github.com/evsim/livechannel/internal/logging"
	"github.com/evsim/livechannel/internal/metrics"
	"github.com/evsim/livechannel/internal/mirror"
	"github.com/evsim/livechannel/internal/routing"
	"github.com/evsim/livechannel/pkg/config"
	"github.com/evsim/livechannel/pkg/dashboard"
	"github.com/evsim/livechannel/pkg/plugins"
	"github.com/evsim/livechannel/pkg/plugins/jms"
	"github.com/evsim/livechannel/pkg/plugins/kafka"
	"github.com/evsim/livechannel/pkg/plugins/mqtt"
	"github.com/evsim/livechannel/pkg/plugins/mqtt5"
	"github.com/evsim/livechannel/pkg/plugins/rabbitmq"
	"github.com/evsim/livechannel/pkg/plugins/redis"
	"github.com/evsim/livechannel/pkg/plugins/solace"
	"github.com/evsim/livechannel/pkg/plugins/ws"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the channels, mirrors and dashboard API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = os.Getenv("CONFIG_PATH")
			}
			if configPath == "" {
				configPath = defaultConfigPath
			}
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml (default $CONFIG_PATH or "+defaultConfigPath+")")
	return cmd
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logging.ParseLevel(level)}))
}

func serve(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		newLogger("info").Error("failed to load config", "path", configPath, "error", err)
		return err
	}
	logger := newLogger(cfg.LogLevel)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, logger)
	a.start(ctx)

	watcher := config.NewWatcher(configPath, a.routes, logger.With("component", "config"))
	go watcher.Watch(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.dashboard.Start(ctx)
	}()

	logger.Info("livechannel started", "config", configPath, "channels", len(cfg.Channels), "sinks", len(cfg.Sinks))

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil {
			logger.Error("dashboard failed", "error", err)
		}
	}

	logger.Info("shutting down livechannel")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	a.shutdown(shutdownCtx)

	logger.Info("livechannel stopped")
	return err
}

// app wires the configured channels, sinks and mirrors together.
type app struct {
	logger    *slog.Logger
	registry  *plugins.Registry
	routes    *routing.Table
	relay     *mirror.Relay
	collector *metrics.Collector
	dashboard *dashboard.Server
	unobserve []func()
}

func newApp(cfg *config.Config, logger *slog.Logger) *app {
	a := &app{
		logger:    logger,
		registry:  plugins.NewRegistry(logger.With("component", "registry")),
		routes:    routing.NewTable(),
		collector: metrics.New(),
	}

	frameLog := logging.NewFrameLogger(logger.With("component", "frame"))
	for _, cc := range cfg.Channels {
		dialer := ws.NewDialer(ws.Options{
			HandshakeTimeout: cc.HandshakeTimeout,
			PingInterval:     cc.PingInterval,
		}, logger.With("component", "ws", "channel", cc.Name))
		ch := channel.New(cc.Name, dialer,
			channel.WithLogger(logger.With("component", "channel")),
			channel.WithMaxEntries(cc.MaxEntries),
			channel.WithFrameLogger(frameLog),
		)
		a.registry.RegisterChannel(ch, cc.Endpoint(), cc.AutoOpen)
		a.unobserve = append(a.unobserve, a.collector.Observe(ch))
	}

	registerSinks(cfg, a.registry, logger.With("component", "sink"))

	for _, route := range cfg.Routes() {
		a.routes.Add(route)
	}
	a.relay = mirror.NewRelay(a.routes, a.registry.Sink, a.collector, logger.With("component", "mirror"))
	for _, name := range a.registry.ChannelNames() {
		ch, _ := a.registry.Channel(name)
		a.relay.Attach(ch)
	}

	a.dashboard = dashboard.NewServer(a.registry, cfg.Dashboard, a.collector.Registry(), logger.With("component", "dashboard"))
	return a
}

// start connects sinks, then opens auto_open channels in the background so
// an unreachable station does not hold up the dashboard.
func (a *app) start(ctx context.Context) {
	connected := a.registry.ConnectSinks(ctx)
	a.logger.Info("sinks connected", "connected", connected, "total", len(a.registry.Sinks()))

	go func() {
		opened := a.registry.OpenChannels(ctx)
		a.logger.Info("auto_open channels resolved", "connected", opened)
	}()
}

func (a *app) shutdown(ctx context.Context) {
	a.registry.StopAll(ctx)
	a.relay.Stop()
	for _, fn := range a.unobserve {
		fn()
	}
}

func registerSinks(cfg *config.Config, reg *plugins.Registry, logger *slog.Logger) {
	for _, s := range cfg.Sinks {
		c := s.Config
		switch s.Type {
		case "kafka":
			reg.RegisterSink(kafka.New(s.Name, splitList(c["brokers"]), c["topic"], logger))
		case "rabbitmq":
			reg.RegisterSink(rabbitmq.New(s.Name, c["url"], c["queue"], logger))
		case "mqtt5":
			reg.RegisterSink(mqtt5.New(s.Name, c["broker"], c["topic"], qosOf(c["qos"], logger), logger))
		case "mqtt":
			reg.RegisterSink(mqtt.New(s.Name, c["broker"], c["topic"], c["client_id"], qosOf(c["qos"], logger), logger))
		case "jms":
			reg.RegisterSink(jms.New(s.Name, c["url"], c["queue"], logger))
		case "solace":
			reg.RegisterSink(solace.New(s.Name, c["host"], c["vpn"], c["username"], c["password"], c["topic"], logger))
		case "redis":
			db, _ := strconv.Atoi(c["db"])
			reg.RegisterSink(redis.New(s.Name, &goredis.Options{
				Addr:     c["addr"],
				Password: c["password"],
				DB:       db,
			}, c["channel"], logger))
		default:
			logger.Warn("unknown sink type", "name", s.Name, "type", s.Type)
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func qosOf(s string, logger *slog.Logger) byte {
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 2 {
		logger.Warn("invalid qos, using 1", "qos", s)
		return 1
	}
	return byte(n)
}
