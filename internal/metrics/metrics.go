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

// Package metrics exposes channel and mirror counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/evsim/livechannel/pkg/core"
)

type Collector struct {
	registry *prometheus.Registry

	status        *prometheus.GaugeVec
	messages      *prometheus.CounterVec
	parseErrors   *prometheus.CounterVec
	disconnects   *prometheus.CounterVec
	mirrorDropped *prometheus.CounterVec
	mirrorFailed  *prometheus.CounterVec
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		status: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "livechannel_status",
				Help: "Current connection status of a channel (0 disconnected, 1 connecting, 2 connected, 3 closing).",
			},
			[]string{"channel"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livechannel_messages_total",
				Help: "Inbound payloads appended to a channel log.",
			},
			[]string{"channel"},
		),
		parseErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livechannel_parse_errors_total",
				Help: "Inbound payloads that were not valid JSON.",
			},
			[]string{"channel"},
		),
		disconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livechannel_disconnects_total",
				Help: "Sessions that ended, by close reason.",
			},
			[]string{"channel", "reason"},
		),
		mirrorDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livechannel_mirror_dropped_total",
				Help: "Entries dropped because a mirror queue was full.",
			},
			[]string{"source", "target"},
		),
		mirrorFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livechannel_mirror_failures_total",
				Help: "Entries a sink failed to publish.",
			},
			[]string{"source", "target"},
		),
	}
	c.registry.MustRegister(
		c.status,
		c.messages,
		c.parseErrors,
		c.disconnects,
		c.mirrorDropped,
		c.mirrorFailed,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry is what the /metrics handler gathers from.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe feeds the collector from ch until the returned func is called.
func (c *Collector) Observe(ch core.Channel) func() {
	name := ch.Name()
	c.status.WithLabelValues(name).Set(float64(ch.State().Status))

	unsubStatus := ch.SubscribeStatus(func(sc core.StatusChange) {
		c.status.WithLabelValues(name).Set(float64(sc.To))
		if sc.Terminal() {
			c.disconnects.WithLabelValues(name, sc.Reason.String()).Inc()
		}
	})
	unsubEntries := ch.Subscribe(func(e core.Entry) {
		c.messages.WithLabelValues(name).Inc()
		if e.ParseError {
			c.parseErrors.WithLabelValues(name).Inc()
		}
	})
	return func() {
		unsubStatus()
		unsubEntries()
	}
}

func (c *Collector) MirrorDropped(source, target string) {
	c.mirrorDropped.WithLabelValues(source, target).Inc()
}

func (c *Collector) MirrorFailed(source, target string) {
	c.mirrorFailed.WithLabelValues(source, target).Inc()
}
