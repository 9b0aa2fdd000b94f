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

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/evsim/livechannel/pkg/core"
)

const (
	DefaultMaxEntries       = 1000
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultMirrorBuffer     = 64
	DefaultDashboardPort    = 8090
)

type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Channels  []ChannelConfig `yaml:"channels"`
	Sinks     []SinkConfig    `yaml:"sinks"`
	Mirrors   []MirrorConfig  `yaml:"mirrors"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

type ChannelConfig struct {
	Name             string        `yaml:"name"`
	URL              string        `yaml:"url"`
	Subprotocol      string        `yaml:"subprotocol"`
	AutoOpen         bool          `yaml:"auto_open"`
	MaxEntries       int           `yaml:"max_entries"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
}

func (c ChannelConfig) Endpoint() core.Endpoint {
	return core.Endpoint{URL: c.URL, Subprotocol: c.Subprotocol}
}

type SinkConfig struct {
	Name   string            `yaml:"name"`
	Type   string            `yaml:"type"`
	Config map[string]string `yaml:"config"`
}

type MirrorConfig struct {
	Source      string           `yaml:"source"`
	Target      string           `yaml:"target"`
	ChannelSize int              `yaml:"channel_size"`
	Filter      core.RouteFilter `yaml:"filter"`
}

type DashboardConfig struct {
	Port           int    `yaml:"port"`
	CommandChannel string `yaml:"command_channel"`
	StatusChannel  string `yaml:"status_channel"`
	ConnectorID    int    `yaml:"connector_id"`
	IDTag          string `yaml:"id_tag"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	for i := range c.Channels {
		ch := &c.Channels[i]
		if ch.MaxEntries <= 0 {
			ch.MaxEntries = DefaultMaxEntries
		}
		if ch.HandshakeTimeout <= 0 {
			ch.HandshakeTimeout = DefaultHandshakeTimeout
		}
	}
	for i := range c.Mirrors {
		if c.Mirrors[i].ChannelSize <= 0 {
			c.Mirrors[i].ChannelSize = DefaultMirrorBuffer
		}
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = DefaultDashboardPort
	}
	if c.Dashboard.ConnectorID == 0 {
		c.Dashboard.ConnectorID = 1
	}
	if c.Dashboard.IDTag == "" {
		c.Dashboard.IDTag = "TEST_TAG"
	}
	if len(c.Channels) > 0 {
		if c.Dashboard.StatusChannel == "" {
			c.Dashboard.StatusChannel = c.Channels[0].Name
		}
		if c.Dashboard.CommandChannel == "" {
			c.Dashboard.CommandChannel = c.Channels[len(c.Channels)-1].Name
		}
	}
}

func (c *Config) Validate() error {
	var errs []error
	channels := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		switch {
		case ch.Name == "":
			errs = append(errs, errors.New("channel with empty name"))
		case channels[ch.Name]:
			errs = append(errs, fmt.Errorf("duplicate channel %q", ch.Name))
		case ch.URL == "":
			errs = append(errs, fmt.Errorf("channel %q: url is required", ch.Name))
		}
		channels[ch.Name] = true
	}

	sinks := make(map[string]bool, len(c.Sinks))
	for _, s := range c.Sinks {
		if s.Name == "" {
			errs = append(errs, errors.New("sink with empty name"))
			continue
		}
		if sinks[s.Name] {
			errs = append(errs, fmt.Errorf("duplicate sink %q", s.Name))
		}
		sinks[s.Name] = true
	}

	for _, m := range c.Mirrors {
		if !channels[m.Source] {
			errs = append(errs, fmt.Errorf("mirror %s->%s: %w", m.Source, m.Target, core.ErrChannelNotFound))
		}
		if !sinks[m.Target] {
			errs = append(errs, fmt.Errorf("mirror %s->%s: %w", m.Source, m.Target, core.ErrSinkNotFound))
		}
	}

	if len(c.Channels) > 0 {
		for _, name := range []string{c.Dashboard.StatusChannel, c.Dashboard.CommandChannel} {
			if !channels[name] {
				errs = append(errs, fmt.Errorf("dashboard channel %q: %w", name, core.ErrChannelNotFound))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (mc MirrorConfig) ToRoute() *core.Route {
	return &core.Route{
		Source:      mc.Source,
		Target:      mc.Target,
		ChannelSize: mc.ChannelSize,
		Filter:      mc.Filter,
	}
}

func (c *Config) Routes() []*core.Route {
	routes := make([]*core.Route, 0, len(c.Mirrors))
	for _, mc := range c.Mirrors {
		routes = append(routes, mc.ToRoute())
	}
	return routes
}
