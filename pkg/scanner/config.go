/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package scanner

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/devscan/pkg/filter"
	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
	"github.com/carverauto/devscan/pkg/monitor"
	"github.com/carverauto/devscan/pkg/transport"
)

const (
	defaultWorkers     = 4
	defaultListenAddr  = ":50061"
	defaultStopTimeout = 5 * time.Second
)

var (
	errInvalidWorkers = errors.New("workers must not be negative")
	errNATSRequired   = errors.New("nats configuration is required when events are enabled")
)

// Config is the configuration of the devscan service.
type Config struct {
	Receiver transport.ReceiverConfig `json:"receiver"`
	Filter   FilterConfig             `json:"filter"`
	Monitor  monitor.Config           `json:"monitor"`
	// Workers is the number of goroutines validating and filtering announces.
	Workers int `json:"workers"`
	// LocalInterfaces limits the local addresses used to decide whether a
	// device is reachable. Empty means every interface that is up.
	LocalInterfaces []string `json:"local_interfaces,omitempty"`
	// ListenAddr is the address of the gRPC health endpoint. "-" disables it.
	ListenAddr string `json:"listen_addr"`
	// Security protects the health endpoint. Nil serves plaintext.
	Security *models.SecurityConfig `json:"security,omitempty"`
	// StopTimeout bounds how long shutdown waits for queued device events.
	StopTimeout models.Duration       `json:"stop_timeout"`
	NATS        *models.NATSConfig    `json:"nats,omitempty"`
	Events      *models.EventsConfig  `json:"events,omitempty"`
	Metrics     *logger.MetricsConfig `json:"metrics,omitempty"`
	Logging     *logger.Config        `json:"logging,omitempty"`
}

// FilterConfig selects which announces reach the device monitor. Every
// non-empty list must match; with no lists every announce is accepted.
type FilterConfig struct {
	FamilyTypes  []string `json:"family_types,omitempty"`
	UUIDs        []string `json:"uuids,omitempty"`
	ExcludeUUIDs []string `json:"exclude_uuids,omitempty"`
}

// Validate fills defaults and checks the configuration.
func (c *Config) Validate() error {
	if c.Receiver.Group == "" {
		c.Receiver.Group = transport.DefaultAnnounceGroup
	}

	if c.Workers < 0 {
		return errInvalidWorkers
	}

	if c.Workers == 0 {
		c.Workers = defaultWorkers
	}

	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.StopTimeout <= 0 {
		c.StopTimeout = models.Duration(defaultStopTimeout)
	}

	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	if _, err := c.Filter.Matcher(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	if c.Events != nil && c.Events.Enabled {
		if c.NATS == nil {
			return errNATSRequired
		}

		if err := c.NATS.Validate(); err != nil {
			return fmt.Errorf("nats: %w", err)
		}

		if err := c.Events.Validate(); err != nil {
			return fmt.Errorf("events: %w", err)
		}
	}

	return nil
}

// Matcher combines the configured lists. It returns nil when no list is set.
func (f FilterConfig) Matcher() (filter.Matcher, error) {
	var matchers []filter.Matcher

	if len(f.FamilyTypes) > 0 {
		m, err := filter.NewFamilyTypeMatch(f.FamilyTypes...)
		if err != nil {
			return nil, err
		}

		matchers = append(matchers, m)
	}

	if len(f.UUIDs) > 0 {
		m, err := filter.NewUUIDMatch(f.UUIDs...)
		if err != nil {
			return nil, err
		}

		matchers = append(matchers, m)
	}

	if len(f.ExcludeUUIDs) > 0 {
		m, err := filter.NewUUIDMatch(f.ExcludeUUIDs...)
		if err != nil {
			return nil, err
		}

		excluded, err := filter.Not(m)
		if err != nil {
			return nil, err
		}

		matchers = append(matchers, excluded)
	}

	switch len(matchers) {
	case 0:
		return nil, nil
	case 1:
		return matchers[0], nil
	default:
		return filter.All(matchers...)
	}
}
