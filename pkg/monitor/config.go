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

package monitor

import (
	"time"

	"github.com/carverauto/devscan/pkg/models"
)

const (
	// Devices announce every 10 seconds; three missed announces mark a device lost.
	defaultLivenessWindow = 30 * time.Second
	defaultSweepInterval  = time.Second
)

// Config controls how long a device stays present without announcing.
//
// A device is reported lost at most LivenessWindow + SweepInterval after its
// last announce.
type Config struct {
	LivenessWindow models.Duration `json:"liveness_window"`
	SweepInterval  models.Duration `json:"sweep_interval"`
	// HonorAnnouncedExpiration uses the expiration a device puts in its
	// announce, when present, instead of LivenessWindow.
	HonorAnnouncedExpiration bool `json:"honor_announced_expiration"`
}

// DefaultConfig returns a 30s liveness window swept every second.
func DefaultConfig() Config {
	return Config{
		LivenessWindow: models.Duration(defaultLivenessWindow),
		SweepInterval:  models.Duration(defaultSweepInterval),
	}
}

// Validate fills zero values with defaults and rejects negative durations.
func (c *Config) Validate() error {
	if c.LivenessWindow == 0 {
		c.LivenessWindow = models.Duration(defaultLivenessWindow)
	}

	if c.SweepInterval == 0 {
		c.SweepInterval = models.Duration(defaultSweepInterval)
	}

	if c.LivenessWindow < 0 {
		return errInvalidWindow
	}

	if c.SweepInterval < 0 {
		return errInvalidSweep
	}

	return nil
}
