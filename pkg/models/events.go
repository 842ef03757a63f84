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

package models

import (
	"time"
)

// NATSConfig configures the NATS connection
type NATSConfig struct {
	URL      string          `json:"url"`
	Domain   string          `json:"domain,omitempty"`
	Security *SecurityConfig `json:"security,omitempty"`
}

// Validate ensures the NATS configuration is valid
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return errNATSURLRequired
	}

	return nil
}

// EventsConfig configures the event publishing system
type EventsConfig struct {
	Enabled    bool     `json:"enabled"`
	StreamName string   `json:"stream_name"`
	Subjects   []string `json:"subjects"`
}

// Validate ensures the events configuration is valid and fills in defaults.
func (c *EventsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.StreamName == "" {
		c.StreamName = "devscan"
	}

	if len(c.Subjects) == 0 {
		c.Subjects = []string{"devscan.device.*"}
	}

	return nil
}

// CloudEvent represents a CloudEvents v1.0 compliant event
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// DeviceEventType names a device lifecycle transition.
type DeviceEventType string

const (
	DeviceEventNew     DeviceEventType = "new"
	DeviceEventUpdated DeviceEventType = "updated"
	DeviceEventLost    DeviceEventType = "lost"
)

// DeviceEventData is the payload of a published lifecycle event.
type DeviceEventData struct {
	Event       DeviceEventType `json:"event"`
	Key         string          `json:"key"`
	DeviceUUID  string          `json:"device_uuid"`
	RouterUUID  string          `json:"router_uuid,omitempty"`
	Interface   string          `json:"interface"`
	FamilyType  string          `json:"family_type,omitempty"`
	Name        string          `json:"name,omitempty"`
	Connectable string          `json:"connectable_address,omitempty"`
	Announce    *Announce       `json:"announce,omitempty"`
	Previous    *Announce       `json:"previous,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}
