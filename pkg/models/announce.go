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
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// JSONRPCVersion is the protocol version carried in every frame.
	JSONRPCVersion = "2.0"

	// MethodAnnounce is the method name of device announce notifications.
	MethodAnnounce = "announce"
	// MethodConfigure is the method name of configuration requests.
	MethodConfigure = "configure"
)

// ConfigMethod describes how a device interface obtained its addresses.
type ConfigMethod string

const (
	ConfigMethodDHCP               ConfigMethod = "dhcp"
	ConfigMethodManual             ConfigMethod = "manual"
	ConfigMethodRouterSolicitation ConfigMethod = "routerSolicitation"
	ConfigMethodUnknown            ConfigMethod = "unknown"
)

// UnmarshalJSON maps any method string this client does not know to ConfigMethodUnknown.
func (m *ConfigMethod) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid configuration method: %w", err)
	}

	*m = ParseConfigMethod(s)

	return nil
}

// ParseConfigMethod converts a wire string into a ConfigMethod.
func ParseConfigMethod(s string) ConfigMethod {
	switch ConfigMethod(s) {
	case ConfigMethodDHCP, ConfigMethodManual, ConfigMethodRouterSolicitation:
		return ConfigMethod(s)
	default:
		return ConfigMethodUnknown
	}
}

// Announce is a device announce notification as sent on the multicast group.
//
// Optional protocol fields are pointers (or nil-able slices) so that a field the
// device did not announce can be told apart from one announced as empty.
type Announce struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  AnnounceParams `json:"params"`
}

// AnnounceParams holds everything a device says about itself.
type AnnounceParams struct {
	APIVersion  *string         `json:"apiVersion,omitempty"`
	Device      AnnouncedDevice `json:"device"`
	Router      *Router         `json:"router,omitempty"`
	NetSettings NetSettings     `json:"netSettings"`
	Services    []ServiceEntry  `json:"services"`
	// Expiration is the number of seconds the announce is valid for.
	Expiration *int `json:"expiration,omitempty"`
}

// AnnouncedDevice identifies the announcing device. UUID is the only required field.
type AnnouncedDevice struct {
	UUID            string  `json:"uuid"`
	Name            *string `json:"name,omitempty"`
	FamilyType      *string `json:"familyType,omitempty"`
	Type            *string `json:"type,omitempty"`
	Label           *string `json:"label,omitempty"`
	FirmwareVersion *string `json:"firmwareVersion,omitempty"`
	HardwareID      *string `json:"hardwareId,omitempty"`
	IsRouter        *bool   `json:"isRouter,omitempty"`
}

// Router is present when the announce was forwarded by a router device.
type Router struct {
	UUID string `json:"uuid"`
}

// NetSettings carries the network configuration of the announcing interface.
type NetSettings struct {
	Interface      Interface       `json:"interface"`
	DefaultGateway *DefaultGateway `json:"defaultGateway,omitempty"`
}

// Interface describes a single network interface of the device.
type Interface struct {
	Name                string        `json:"name"`
	Type                *string       `json:"type,omitempty"`
	Description         *string       `json:"description,omitempty"`
	ConfigurationMethod *ConfigMethod `json:"configurationMethod,omitempty"`
	IPv4                []IPv4Entry   `json:"ipv4"`
	IPv6                []IPv6Entry   `json:"ipv6"`
}

// IPv4Entry is an announced IPv4 address with its dotted-quad netmask.
type IPv4Entry struct {
	Address string `json:"address"`
	Netmask string `json:"netmask"`
}

func (e IPv4Entry) String() string {
	return e.Address + "/" + e.Netmask
}

// IPv6Entry is an announced IPv6 address with its prefix length.
type IPv6Entry struct {
	Address string `json:"address"`
	Prefix  int    `json:"prefix"`
}

func (e IPv6Entry) String() string {
	return fmt.Sprintf("%s/%d", e.Address, e.Prefix)
}

// DefaultGateway is the single default gateway configured on a device.
type DefaultGateway struct {
	IPv4Address *string `json:"ipv4Address,omitempty"`
	IPv6Address *string `json:"ipv6Address,omitempty"`
}

// ServiceEntry is a service the device offers, e.g. its data acquisition port.
type ServiceEntry struct {
	Type string `json:"type"`
	Port int    `json:"port"`
}

func (s ServiceEntry) String() string {
	return fmt.Sprintf("%s:%d", s.Type, s.Port)
}

// FamilyType returns the announced family type and whether it was announced at all.
func (a *Announce) FamilyType() (string, bool) {
	if a == nil || a.Params.Device.FamilyType == nil {
		return "", false
	}

	return *a.Params.Device.FamilyType, true
}

// RouterUUID returns the UUID of the forwarding router, if any.
func (a *Announce) RouterUUID() (string, bool) {
	if a == nil || a.Params.Router == nil {
		return "", false
	}

	return a.Params.Router.UUID, true
}

func (a *Announce) String() string {
	if a == nil {
		return "<nil>"
	}

	var sb strings.Builder

	sb.WriteString("device ")
	sb.WriteString(a.Params.Device.UUID)

	if family, ok := a.FamilyType(); ok {
		sb.WriteString(" (")
		sb.WriteString(family)
		sb.WriteString(")")
	}

	sb.WriteString(" on ")
	sb.WriteString(a.Params.NetSettings.Interface.Name)

	if router, ok := a.RouterUUID(); ok {
		sb.WriteString(" via router ")
		sb.WriteString(router)
	}

	return sb.String()
}
