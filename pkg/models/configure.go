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
	"fmt"
	"net/netip"
)

// DefaultConfigureTTL limits configure requests to the local network segment.
const DefaultConfigureTTL = 1

// ConfigurationRequest is a complete configure request frame.
type ConfigurationRequest struct {
	JSONRPC string           `json:"jsonrpc"`
	Method  string           `json:"method"`
	ID      string           `json:"id"`
	Params  *ConfigureParams `json:"params"`
}

// ConfigureParams holds everything needed to reconfigure one device.
type ConfigureParams struct {
	Device      *ConfigureDevice      `json:"device"`
	NetSettings *ConfigureNetSettings `json:"netSettings"`
	// TTL limits how far the multicast request travels across routers.
	TTL int `json:"ttl"`
}

// ConfigureDevice selects the device to configure.
type ConfigureDevice struct {
	UUID string `json:"uuid"`
}

// ConfigureNetSettings holds the new network settings of the device.
type ConfigureNetSettings struct {
	Interface      *ConfigureInterface      `json:"interface"`
	DefaultGateway *ConfigureDefaultGateway `json:"defaultGateway,omitempty"`
}

// ConfigureInterface holds the new settings of a single interface.
type ConfigureInterface struct {
	Name                string       `json:"name"`
	ConfigurationMethod ConfigMethod `json:"configurationMethod"`
	IPv4                *ManualIPv4  `json:"ipv4,omitempty"`
}

// ManualIPv4 is the static address used with ConfigMethodManual.
type ManualIPv4 struct {
	ManualAddress string `json:"manualAddress"`
	ManualNetmask string `json:"manualNetmask"`
}

// ConfigureDefaultGateway changes the default gateway of the device.
type ConfigureDefaultGateway struct {
	IPv4Address string `json:"ipv4Address,omitempty"`
}

// NewConfigurationRequest builds a configure request for the given query id.
func NewConfigurationRequest(params *ConfigureParams, queryID string) (*ConfigurationRequest, error) {
	if params == nil || params.Device == nil || params.NetSettings == nil {
		return nil, fmt.Errorf("%w: params", ErrInvalidConfiguration)
	}

	if queryID == "" {
		return nil, ErrEmptyQueryID
	}

	return &ConfigurationRequest{
		JSONRPC: JSONRPCVersion,
		Method:  MethodConfigure,
		ID:      queryID,
		Params:  params,
	}, nil
}

// NewConfigureParams builds configure parameters with the default TTL.
func NewConfigureParams(device *ConfigureDevice, netSettings *ConfigureNetSettings) (*ConfigureParams, error) {
	return NewConfigureParamsWithTTL(device, netSettings, DefaultConfigureTTL)
}

// NewConfigureParamsWithTTL builds configure parameters. ttl must be at least 1.
func NewConfigureParamsWithTTL(device *ConfigureDevice, netSettings *ConfigureNetSettings, ttl int) (*ConfigureParams, error) {
	if device == nil {
		return nil, fmt.Errorf("%w: device", ErrInvalidConfiguration)
	}

	if netSettings == nil {
		return nil, fmt.Errorf("%w: netSettings", ErrInvalidConfiguration)
	}

	if ttl < 1 {
		return nil, ErrInvalidTTL
	}

	return &ConfigureParams{
		Device:      device,
		NetSettings: netSettings,
		TTL:         ttl,
	}, nil
}

// NewConfigureDevice selects a device by UUID.
func NewConfigureDevice(uuid string) (*ConfigureDevice, error) {
	if uuid == "" {
		return nil, fmt.Errorf("%w: device uuid", ErrInvalidConfiguration)
	}

	return &ConfigureDevice{UUID: uuid}, nil
}

// NewConfigureNetSettings wraps the interface settings and an optional new default gateway.
func NewConfigureNetSettings(iface *ConfigureInterface, gateway *ConfigureDefaultGateway) (*ConfigureNetSettings, error) {
	if iface == nil {
		return nil, fmt.Errorf("%w: interface", ErrInvalidConfiguration)
	}

	if gateway != nil && gateway.IPv4Address != "" {
		if _, err := parseIPv4(gateway.IPv4Address); err != nil {
			return nil, fmt.Errorf("%w: default gateway: %w", ErrInvalidConfiguration, err)
		}
	}

	return &ConfigureNetSettings{
		Interface:      iface,
		DefaultGateway: gateway,
	}, nil
}

// NewConfigureInterface validates the settings of a single interface. A manual
// configuration requires a static IPv4 address and netmask.
func NewConfigureInterface(name string, method ConfigMethod, ipv4 *ManualIPv4) (*ConfigureInterface, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: interface name", ErrInvalidConfiguration)
	}

	switch method {
	case ConfigMethodDHCP, ConfigMethodRouterSolicitation:
	case ConfigMethodManual:
		if ipv4 == nil {
			return nil, ErrManualWithoutIPv4
		}

		if err := ipv4.Validate(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedConfigMethod, method)
	}

	return &ConfigureInterface{
		Name:                name,
		ConfigurationMethod: method,
		IPv4:                ipv4,
	}, nil
}

// Validate checks that address and netmask are IPv4 dotted quads.
func (m *ManualIPv4) Validate() error {
	if _, err := parseIPv4(m.ManualAddress); err != nil {
		return fmt.Errorf("%w: manual address: %w", ErrInvalidConfiguration, err)
	}

	if _, err := parseIPv4(m.ManualNetmask); err != nil {
		return fmt.Errorf("%w: manual netmask: %w", ErrInvalidConfiguration, err)
	}

	return nil
}

func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}

	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %s", errNotIPv4, s)
	}

	return addr, nil
}
