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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams(t *testing.T) *ConfigureParams {
	t.Helper()

	device, err := NewConfigureDevice("0009E5001571")
	require.NoError(t, err)

	iface, err := NewConfigureInterface("eth0", ConfigMethodDHCP, nil)
	require.NoError(t, err)

	settings, err := NewConfigureNetSettings(iface, nil)
	require.NoError(t, err)

	params, err := NewConfigureParams(device, settings)
	require.NoError(t, err)

	return params
}

func TestConfigurationRequestValidation(t *testing.T) {
	t.Parallel()

	device, err := NewConfigureDevice("0009E5001571")
	require.NoError(t, err)

	iface, err := NewConfigureInterface("eth0", ConfigMethodDHCP, nil)
	require.NoError(t, err)

	settings, err := NewConfigureNetSettings(iface, nil)
	require.NoError(t, err)

	params := validParams(t)

	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{
			name: "nil params",
			fn:   func() error { _, err := NewConfigurationRequest(nil, "1234"); return err },
			want: ErrInvalidConfiguration,
		},
		{
			name: "empty query id",
			fn:   func() error { _, err := NewConfigurationRequest(params, ""); return err },
			want: ErrEmptyQueryID,
		},
		{
			name: "nil device",
			fn:   func() error { _, err := NewConfigureParams(nil, settings); return err },
			want: ErrInvalidConfiguration,
		},
		{
			name: "empty device uuid",
			fn:   func() error { _, err := NewConfigureDevice(""); return err },
			want: ErrInvalidConfiguration,
		},
		{
			name: "nil net settings",
			fn:   func() error { _, err := NewConfigureParams(device, nil); return err },
			want: ErrInvalidConfiguration,
		},
		{
			name: "nil interface",
			fn:   func() error { _, err := NewConfigureNetSettings(nil, nil); return err },
			want: ErrInvalidConfiguration,
		},
		{
			name: "empty interface name",
			fn:   func() error { _, err := NewConfigureInterface("", ConfigMethodDHCP, nil); return err },
			want: ErrInvalidConfiguration,
		},
		{
			name: "manual without ipv4",
			fn:   func() error { _, err := NewConfigureInterface("eth0", ConfigMethodManual, nil); return err },
			want: ErrManualWithoutIPv4,
		},
		{
			name: "manual with bad netmask",
			fn: func() error {
				_, err := NewConfigureInterface("eth0", ConfigMethodManual,
					&ManualIPv4{ManualAddress: "10.0.0.9", ManualNetmask: "ffff::"})
				return err
			},
			want: ErrInvalidConfiguration,
		},
		{
			name: "unknown method",
			fn:   func() error { _, err := NewConfigureInterface("eth0", ConfigMethodUnknown, nil); return err },
			want: ErrUnsupportedConfigMethod,
		},
		{
			name: "zero ttl",
			fn:   func() error { _, err := NewConfigureParamsWithTTL(device, settings, 0); return err },
			want: ErrInvalidTTL,
		},
		{
			name: "bad gateway",
			fn: func() error {
				_, err := NewConfigureNetSettings(iface, &ConfigureDefaultGateway{IPv4Address: "gateway"})
				return err
			},
			want: ErrInvalidConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.fn(), tt.want)
		})
	}
}

func TestConfigurationRequestJSON(t *testing.T) {
	t.Parallel()

	device, err := NewConfigureDevice("0009E5001571")
	require.NoError(t, err)

	iface, err := NewConfigureInterface("eth0", ConfigMethodManual,
		&ManualIPv4{ManualAddress: "172.19.1.2", ManualNetmask: "255.255.0.0"})
	require.NoError(t, err)

	settings, err := NewConfigureNetSettings(iface, &ConfigureDefaultGateway{IPv4Address: "172.19.0.1"})
	require.NoError(t, err)

	params, err := NewConfigureParamsWithTTL(device, settings, 2)
	require.NoError(t, err)

	req, err := NewConfigurationRequest(params, "query-1")
	require.NoError(t, err)

	data, err := json.Marshal(req)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"jsonrpc": "2.0",
		"method": "configure",
		"id": "query-1",
		"params": {
			"device": {"uuid": "0009E5001571"},
			"netSettings": {
				"interface": {
					"name": "eth0",
					"configurationMethod": "manual",
					"ipv4": {"manualAddress": "172.19.1.2", "manualNetmask": "255.255.0.0"}
				},
				"defaultGateway": {"ipv4Address": "172.19.0.1"}
			},
			"ttl": 2
		}
	}`, string(data))
}

func TestDefaultTTL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultConfigureTTL, validParams(t).TTL)
}

func TestConfigMethodUnmarshal(t *testing.T) {
	t.Parallel()

	var methods []ConfigMethod

	require.NoError(t, json.Unmarshal([]byte(`["dhcp","manual","routerSolicitation","zeroconf"]`), &methods))
	assert.Equal(t, []ConfigMethod{
		ConfigMethodDHCP, ConfigMethodManual, ConfigMethodRouterSolicitation, ConfigMethodUnknown,
	}, methods)

	var m ConfigMethod
	require.Error(t, json.Unmarshal([]byte(`5`), &m))
}

func TestDurationUnmarshal(t *testing.T) {
	t.Parallel()

	var cfg struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"a":"30s","b":1000000000}`), &cfg))
	assert.Equal(t, 30*time.Second, time.Duration(cfg.A))
	assert.Equal(t, time.Second, time.Duration(cfg.B))

	require.Error(t, json.Unmarshal([]byte(`{"a":"soon"}`), &cfg))
	require.ErrorIs(t, json.Unmarshal([]byte(`{"a":true}`), &cfg), errInvalidDuration)

	out, err := json.Marshal(Duration(1500 * time.Millisecond))
	require.NoError(t, err)
	assert.JSONEq(t, `"1.5s"`, string(out))
}
