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

package announce

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
)

const quantumXAnnounce = `{
	"jsonrpc": "2.0",
	"method": "announce",
	"params": {
		"apiVersion": "1.0",
		"device": {
			"uuid": "0050c2ffff8a",
			"name": "Q.bloxx",
			"familyType": "QuantumX",
			"type": "MX840B",
			"firmwareVersion": "4.18.2.0",
			"hardwareId": "1-MX840B"
		},
		"netSettings": {
			"interface": {
				"name": "eth0",
				"type": "ethernet",
				"configurationMethod": "dhcp",
				"ipv4": [{"address": "10.0.0.9", "netmask": "255.255.255.0"}],
				"ipv6": [{"address": "fe80::250:c2ff:fe8a:1", "prefix": 64}]
			},
			"defaultGateway": {"ipv4Address": "10.0.0.1"}
		},
		"services": [{"type": "daqStream", "port": 7411}, {"type": "http", "port": 80}],
		"expiration": 15
	}
}`

func strPtr(s string) *string { return &s }

func TestParseValidAnnounce(t *testing.T) {
	d := NewDeserializer(logger.NewTestLogger())

	a, ok := d.Parse(quantumXAnnounce)
	require.True(t, ok)
	require.NotNil(t, a)

	assert.Equal(t, models.MethodAnnounce, a.Method)
	assert.Equal(t, "0050c2ffff8a", a.Params.Device.UUID)

	family, ok := a.FamilyType()
	require.True(t, ok)
	assert.Equal(t, "QuantumX", family)

	iface := a.Params.NetSettings.Interface
	assert.Equal(t, "eth0", iface.Name)
	require.NotNil(t, iface.ConfigurationMethod)
	assert.Equal(t, models.ConfigMethodDHCP, *iface.ConfigurationMethod)
	assert.Equal(t, []models.IPv4Entry{{Address: "10.0.0.9", Netmask: "255.255.255.0"}}, iface.IPv4)
	assert.Equal(t, []models.IPv6Entry{{Address: "fe80::250:c2ff:fe8a:1", Prefix: 64}}, iface.IPv6)
	require.NotNil(t, a.Params.NetSettings.DefaultGateway)
	assert.Equal(t, strPtr("10.0.0.1"), a.Params.NetSettings.DefaultGateway.IPv4Address)
	assert.Nil(t, a.Params.NetSettings.DefaultGateway.IPv6Address)
	assert.Len(t, a.Params.Services, 2)
	require.NotNil(t, a.Params.Expiration)
	assert.Equal(t, 15, *a.Params.Expiration)
	assert.Nil(t, a.Params.Router)
}

func TestParseRoundTrip(t *testing.T) {
	d := NewDeserializer(logger.NewTestLogger())

	method := models.ConfigMethodManual
	expiration := 30
	original := &models.Announce{
		JSONRPC: models.JSONRPCVersion,
		Method:  models.MethodAnnounce,
		Params: models.AnnounceParams{
			APIVersion: strPtr("1.0"),
			Device: models.AnnouncedDevice{
				UUID:       "0009E5001571",
				Name:       strPtr("PMX"),
				FamilyType: strPtr("PMX"),
				Label:      strPtr(""),
			},
			Router: &models.Router{UUID: "0009E5000001"},
			NetSettings: models.NetSettings{
				Interface: models.Interface{
					Name:                "eth1",
					ConfigurationMethod: &method,
					IPv4:                []models.IPv4Entry{{Address: "192.168.1.20", Netmask: "255.255.0.0"}},
				},
			},
			Services:   []models.ServiceEntry{{Type: "hbm_daqstream", Port: 7411}},
			Expiration: &expiration,
		},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	parsed, ok := d.Parse(string(data))
	require.True(t, ok)
	assert.Equal(t, original, parsed)
}

func TestParseUnknownConfigMethod(t *testing.T) {
	d := NewDeserializer(logger.NewTestLogger())

	msg := `{"jsonrpc":"2.0","method":"announce","params":{"device":{"uuid":"a"},` +
		`"netSettings":{"interface":{"name":"eth0","configurationMethod":"bootp"}}}}`

	a, ok := d.Parse(msg)
	require.True(t, ok)
	require.NotNil(t, a.Params.NetSettings.Interface.ConfigurationMethod)
	assert.Equal(t, models.ConfigMethodUnknown, *a.Params.NetSettings.Interface.ConfigurationMethod)
}

func TestParseDrops(t *testing.T) {
	d := NewDeserializer(logger.NewTestLogger())

	tests := []struct {
		name   string
		msg    string
		reason DropReason
	}{
		{name: "empty", msg: "", reason: DropInvalidJSON},
		{name: "not json", msg: "hello world", reason: DropInvalidJSON},
		{name: "array", msg: `[1,2,3]`, reason: DropInvalidJSON},
		{name: "truncated", msg: quantumXAnnounce[:40], reason: DropInvalidJSON},
		{
			name:   "response with result",
			msg:    `{"jsonrpc":"2.0","method":"announce","result":0,"params":{}}`,
			reason: DropResponse,
		},
		{
			name:   "response with error",
			msg:    `{"jsonrpc":"2.0","id":"1","error":{"code":-1,"message":"no"}}`,
			reason: DropResponse,
		},
		{
			name:   "missing method",
			msg:    `{"jsonrpc":"2.0","params":{"device":{"uuid":"a"},"netSettings":{"interface":{"name":"eth0"}}}}`,
			reason: DropWrongMethod,
		},
		{
			name:   "other method",
			msg:    `{"jsonrpc":"2.0","method":"configure","params":{"device":{"uuid":"a"},"netSettings":{"interface":{"name":"eth0"}}}}`,
			reason: DropWrongMethod,
		},
		{
			name:   "request id",
			msg:    `{"jsonrpc":"2.0","id":"42","method":"announce","params":{"device":{"uuid":"a"},"netSettings":{"interface":{"name":"eth0"}}}}`,
			reason: DropHasID,
		},
		{
			name:   "numeric id",
			msg:    `{"jsonrpc":"2.0","id":7,"method":"announce","params":{"device":{"uuid":"a"},"netSettings":{"interface":{"name":"eth0"}}}}`,
			reason: DropHasID,
		},
		{
			name:   "missing params",
			msg:    `{"jsonrpc":"2.0","method":"announce"}`,
			reason: DropMissingField,
		},
		{
			name:   "missing device",
			msg:    `{"jsonrpc":"2.0","method":"announce","params":{"netSettings":{"interface":{"name":"eth0"}}}}`,
			reason: DropMissingField,
		},
		{
			name:   "empty uuid",
			msg:    `{"jsonrpc":"2.0","method":"announce","params":{"device":{"uuid":""},"netSettings":{"interface":{"name":"eth0"}}}}`,
			reason: DropMissingField,
		},
		{
			name:   "missing net settings",
			msg:    `{"jsonrpc":"2.0","method":"announce","params":{"device":{"uuid":"a"}}}`,
			reason: DropMissingField,
		},
		{
			name:   "missing interface",
			msg:    `{"jsonrpc":"2.0","method":"announce","params":{"device":{"uuid":"a"},"netSettings":{}}}`,
			reason: DropMissingField,
		},
		{
			name:   "missing interface name",
			msg:    `{"jsonrpc":"2.0","method":"announce","params":{"device":{"uuid":"a"},"netSettings":{"interface":{}}}}`,
			reason: DropMissingField,
		},
		{
			name:   "uuid of wrong type",
			msg:    `{"jsonrpc":"2.0","method":"announce","params":{"device":{"uuid":5},"netSettings":{"interface":{"name":"eth0"}}}}`,
			reason: DropInvalidJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, reason := d.ParseWithReason(tt.msg)
			assert.Nil(t, a)
			assert.Equal(t, tt.reason, reason)

			_, ok := d.Parse(tt.msg)
			assert.False(t, ok)
		})
	}
}

func TestParseAcceptsEmptyOrNullID(t *testing.T) {
	d := NewDeserializer(logger.NewTestLogger())

	for _, id := range []string{`""`, `null`} {
		msg := `{"jsonrpc":"2.0","id":` + id +
			`,"method":"announce","params":{"device":{"uuid":"a"},"netSettings":{"interface":{"name":"eth0"}}}}`

		_, ok := d.Parse(msg)
		assert.True(t, ok, "id %s", id)
	}
}
