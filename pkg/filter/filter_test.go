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

package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
)

func announceWithFamily(uuid string, family *string) *models.Announce {
	return &models.Announce{
		JSONRPC: models.JSONRPCVersion,
		Method:  models.MethodAnnounce,
		Params: models.AnnounceParams{
			Device:      models.AnnouncedDevice{UUID: uuid, FamilyType: family},
			NetSettings: models.NetSettings{Interface: models.Interface{Name: "eth0"}},
		},
	}
}

func family(s string) *string { return &s }

func TestFamilyTypeMatch(t *testing.T) {
	t.Parallel()

	m, err := NewFamilyTypeMatch("QuantumX", "PMX")
	require.NoError(t, err)

	tests := []struct {
		name   string
		family *string
		want   bool
	}{
		{name: "QuantumX", family: family("QuantumX"), want: true},
		{name: "PMX", family: family("PMX"), want: true},
		{name: "other family", family: family("Other"), want: false},
		{name: "case differs", family: family("quantumx"), want: false},
		{name: "empty family", family: family(""), want: false},
		{name: "no family", family: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, m.Match(announceWithFamily("dev", tt.family)))
		})
	}

	assert.Equal(t, []string{"QuantumX", "PMX"}, m.FilterStrings())
}

func TestEmptyAllowListRejected(t *testing.T) {
	t.Parallel()

	_, err := NewFamilyTypeMatch()
	require.ErrorIs(t, err, ErrNoFilterStrings)

	_, err = NewUUIDMatch()
	require.ErrorIs(t, err, ErrNoFilterStrings)

	_, err = All()
	require.ErrorIs(t, err, ErrNoMatchers)
}

func TestZeroValueMatcherFailsClosed(t *testing.T) {
	t.Parallel()

	var m FamilyTypeMatch

	assert.False(t, m.Match(announceWithFamily("dev", family("QuantumX"))))
	assert.False(t, m.Match(announceWithFamily("dev", nil)))
}

func TestFilterStringsAreCopied(t *testing.T) {
	t.Parallel()

	m, err := NewUUIDMatch("a", "b")
	require.NoError(t, err)

	got := m.FilterStrings()
	got[0] = "mutated"

	assert.Equal(t, []string{"a", "b"}, m.FilterStrings())
}

func TestCombinators(t *testing.T) {
	t.Parallel()

	families, err := NewFamilyTypeMatch("QuantumX", "PMX")
	require.NoError(t, err)

	blocked, err := NewUUIDMatch("blocked-device")
	require.NoError(t, err)

	notBlocked, err := Not(blocked)
	require.NoError(t, err)

	m, err := All(families, notBlocked)
	require.NoError(t, err)

	assert.True(t, m.Match(announceWithFamily("good-device", family("PMX"))))
	assert.False(t, m.Match(announceWithFamily("blocked-device", family("PMX"))))
	assert.False(t, m.Match(announceWithFamily("good-device", family("Other"))))
	assert.Equal(t, []string{"QuantumX", "PMX", "blocked-device"}, m.FilterStrings())
}

func TestCombinatorsRejectNilMatcher(t *testing.T) {
	t.Parallel()

	_, err := Not(nil)
	require.ErrorIs(t, err, ErrNoMatchers)

	families, err := NewFamilyTypeMatch("PMX")
	require.NoError(t, err)

	_, err = All(families, nil)
	require.ErrorIs(t, err, ErrNoMatchers)
}

func TestFilterStage(t *testing.T) {
	t.Parallel()

	m, err := NewFamilyTypeMatch("QuantumX")
	require.NoError(t, err)

	f, err := New("family", m, logger.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, "family", f.Name())
	assert.True(t, f.Accept(announceWithFamily("dev", family("QuantumX"))))
	assert.False(t, f.Accept(announceWithFamily("dev", nil)))
	assert.False(t, f.Accept(nil))

	_, err = New("empty", nil, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrNoMatchers)
}
