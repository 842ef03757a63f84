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
	"context"
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/devscan/pkg/announce"
	"github.com/carverauto/devscan/pkg/connfinder"
	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
	"github.com/carverauto/devscan/pkg/monitor"
	"github.com/carverauto/devscan/pkg/transport"
)

type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingListener) add(kind string, path *announce.CommunicationPath) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, kind+":"+path.Key())
}

func (r *recordingListener) NewDevice(path *announce.CommunicationPath) { r.add("new", path) }

func (r *recordingListener) UpdatedDevice(_, newPath *announce.CommunicationPath) {
	r.add("updated", newPath)
}

func (r *recordingListener) LostDevice(path *announce.CommunicationPath) { r.add("lost", path) }

func (r *recordingListener) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.events...)
}

func announceJSON(uuid, family, ifName string, port int) string {
	return fmt.Sprintf(`{"jsonrpc":"2.0","method":"announce","params":{`+
		`"device":{"uuid":%q,"familyType":%q},`+
		`"netSettings":{"interface":{"name":%q,"ipv4":[{"address":"192.168.1.20","netmask":"255.255.255.0"}]}},`+
		`"services":[{"type":"daq","port":%d}]}}`, uuid, family, ifName, port)
}

func monitorWindow(d time.Duration) monitor.Config {
	return monitor.Config{LivenessWindow: models.Duration(d)}
}

func validConfig(t *testing.T) *Config {
	t.Helper()

	cfg := &Config{Workers: 3}
	require.NoError(t, cfg.Validate())

	return cfg
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, transport.DefaultAnnounceGroup, cfg.Receiver.Group)
	assert.Equal(t, defaultWorkers, cfg.Workers)
	assert.Equal(t, defaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, models.Duration(defaultStopTimeout), cfg.StopTimeout)
	assert.Equal(t, models.Duration(30*time.Second), cfg.Monitor.LivenessWindow)
	assert.Equal(t, models.Duration(time.Second), cfg.Monitor.SweepInterval)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative workers", Config{Workers: -1}},
		{"negative window", Config{Monitor: monitorWindow(-time.Second)}},
		{"events without nats", Config{Events: &models.EventsConfig{Enabled: true}}},
		{"events with empty nats url", Config{Events: &models.EventsConfig{Enabled: true}, NATS: &models.NATSConfig{}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := tc.cfg
			require.Error(t, cfg.Validate())
		})
	}
}

func TestConfigEventsDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Events: &models.EventsConfig{Enabled: true},
		NATS:   &models.NATSConfig{URL: "nats://127.0.0.1:4222"},
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "devscan", cfg.Events.StreamName)
	assert.Equal(t, []string{"devscan.device.*"}, cfg.Events.Subjects)
}

func TestFilterConfigMatcher(t *testing.T) {
	t.Parallel()

	m, err := FilterConfig{}.Matcher()
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = FilterConfig{FamilyTypes: []string{"QuantumX", "PMX"}, ExcludeUUIDs: []string{"dev-2"}}.Matcher()
	require.NoError(t, err)

	parse := func(payload string) *models.Announce {
		a, ok := announce.NewDeserializer(logger.NewTestLogger()).Parse(payload)
		require.True(t, ok)

		return a
	}

	assert.True(t, m.Match(parse(announceJSON("dev-1", "QuantumX", "eth0", 1))))
	assert.False(t, m.Match(parse(announceJSON("dev-2", "QuantumX", "eth0", 1))))
	assert.False(t, m.Match(parse(announceJSON("dev-1", "quantumx", "eth0", 1))))
}

func TestHandle(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.Filter = FilterConfig{FamilyTypes: []string{"QuantumX"}}

	s, err := New(cfg, transport.NewChanSource(1), logger.NewTestLogger())
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"valid announce", announceJSON("dev-1", "QuantumX", "eth0", 80), true},
		{"filtered family", announceJSON("dev-2", "PMX", "eth0", 80), false},
		{"invalid json", `{"jsonrpc":`, false},
		{"response frame", `{"jsonrpc":"2.0","id":"1","result":{}}`, false},
		{"missing interface", `{"jsonrpc":"2.0","method":"announce","params":{"device":{"uuid":"x"}}}`, false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, s.Handle(transport.Message{Payload: tc.payload}), tc.name)
	}

	assert.Equal(t, 1, s.Monitor().Len())
}

func TestRunDeliversEventsBeforeReturning(t *testing.T) {
	t.Parallel()

	source := transport.NewChanSource(64)
	listener := &recordingListener{}

	s, err := New(validConfig(t), source, logger.NewTestLogger(), WithListener(listener))
	require.NoError(t, err)

	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, source.Send(ctx, announceJSON(fmt.Sprintf("dev-%d", i), "QuantumX", "eth0", 80)))
	}

	// a repeat with unchanged content is only a heartbeat
	require.NoError(t, source.Send(ctx, announceJSON("dev-0", "QuantumX", "eth0", 80)))
	require.NoError(t, source.Send(ctx, "not json"))
	source.Close()

	require.NoError(t, s.Run(ctx))

	events := listener.snapshot()
	assert.Len(t, events, 10)

	for i := 0; i < 10; i++ {
		assert.Contains(t, events, fmt.Sprintf("new:dev-%deth0", i))
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	source := transport.NewMockSource(ctrl)
	messages := make(chan transport.Message)

	source.EXPECT().Messages().Return((<-chan transport.Message)(messages))

	s, err := New(validConfig(t), source, logger.NewTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- s.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scanner did not stop")
	}

	require.ErrorIs(t, s.Monitor().Update(mustPath(t)), monitor.ErrMonitorStopped)
}

func mustPath(t *testing.T) *announce.CommunicationPath {
	t.Helper()

	a, ok := announce.NewDeserializer(logger.NewTestLogger()).Parse(announceJSON("dev-9", "QuantumX", "eth0", 1))
	require.True(t, ok)

	path, err := announce.NewCommunicationPath(a)
	require.NoError(t, err)

	return path
}

func TestEventLogger(t *testing.T) {
	t.Parallel()

	local, err := connfinder.ParseLocalAddress("eth0", "192.168.1.5/24")
	require.NoError(t, err)

	el := NewEventLogger(connfinder.NewConnectionFinder([]connfinder.LocalAddress{local}), logger.NewTestLogger())
	path := mustPath(t)

	addr, ok := el.ConnectableAddress(path.Announce())
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("192.168.1.20"), addr)

	assert.NotPanics(t, func() {
		el.NewDevice(path)
		el.UpdatedDevice(path, path)
		el.LostDevice(path)
	})

	_, ok = NewEventLogger(nil, logger.NewTestLogger()).ConnectableAddress(path.Announce())
	assert.False(t, ok)
}
