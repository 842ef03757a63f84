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

// Package monitor tracks announced devices and reports when they appear,
// change or go silent.
package monitor

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/carverauto/devscan/pkg/announce"
	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
)

type eventKind int

const (
	eventNew eventKind = iota
	eventUpdated
	eventLost
)

func (k eventKind) String() string {
	switch k {
	case eventNew:
		return "new"
	case eventUpdated:
		return "updated"
	case eventLost:
		return "lost"
	default:
		return "unknown"
	}
}

type event struct {
	kind    eventKind
	oldPath *announce.CommunicationPath
	path    *announce.CommunicationPath
}

// entry is the registry state of one present device.
type entry struct {
	path     *announce.CommunicationPath
	lastSeen time.Time
	deadline time.Time
}

// DeviceMonitor is the registry of present devices keyed by communication path.
//
// Update may be called from any number of goroutines. Lifecycle events are
// computed under the registry lock, queued, and handed to listeners by a
// single dispatcher goroutine after the lock is released, so listeners may
// call back into the monitor.
type DeviceMonitor struct {
	config Config
	clock  Clock
	logger logger.Logger

	mu      sync.Mutex
	devices map[string]*entry
	started bool
	stopped bool

	listenersMu sync.RWMutex
	listeners   []Listener

	queueMu     sync.Mutex
	queue       []event
	queueSignal chan struct{}

	done         chan struct{}
	drain        chan struct{}
	sweepDone    chan struct{}
	dispatchDone chan struct{}
}

// NewDeviceMonitor creates a monitor. A nil clock means the wall clock.
func NewDeviceMonitor(config Config, clock Clock, log logger.Logger) (*DeviceMonitor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if clock == nil {
		clock = realClock{}
	}

	return &DeviceMonitor{
		config:       config,
		clock:        clock,
		logger:       log,
		devices:      make(map[string]*entry),
		queueSignal:  make(chan struct{}, 1),
		done:         make(chan struct{}),
		drain:        make(chan struct{}),
		sweepDone:    make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}, nil
}

// AddListener registers a listener for lifecycle events.
func (m *DeviceMonitor) AddListener(l Listener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	m.listeners = append(m.listeners, l)
}

// RemoveListener unregisters a listener added with AddListener.
func (m *DeviceMonitor) RemoveListener(l Listener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	m.listeners = slices.DeleteFunc(m.listeners, func(existing Listener) bool {
		return existing == l
	})
}

// Start launches the expiry sweep and the event dispatcher. Cancelling ctx
// stops the sweep only; Stop must still be called to flush pending events.
func (m *DeviceMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrMonitorStopped
	}

	if m.started {
		return ErrMonitorAlreadyStarted
	}

	m.started = true

	ticker := m.clock.Ticker(time.Duration(m.config.SweepInterval))

	go m.sweepLoop(ctx, ticker)
	go m.dispatch()

	// events queued before Start are waiting for the dispatcher
	m.signal()

	m.logger.Info().
		Dur("liveness_window", time.Duration(m.config.LivenessWindow)).
		Dur("sweep_interval", time.Duration(m.config.SweepInterval)).
		Bool("honor_announced_expiration", m.config.HonorAnnouncedExpiration).
		Msg("Device monitor started")

	return nil
}

// Stop refuses further updates, stops the sweep, reports devices whose
// deadline has already elapsed as lost and waits until every queued event
// has been delivered or ctx is done.
func (m *DeviceMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()

	if m.stopped {
		m.mu.Unlock()

		return nil
	}

	m.stopped = true
	started := m.started
	m.mu.Unlock()

	close(m.done)

	if started {
		<-m.sweepDone
	}

	m.sweep()
	close(m.drain)

	if !started {
		m.deliverPending()

		return nil
	}

	select {
	case <-m.dispatchDone:
		m.logger.Info().Msg("Device monitor stopped")

		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining device events: %w", ctx.Err())
	}
}

// UpdateAnnounce resolves the communication path of a validated announce and records the sighting.
func (m *DeviceMonitor) UpdateAnnounce(a *models.Announce) error {
	path, err := announce.NewCommunicationPath(a)
	if err != nil {
		return fmt.Errorf("failed to resolve communication path: %w", err)
	}

	return m.Update(path)
}

// Update records a sighting of path. The first sighting queues NewDevice. A
// later sighting refreshes the deadline and queues UpdatedDevice when the
// network settings or services changed. A sighting that arrives after the
// deadline, but before the sweep noticed, is reported as LostDevice followed
// by NewDevice.
func (m *DeviceMonitor) Update(path *announce.CommunicationPath) error {
	if path == nil {
		return ErrNilPath
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrMonitorStopped
	}

	now := m.clock.Now()
	deadline := now.Add(m.windowFor(path.Announce()))
	key := path.Key()

	current, ok := m.devices[key]
	if ok && !now.Before(current.deadline) {
		m.removeLocked(key, current)

		ok = false
	}

	if !ok {
		m.devices[key] = &entry{path: path, lastSeen: now, deadline: deadline}
		m.enqueue(event{kind: eventNew, path: path})
		recordTracked(1)

		return nil
	}

	old := current.path

	if path != old && path.Cookie() == nil {
		path.SetCookie(old.Cookie())
	}

	current.path = path
	current.lastSeen = now
	current.deadline = deadline

	if contentChanged(old.Announce(), path.Announce()) {
		m.enqueue(event{kind: eventUpdated, oldPath: old, path: path})
	}

	return nil
}

// Devices returns the paths of all present devices ordered by key.
func (m *DeviceMonitor) Devices() []*announce.CommunicationPath {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]*announce.CommunicationPath, 0, len(m.devices))
	for _, e := range m.devices {
		paths = append(paths, e.path)
	}

	slices.SortFunc(paths, func(a, b *announce.CommunicationPath) int {
		return cmp.Compare(a.Key(), b.Key())
	})

	return paths
}

// Len returns the number of present devices.
func (m *DeviceMonitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.devices)
}

func (m *DeviceMonitor) windowFor(a *models.Announce) time.Duration {
	if m.config.HonorAnnouncedExpiration && a != nil && a.Params.Expiration != nil && *a.Params.Expiration > 0 {
		return time.Duration(*a.Params.Expiration) * time.Second
	}

	return time.Duration(m.config.LivenessWindow)
}

// contentChanged compares the parts of an announce that matter for connecting to the device.
func contentChanged(old, updated *models.Announce) bool {
	if old == nil || updated == nil {
		return old != updated
	}

	if !gocmp.Equal(old.Params.NetSettings, updated.Params.NetSettings, cmpopts.EquateEmpty()) {
		return true
	}

	return !gocmp.Equal(old.Params.Services, updated.Params.Services, cmpopts.EquateEmpty())
}

func (m *DeviceMonitor) sweepLoop(ctx context.Context, ticker Ticker) {
	defer close(m.sweepDone)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.Chan():
			m.sweep()
		}
	}
}

// sweep removes every entry whose deadline has elapsed, oldest deadline first.
func (m *DeviceMonitor) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	var expired []string

	for key, e := range m.devices {
		if !now.Before(e.deadline) {
			expired = append(expired, key)
		}
	}

	slices.SortFunc(expired, func(a, b string) int {
		if c := m.devices[a].deadline.Compare(m.devices[b].deadline); c != 0 {
			return c
		}

		return cmp.Compare(a, b)
	})

	for _, key := range expired {
		m.removeLocked(key, m.devices[key])
	}
}

func (m *DeviceMonitor) removeLocked(key string, e *entry) {
	delete(m.devices, key)
	m.enqueue(event{kind: eventLost, path: e.path})
	recordTracked(-1)
}

// enqueue must be called with m.mu held so queue order matches registry order.
func (m *DeviceMonitor) enqueue(ev event) {
	m.queueMu.Lock()
	m.queue = append(m.queue, ev)
	m.queueMu.Unlock()

	m.signal()
}

func (m *DeviceMonitor) signal() {
	select {
	case m.queueSignal <- struct{}{}:
	default:
	}
}

func (m *DeviceMonitor) dispatch() {
	defer close(m.dispatchDone)

	for {
		select {
		case <-m.queueSignal:
			m.deliverPending()
		case <-m.drain:
			m.deliverPending()

			return
		}
	}
}

func (m *DeviceMonitor) deliverPending() {
	for {
		m.queueMu.Lock()
		pending := m.queue
		m.queue = nil
		m.queueMu.Unlock()

		if len(pending) == 0 {
			return
		}

		for _, ev := range pending {
			m.deliver(ev)
		}
	}
}

func (m *DeviceMonitor) deliver(ev event) {
	m.listenersMu.RLock()
	listeners := slices.Clone(m.listeners)
	m.listenersMu.RUnlock()

	m.logger.Debug().
		Str("event", ev.kind.String()).
		Str("key", ev.path.Key()).
		Msg("Device lifecycle event")

	recordEvent(ev.kind)

	for _, l := range listeners {
		m.notify(l, ev)
	}
}

func (m *DeviceMonitor) notify(l Listener, ev event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Interface("panic", r).
				Str("event", ev.kind.String()).
				Str("key", ev.path.Key()).
				Msg("Recovered from panic in device listener")
		}
	}()

	switch ev.kind {
	case eventNew:
		l.NewDevice(ev.path)
	case eventUpdated:
		l.UpdatedDevice(ev.oldPath, ev.path)
	case eventLost:
		l.LostDevice(ev.path)
	}
}
