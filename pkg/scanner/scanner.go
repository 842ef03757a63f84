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


// Package scanner runs the discovery pipeline: received datagrams are
// validated, filtered and fed to the device monitor by a pool of workers.
package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/carverauto/devscan/pkg/announce"
	"github.com/carverauto/devscan/pkg/filter"
	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/monitor"
	"github.com/carverauto/devscan/pkg/transport"
)

// Scanner owns the device monitor and the workers feeding it.
type Scanner struct {
	source       transport.Source
	deserializer *announce.Deserializer
	filter       *filter.Filter
	monitor      *monitor.DeviceMonitor
	workers      int
	stopTimeout  time.Duration
	logger       logger.Logger

	clock     monitor.Clock
	listeners []monitor.Listener
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithClock replaces the wall clock of the device monitor.
func WithClock(clock monitor.Clock) Option {
	return func(s *Scanner) {
		s.clock = clock
	}
}

// WithListener registers a lifecycle listener before any announce is processed.
func WithListener(l monitor.Listener) Option {
	return func(s *Scanner) {
		s.listeners = append(s.listeners, l)
	}
}

// New builds the pipeline. cfg must have been validated.
func New(cfg *Config, source transport.Source, log logger.Logger, opts ...Option) (*Scanner, error) {
	s := &Scanner{
		source:       source,
		deserializer: announce.NewDeserializer(log),
		workers:      cfg.Workers,
		stopTimeout:  time.Duration(cfg.StopTimeout),
		logger:       log,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.workers <= 0 {
		s.workers = defaultWorkers
	}

	if s.stopTimeout <= 0 {
		s.stopTimeout = defaultStopTimeout
	}

	m, err := cfg.Filter.Matcher()
	if err != nil {
		return nil, err
	}

	if m != nil {
		s.filter, err = filter.New("config", m, log)
		if err != nil {
			return nil, err
		}
	}

	s.monitor, err = monitor.NewDeviceMonitor(cfg.Monitor, s.clock, log)
	if err != nil {
		return nil, err
	}

	for _, l := range s.listeners {
		s.monitor.AddListener(l)
	}

	return s, nil
}

// Monitor returns the device monitor, e.g. to add listeners or list devices.
func (s *Scanner) Monitor() *monitor.DeviceMonitor {
	return s.monitor
}

// Run starts the monitor and processes messages until ctx is done or the
// source closes. The monitor is stopped before Run returns, so every pending
// lifecycle event has been delivered by then.
func (s *Scanner) Run(ctx context.Context) error {
	if err := s.monitor.Start(ctx); err != nil {
		return err
	}

	s.logger.Info().Int("workers", s.workers).Msg("Scanner started")

	messages := s.source.Messages()

	var wg sync.WaitGroup

	for i := 0; i < s.workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			s.worker(ctx, messages)
		}()
	}

	wg.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	stopErr := s.monitor.Stop(stopCtx)

	s.logger.Info().Msg("Scanner stopped")

	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ctxErr, stopErr)
	}

	return stopErr
}

func (s *Scanner) worker(ctx context.Context, messages <-chan transport.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			s.Handle(msg)
		}
	}
}

// Handle runs one message through validation, filtering and the monitor.
// It reports whether the announce reached the monitor.
func (s *Scanner) Handle(msg transport.Message) bool {
	recordReceived()

	a, reason := s.deserializer.ParseWithReason(msg.Payload)
	if reason != announce.DropNone {
		recordDrop(string(reason))

		return false
	}

	if s.filter != nil && !s.filter.Accept(a) {
		recordDrop(dropFiltered)

		return false
	}

	if err := s.monitor.UpdateAnnounce(a); err != nil {
		recordDrop(dropRejected)

		s.logger.Warn().
			Err(err).
			Str("uuid", a.Params.Device.UUID).
			Str("from", addrString(msg)).
			Msg("Device monitor rejected announce")

		return false
	}

	return true
}

func addrString(msg transport.Message) string {
	if msg.From == nil {
		return ""
	}

	return msg.From.String()
}
