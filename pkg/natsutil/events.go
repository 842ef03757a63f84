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

// Package natsutil publishes device lifecycle events to NATS JetStream.
package natsutil

//go:generate mockgen -destination=mock_natsutil.go -package=natsutil github.com/carverauto/devscan/pkg/natsutil Publisher,AddressResolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/devscan/pkg/announce"
	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
)

const (
	// DefaultSubjectPrefix is the subject namespace of device events; the
	// event type is appended as the last token.
	DefaultSubjectPrefix = "devscan.device"

	eventSource           = "devscan/scanner"
	eventTypePrefix       = "com.carverauto.devscan.device."
	defaultPublishTimeout = 5 * time.Second
)

var (
	errNilPath              = errors.New("communication path is nil")
	errEventsConfigRequired = errors.New("events configuration is required")
)

// Publisher is the subset of jetstream.JetStream used to publish events.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// AddressResolver picks the device address reachable from this host.
type AddressResolver interface {
	FindConnectableAddress(a *models.Announce) (netip.Addr, bool)
}

// EventPublisher turns device lifecycle events into CloudEvents on JetStream.
// It implements monitor.Listener.
type EventPublisher struct {
	js       Publisher
	stream   string
	prefix   string
	timeout  time.Duration
	resolver AddressResolver
	logger   logger.Logger
	now      func() time.Time
}

// Option customizes an EventPublisher.
type Option func(*EventPublisher)

// WithAddressResolver adds the connectable address to every event.
func WithAddressResolver(r AddressResolver) Option {
	return func(p *EventPublisher) {
		p.resolver = r
	}
}

// WithSubjectPrefix overrides DefaultSubjectPrefix.
func WithSubjectPrefix(prefix string) Option {
	return func(p *EventPublisher) {
		if prefix != "" {
			p.prefix = prefix
		}
	}
}

// WithPublishTimeout bounds each publish made from a listener callback.
func WithPublishTimeout(d time.Duration) Option {
	return func(p *EventPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewEventPublisher creates a new EventPublisher for the specified stream.
func NewEventPublisher(js Publisher, streamName string, log logger.Logger, opts ...Option) *EventPublisher {
	p := &EventPublisher{
		js:      js,
		stream:  streamName,
		prefix:  DefaultSubjectPrefix,
		timeout: defaultPublishTimeout,
		logger:  log,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Stream returns the name of the stream events are published to.
func (p *EventPublisher) Stream() string {
	return p.stream
}

// Subject returns the subject used for the given event type.
func (p *EventPublisher) Subject(kind models.DeviceEventType) string {
	return p.prefix + "." + string(kind)
}

// NewDevice implements monitor.Listener.
func (p *EventPublisher) NewDevice(path *announce.CommunicationPath) {
	p.publishFromListener(models.DeviceEventNew, nil, path)
}

// UpdatedDevice implements monitor.Listener.
func (p *EventPublisher) UpdatedDevice(oldPath, newPath *announce.CommunicationPath) {
	p.publishFromListener(models.DeviceEventUpdated, oldPath, newPath)
}

// LostDevice implements monitor.Listener.
func (p *EventPublisher) LostDevice(path *announce.CommunicationPath) {
	p.publishFromListener(models.DeviceEventLost, nil, path)
}

func (p *EventPublisher) publishFromListener(kind models.DeviceEventType, previous, current *announce.CommunicationPath) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.PublishDeviceEvent(ctx, kind, previous, current); err != nil {
		p.logger.Warn().
			Err(err).
			Str("event", string(kind)).
			Stringer("device", current).
			Msg("Failed to publish device event")
	}
}

// PublishDeviceEvent publishes a single lifecycle event. previous is only
// meaningful for updates and may be nil.
func (p *EventPublisher) PublishDeviceEvent(
	ctx context.Context, kind models.DeviceEventType, previous, current *announce.CommunicationPath) error {
	if current == nil {
		return errNilPath
	}

	data := p.eventData(kind, previous, current)
	subject := p.Subject(kind)

	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventTypePrefix + string(kind),
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &data.Timestamp,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal device %s event: %w", kind, err)
	}

	ack, err := p.js.Publish(ctx, subject, eventBytes)
	if err != nil {
		return fmt.Errorf("failed to publish device %s event: %w", kind, err)
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("subject", subject).
		Uint64("seq", ack.Sequence).
		Msg("Published device event")

	return nil
}

func (p *EventPublisher) eventData(kind models.DeviceEventType, previous, current *announce.CommunicationPath) models.DeviceEventData {
	a := current.Announce()

	data := models.DeviceEventData{
		Event:      kind,
		Key:        current.Key(),
		DeviceUUID: a.Params.Device.UUID,
		Interface:  a.Params.NetSettings.Interface.Name,
		Announce:   a,
		Timestamp:  p.now().UTC(),
	}

	if router, ok := a.RouterUUID(); ok {
		data.RouterUUID = router
	}

	if family, ok := a.FamilyType(); ok {
		data.FamilyType = family
	}

	if a.Params.Device.Name != nil {
		data.Name = *a.Params.Device.Name
	}

	if previous != nil {
		data.Previous = previous.Announce()
	}

	if p.resolver != nil {
		if addr, ok := p.resolver.FindConnectableAddress(a); ok {
			data.Connectable = addr.String()
		}
	}

	return data
}
