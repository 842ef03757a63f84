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
	"net/netip"

	"github.com/rs/zerolog"

	"github.com/carverauto/devscan/pkg/announce"
	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
)

// AddressResolver picks the device address reachable from this host.
type AddressResolver interface {
	FindConnectableAddress(a *models.Announce) (netip.Addr, bool)
}

// EventLogger is a monitor.Listener writing every lifecycle event to the log
// together with the address this host can connect to, if any.
type EventLogger struct {
	resolver AddressResolver
	logger   logger.Logger
}

// NewEventLogger creates an EventLogger. resolver may be nil.
func NewEventLogger(resolver AddressResolver, log logger.Logger) *EventLogger {
	return &EventLogger{resolver: resolver, logger: log}
}

func (l *EventLogger) NewDevice(path *announce.CommunicationPath) {
	l.log(l.logger.Info(), "new", path).Msg("Device appeared")
}

func (l *EventLogger) UpdatedDevice(oldPath, newPath *announce.CommunicationPath) {
	l.log(l.logger.Info(), "updated", newPath).
		Int("old_services", len(oldPath.Announce().Params.Services)).
		Int("services", len(newPath.Announce().Params.Services)).
		Msg("Device changed")
}

func (l *EventLogger) LostDevice(path *announce.CommunicationPath) {
	l.log(l.logger.Info(), "lost", path).Msg("Device lost")
}

func (l *EventLogger) log(ev *zerolog.Event, kind string, path *announce.CommunicationPath) *zerolog.Event {
	a := path.Announce()

	ev = ev.Str("event", kind).
		Str("key", path.Key()).
		Str("uuid", a.Params.Device.UUID).
		Str("interface", a.Params.NetSettings.Interface.Name)

	if family, ok := a.FamilyType(); ok {
		ev = ev.Str("family_type", family)
	}

	if router, ok := a.RouterUUID(); ok {
		ev = ev.Str("router", router)
	}

	if addr, ok := l.ConnectableAddress(a); ok {
		ev = ev.Str("connectable", addr.String())
	} else {
		ev = ev.Bool("reachable", false)
	}

	return ev
}

// ConnectableAddress resolves the reachable address of an announce.
func (l *EventLogger) ConnectableAddress(a *models.Announce) (netip.Addr, bool) {
	if l.resolver == nil {
		return netip.Addr{}, false
	}

	return l.resolver.FindConnectableAddress(a)
}
