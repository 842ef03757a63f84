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

package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/carverauto/devscan/pkg/logger"
)

const (
	writeTimeout = time.Second
	maxTTL       = 255
)

// SenderConfig selects the group and interfaces multicast frames are sent on.
type SenderConfig struct {
	Group      string   `json:"group"`
	Interfaces []string `json:"interfaces,omitempty"`
	// Loopback delivers sent frames to listeners on this host as well.
	Loopback bool `json:"loopback,omitempty"`
}

// Sender writes frames to a multicast group on every selected interface.
type Sender struct {
	group  *net.UDPAddr
	ifaces []net.Interface
	logger logger.Logger

	mu    sync.Mutex
	conn  net.PacketConn
	pconn *ipv4.PacketConn
}

// NewSender opens an ephemeral UDP socket for sending to the group.
func NewSender(config SenderConfig, log logger.Logger) (*Sender, error) {
	group, err := resolveGroup(config.Group)
	if err != nil {
		return nil, err
	}

	ifaces, err := multicastInterfaces(config.Interfaces)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("failed to open send socket: %w", err)
	}

	pconn := ipv4.NewPacketConn(conn)

	if err := pconn.SetMulticastLoopback(config.Loopback); err != nil {
		log.Debug().Err(err).Msg("Failed to set multicast loopback")
	}

	return &Sender{
		group:  group,
		ifaces: ifaces,
		logger: log,
		conn:   conn,
		pconn:  pconn,
	}, nil
}

// Send writes payload on every interface with the given TTL. It succeeds if
// at least one interface accepted the frame.
func (s *Sender) Send(ctx context.Context, payload []byte, ttl int) error {
	if ttl < 1 || ttl > maxTTL {
		return ErrInvalidTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pconn.SetMulticastTTL(ttl); err != nil {
		return fmt.Errorf("failed to set multicast ttl: %w", err)
	}

	var lastErr error

	sent := 0

	for i := range s.ifaces {
		if err := ctx.Err(); err != nil {
			return err
		}

		iface := &s.ifaces[i]

		if err := s.writeOn(iface, payload); err != nil {
			s.logger.Debug().Err(err).Str("interface", iface.Name).Msg("Multicast send failed")

			lastErr = err

			continue
		}

		sent++

		s.logger.Debug().Int("size", len(payload)).Str("interface", iface.Name).Msg("Sent multicast message")
	}

	if sent == 0 {
		return fmt.Errorf("failed to send to %s: %w", s.group, lastErr)
	}

	return nil
}

func (s *Sender) writeOn(iface *net.Interface, payload []byte) error {
	if err := s.pconn.SetMulticastInterface(iface); err != nil {
		return err
	}

	if err := s.pconn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	defer func() { _ = s.pconn.SetWriteDeadline(time.Time{}) }()

	_, err := s.pconn.WriteTo(payload, nil, s.group)

	return err
}

// Close releases the socket.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn.Close()
}
