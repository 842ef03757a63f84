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
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/net/ipv4"

	"github.com/carverauto/devscan/pkg/logger"
)

const (
	// DefaultAnnounceGroup is where devices send their announces.
	DefaultAnnounceGroup = "239.255.77.76:31416"
	// DefaultConfigureGroup carries configure requests and their responses.
	DefaultConfigureGroup = "239.255.77.77:31417"

	defaultQueueSize = 1024
	maxDatagramSize  = 65536
)

// ReceiverConfig selects the multicast group to join and where.
type ReceiverConfig struct {
	// Group is the multicast group as host:port.
	Group string `json:"group"`
	// Interfaces limits the join to these interface names. Empty means every
	// multicast capable interface that is up.
	Interfaces []string `json:"interfaces,omitempty"`
	// QueueSize is the number of datagrams buffered for consumers. Datagrams
	// arriving while the queue is full are dropped.
	QueueSize int `json:"queue_size,omitempty"`
}

// Receiver joins an IPv4 multicast group and delivers datagrams as text messages.
type Receiver struct {
	config  ReceiverConfig
	group   *net.UDPAddr
	logger  logger.Logger
	out     chan Message
	running atomic.Bool
	dropped atomic.Uint64

	mu      sync.Mutex
	ifNames map[int]string
}

// NewReceiver validates the group address. Nothing is opened until Run.
func NewReceiver(config ReceiverConfig, log logger.Logger) (*Receiver, error) {
	group, err := resolveGroup(config.Group)
	if err != nil {
		return nil, err
	}

	if config.QueueSize <= 0 {
		config.QueueSize = defaultQueueSize
	}

	return &Receiver{
		config:  config,
		group:   group,
		logger:  log,
		out:     make(chan Message, config.QueueSize),
		ifNames: make(map[int]string),
	}, nil
}

func resolveGroup(addr string) (*net.UDPAddr, error) {
	group, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("invalid multicast group %q: %w", addr, err)
	}

	if group.IP.To4() == nil || !group.IP.IsMulticast() {
		return nil, fmt.Errorf("%w: %s", ErrNotMulticastGroup, addr)
	}

	return group, nil
}

// Messages returns the channel datagrams are delivered on. It is closed when Run returns.
func (r *Receiver) Messages() <-chan Message {
	return r.out
}

// Dropped returns the number of datagrams dropped because the queue was full.
func (r *Receiver) Dropped() uint64 {
	return r.dropped.Load()
}

// Run listens until ctx is done or the socket fails. It may only be called once.
func (r *Receiver) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}

	defer close(r.out)

	lc := net.ListenConfig{Control: reuseAddr}

	conn, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(r.group.Port)))
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.group, err)
	}

	doneCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-doneCtx.Done()
		_ = conn.Close()
	}()

	pconn := ipv4.NewPacketConn(conn)

	if err := r.join(pconn); err != nil {
		return err
	}

	if err := pconn.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		r.logger.Debug().Err(err).Msg("Interface control messages not supported")
	}

	return r.readLoop(doneCtx, pconn)
}

func (r *Receiver) join(pconn *ipv4.PacketConn) error {
	ifaces, err := multicastInterfaces(r.config.Interfaces)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	joined := 0

	for i := range ifaces {
		iface := &ifaces[i]

		if err := pconn.JoinGroup(iface, &net.UDPAddr{IP: r.group.IP}); err != nil {
			r.logger.Debug().Err(err).Str("interface", iface.Name).Msg("Multicast join failed")

			continue
		}

		r.ifNames[iface.Index] = iface.Name
		joined++

		r.logger.Debug().Str("interface", iface.Name).Str("group", r.group.String()).Msg("Joined multicast group")
	}

	if joined == 0 {
		return ErrNoMulticastInterfaces
	}

	r.logger.Info().Str("group", r.group.String()).Int("interfaces", joined).Msg("Listening for multicast messages")

	return nil
}

func (r *Receiver) readLoop(ctx context.Context, pconn *ipv4.PacketConn) error {
	buf := make([]byte, maxDatagramSize)

	for {
		n, cm, src, err := pconn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}

			return fmt.Errorf("failed to read from %s: %w", r.group, err)
		}

		msg := Message{Payload: string(buf[:n]), From: src}

		if cm != nil {
			msg.Interface = r.interfaceName(cm.IfIndex)
		}

		select {
		case r.out <- msg:
		default:
			r.dropped.Add(1)
			r.logger.Debug().Int("size", n).Msg("Receive queue full, dropping message")
		}
	}
}

func (r *Receiver) interfaceName(index int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ifNames[index]
}
