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

// Package transport moves protocol frames over IPv4 multicast.
package transport

//go:generate mockgen -destination=mock_transport.go -package=transport github.com/carverauto/devscan/pkg/transport Source

import (
	"context"
	"net"
	"sync"
)

// Message is one received datagram.
type Message struct {
	Payload string
	From    net.Addr
	// Interface is the name of the interface the datagram arrived on, when known.
	Interface string
}

// Source delivers received messages. The channel is closed when the source stops.
type Source interface {
	Messages() <-chan Message
}

// ChanSource is an in-memory Source fed by Send.
type ChanSource struct {
	ch        chan Message
	closeOnce sync.Once
}

// NewChanSource creates a source buffering up to size messages.
func NewChanSource(size int) *ChanSource {
	return &ChanSource{ch: make(chan Message, size)}
}

func (s *ChanSource) Messages() <-chan Message {
	return s.ch
}

// Send queues a message, waiting for buffer space until ctx is done.
func (s *ChanSource) Send(ctx context.Context, payload string) error {
	select {
	case s.ch <- Message{Payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the message channel. Send must not be called afterwards.
func (s *ChanSource) Close() {
	s.closeOnce.Do(func() { close(s.ch) })
}
