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

package configure

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
	"github.com/carverauto/devscan/pkg/transport"
)

// Service sends configure requests and waits for the matching response.
type Service struct {
	sender     Sender
	source     transport.Source
	parser     *ResponseDeserializer
	correlator *Correlator
	logger     logger.Logger
	newID      func() string

	done     chan struct{}
	doneOnce sync.Once
}

// NewService creates a service that sends through sender and reads responses from source.
func NewService(sender Sender, source transport.Source, log logger.Logger) *Service {
	return &Service{
		sender:     sender,
		source:     source,
		parser:     NewResponseDeserializer(log),
		correlator: NewCorrelator(),
		logger:     log,
		newID:      uuid.NewString,
		done:       make(chan struct{}),
	}
}

// Run feeds responses from the source to waiting requests until ctx is done
// or the source is closed. Requests still waiting afterwards fail with
// ErrServiceStopped.
func (s *Service) Run(ctx context.Context) error {
	defer s.doneOnce.Do(func() { close(s.done) })

	messages := s.source.Messages()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			s.handle(msg)
		}
	}
}

func (s *Service) handle(msg transport.Message) {
	resp, ok := s.parser.Parse(msg.Payload)
	if !ok {
		return
	}

	if !s.correlator.Deliver(resp) {
		s.logger.Debug().Str("id", resp.ID).Msg("Response without pending request")
	}
}

// SendConfiguration sends params under a fresh query id and waits for the
// device's response or until ctx is done. A device error is returned as the
// Error of the response, not as err.
func (s *Service) SendConfiguration(ctx context.Context, params *models.ConfigureParams) (*models.Response, error) {
	queryID := s.newID()

	req, err := models.NewConfigurationRequest(params, queryID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode configure request: %w", err)
	}

	ch, err := s.correlator.Register(queryID)
	if err != nil {
		return nil, err
	}
	defer s.correlator.Cancel(queryID)

	if err := s.sender.Send(ctx, payload, params.TTL); err != nil {
		return nil, fmt.Errorf("failed to send configure request: %w", err)
	}

	s.logger.Info().
		Str("query_id", queryID).
		Str("device", params.Device.UUID).
		Int("ttl", params.TTL).
		Msg("Configure request sent")

	select {
	case resp := <-ch:
		return resp, nil
	case <-s.done:
		return nil, fmt.Errorf("%w: query %s", ErrServiceStopped, queryID)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w for %s: %w", ErrNoResponse, queryID, ctx.Err())
	}
}
