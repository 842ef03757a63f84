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

package natsutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
)

// ConnectWithSecurity creates a NATS connection with security configuration.
func ConnectWithSecurity(natsURL string, security *models.SecurityConfig, log logger.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	var opts []nats.Option

	if security != nil && security.Mode == models.SecurityModeMTLS {
		tlsConf, err := TLSConfig(security)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts,
			nats.Secure(tlsConf),
			nats.RootCAs(security.TLS.CAFile),
			nats.ClientCert(security.TLS.CertFile, security.TLS.KeyFile),
		)
	}

	opts = append(opts,
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}

// CreateEventPublisher creates an EventPublisher for an existing NATS connection,
// creating the stream or widening its subjects when needed.
func CreateEventPublisher(
	ctx context.Context, nc *nats.Conn, natsCfg *models.NATSConfig, events *models.EventsConfig,
	log logger.Logger, opts ...Option) (*EventPublisher, error) {
	if events == nil {
		return nil, errEventsConfigRequired
	}

	var domain string
	if natsCfg != nil {
		domain = natsCfg.Domain
	}

	return CreateEventPublisherWithDomain(ctx, nc, domain, events.StreamName, events.Subjects, log, opts...)
}

// CreateEventPublisherWithDomain creates an EventPublisher with optional NATS domain support.
func CreateEventPublisherWithDomain(
	ctx context.Context, nc *nats.Conn, domain, streamName string, subjects []string,
	log logger.Logger, opts ...Option) (*EventPublisher, error) {
	var js jetstream.JetStream

	var err error

	if domain != "" {
		js, err = jetstream.NewWithDomain(nc, domain)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", domain, err)
		}

		log.Debug().Str("domain", domain).Msg("Created JetStream context with domain")
	} else {
		js, err = jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
	}

	publisher := NewEventPublisher(js, streamName, log, opts...)

	if err := ensureStream(ctx, js, streamName, subjects, publisher.prefix+".*", log); err != nil {
		return nil, err
	}

	return publisher, nil
}

// ensureStream makes sure streamName exists and captures required.
func ensureStream(ctx context.Context, js jetstream.JetStream, streamName string, subjects []string, required string, log logger.Logger) error {
	stream, err := js.Stream(ctx, streamName)
	if err != nil {
		if !isStreamMissingErr(err) {
			return fmt.Errorf("failed to look up stream %s: %w", streamName, err)
		}

		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: ensureSubjectList(slices.Clone(subjects), required),
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}

		log.Info().Str("stream", streamName).Msg("Created NATS JetStream stream")

		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stream info for %s: %w", streamName, err)
	}

	cfg := info.Config

	updated := ensureSubjectList(slices.Clone(cfg.Subjects), required)
	if len(updated) == len(cfg.Subjects) {
		return nil
	}

	cfg.Subjects = updated

	if _, err := js.UpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to add subject %s to stream %s: %w", required, streamName, err)
	}

	log.Info().Str("stream", streamName).Str("subject", required).Msg("Added subject to NATS JetStream stream")

	return nil
}

// ensureSubjectList appends subject unless an existing pattern already captures it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, pattern := range subjects {
		if matchesSubject(pattern, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject applies NATS wildcard rules: "*" matches one token, ">" the rest.
func matchesSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}

	patternTokens := strings.Split(pattern, ".")
	subjectTokens := strings.Split(subject, ".")

	for i, token := range patternTokens {
		if token == ">" {
			return i < len(subjectTokens)
		}

		if i >= len(subjectTokens) {
			return false
		}

		if token != "*" && token != subjectTokens[i] {
			return false
		}
	}

	return len(patternTokens) == len(subjectTokens)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}
