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


// Package main is the devscan daemon: it listens for device announces,
// tracks which devices are present and reports every change.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/devscan/pkg/config"
	"github.com/carverauto/devscan/pkg/connfinder"
	"github.com/carverauto/devscan/pkg/grpc"
	"github.com/carverauto/devscan/pkg/lifecycle"
	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/natsutil"
	"github.com/carverauto/devscan/pkg/scanner"
	"github.com/carverauto/devscan/pkg/transport"
)

const (
	serviceName     = "devscan"
	shutdownTimeout = 10 * time.Second
	healthDisabled  = "-"
)

var (
	errFailedToLoadConfig    = errors.New("failed to load devscan configuration")
	errFailedToInitLogger    = errors.New("failed to initialize logger")
	errFailedToInitPublisher = errors.New("failed to initialize event publisher")
	errFailedToInitHealth    = errors.New("failed to initialize health server")
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configFile := flag.String("config", "/etc/devscan/devscan.json", "Path to devscan config file")
	strict := flag.Bool("strict-config", false, "Reject unknown keys in the config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg scanner.Config

	var loadOpts []config.Option
	if *strict {
		loadOpts = append(loadOpts, config.WithStrictFile())
	}

	if err := config.NewConfig(nil, loadOpts...).LoadAndValidate(ctx, *configFile, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	mainLogger, err := lifecycle.CreateComponentLogger(serviceName, logConfig)
	if err != nil {
		return fmt.Errorf("%w: %w", errFailedToInitLogger, err)
	}

	if cfg.Metrics != nil {
		if _, err := logger.InitializeMetrics(ctx, cfg.Metrics); err != nil && !errors.Is(err, logger.ErrOTelMetricsDisabled) {
			mainLogger.Warn().Err(err).Msg("Metrics export disabled")
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			_ = logger.ShutdownMetrics(shutdownCtx)
		}()
	}

	locals, err := connfinder.LocalAddresses(ctx, cfg.LocalInterfaces...)
	if err != nil {
		return fmt.Errorf("failed to list local addresses: %w", err)
	}

	finder := connfinder.NewConnectionFinder(locals)

	mainLogger.Info().Int("local_addresses", len(locals)).Msg("Resolved local addresses")

	receiver, err := transport.NewReceiver(cfg.Receiver, mainLogger)
	if err != nil {
		return err
	}

	opts := []scanner.Option{
		scanner.WithListener(scanner.NewEventLogger(finder, mainLogger)),
	}

	if cfg.Events != nil && cfg.Events.Enabled {
		nc, err := natsutil.ConnectWithSecurity(cfg.NATS.URL, cfg.NATS.Security, mainLogger)
		if err != nil {
			return fmt.Errorf("%w: %w", errFailedToInitPublisher, err)
		}

		// Drain after the scanner has flushed its last events.
		defer func() {
			if err := nc.Drain(); err != nil {
				mainLogger.Warn().Err(err).Msg("Failed to drain NATS connection")
			}
		}()

		publisher, err := natsutil.CreateEventPublisher(ctx, nc, cfg.NATS, cfg.Events, mainLogger,
			natsutil.WithAddressResolver(finder))
		if err != nil {
			return fmt.Errorf("%w: %w", errFailedToInitPublisher, err)
		}

		opts = append(opts, scanner.WithListener(publisher))

		mainLogger.Info().Str("stream", publisher.Stream()).Msg("Publishing device events to NATS")
	}

	scan, err := scanner.New(&cfg, receiver, mainLogger, opts...)
	if err != nil {
		return err
	}

	// Credentials are loaded before any goroutine starts so a bad
	// certificate fails startup without leaving workers behind.
	health, closeHealth, err := newHealthServer(ctx, &cfg, mainLogger)
	if err != nil {
		return err
	}

	defer closeHealth()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(receiver.Run(gctx))
	})

	g.Go(func() error {
		return ignoreCanceled(scan.Run(gctx))
	})

	if health != nil {
		g.Go(func() error {
			return health.Start(gctx)
		})

		g.Go(func() error {
			<-gctx.Done()
			health.Stop(context.Background())

			return nil
		})
	}

	mainLogger.Info().Str("group", cfg.Receiver.Group).Msg("Starting devscan")

	if err := g.Wait(); err != nil {
		return err
	}

	mainLogger.Info().Msg("devscan stopped")

	return nil
}

// newHealthServer builds the health endpoint with the configured transport
// security. It returns a nil server when the endpoint is disabled.
func newHealthServer(ctx context.Context, cfg *scanner.Config, serverLogger logger.Logger) (*grpc.Server, func(), error) {
	if cfg.ListenAddr == healthDisabled {
		return nil, func() {}, nil
	}

	provider, err := grpc.NewSecurityProvider(ctx, cfg.Security, serverLogger)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errFailedToInitHealth, err)
	}

	creds, err := provider.GetServerCredentials(ctx)
	if err != nil {
		_ = provider.Close()

		return nil, nil, fmt.Errorf("%w: %w", errFailedToInitHealth, err)
	}

	health := grpc.NewServer(cfg.ListenAddr, serverLogger, grpc.WithServerOptions(creds))
	health.SetServing("", true)
	health.SetServing(serviceName, true)

	return health, func() { _ = provider.Close() }, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
