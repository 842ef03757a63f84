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

// Package grpc serves the gRPC health endpoint of the scan daemon.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/carverauto/devscan/pkg/logger"
)

// ServerOption is a function type that modifies Server configuration.
type ServerOption func(*Server)

var (
	errInternalError  = errors.New("internal error")
	errAlreadyStarted = errors.New("server already started")
)

const (
	shutdownTimer = 5 * time.Second
)

// Server wraps a gRPC server exposing the standard health service.
type Server struct {
	srv         *grpc.Server
	healthCheck *health.Server
	addr        string
	logger      logger.Logger
	mu          sync.Mutex
	services    map[string]struct{}
	serverOpts  []grpc.ServerOption
	listener    net.Listener
}

// NewServer creates a new gRPC server with the health service registered.
func NewServer(addr string, log logger.Logger, opts ...ServerOption) *Server {
	s := &Server{
		addr:     addr,
		logger:   log,
		services: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.serverOpts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(RecoveryInterceptor(log)),
	}, s.serverOpts...)

	s.srv = grpc.NewServer(s.serverOpts...)
	s.healthCheck = health.NewServer()

	healthpb.RegisterHealthServer(s.srv, s.healthCheck)

	// Enable reflection for debugging
	reflection.Register(s.srv)

	return s
}

// WithServerOptions adds gRPC server options.
func WithServerOptions(opt ...grpc.ServerOption) ServerOption {
	return func(s *Server) {
		s.serverOpts = append(s.serverOpts, opt...)
	}
}

// SetServing reports the health of a named service. The empty name is the
// overall server status.
func (s *Server) SetServing(service string, serving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.services[service] = struct{}{}
	s.healthCheck.SetServingStatus(service, status)
}

// Addr returns the bound address once Start has been called, or the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.addr
}

// Start listens and serves until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.listener != nil {
		s.mu.Unlock()

		return errAlreadyStarted
	}

	lc := &net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		s.mu.Unlock()

		return fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = lis
	s.mu.Unlock()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")

	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()

	for service := range s.services {
		s.healthCheck.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	s.healthCheck.Shutdown()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, shutdownTimer)
	defer cancel()

	stopped := make(chan struct{})

	go func() {
		s.srv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info().Msg("gRPC server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn().Msg("gRPC server shutdown timed out, forcing stop")
		s.srv.Stop()
	}
}

// RecoveryInterceptor handles panics in RPC handlers.
func RecoveryInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("method", info.FullMethod).Interface("panic", r).Msg("Recovered from panic")

				err = errInternalError
			}
		}()

		return handler(ctx, req)
	}
}
