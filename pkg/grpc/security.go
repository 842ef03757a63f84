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


package grpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
)

var (
	errSecurityConfigRequired = errors.New("security configuration is required")
	errUnknownSecurityMode    = errors.New("unknown security mode")
	errFailedToLoadClientCert = errors.New("failed to load client certificate")
	errFailedToLoadServerCert = errors.New("failed to load server certificate")
	errFailedToReadCACert     = errors.New("failed to read CA certificate")
	errFailedToAppendCACert   = errors.New("failed to append CA certificate")
)

// SecurityProvider supplies transport credentials for gRPC clients and servers.
type SecurityProvider interface {
	GetClientCredentials(ctx context.Context) (grpc.DialOption, error)
	GetServerCredentials(ctx context.Context) (grpc.ServerOption, error)
	Close() error
}

// NoSecurityProvider implements SecurityProvider with no security (development only).
type NoSecurityProvider struct{}

func (*NoSecurityProvider) GetClientCredentials(context.Context) (grpc.DialOption, error) {
	return grpc.WithTransportCredentials(insecure.NewCredentials()), nil
}

func (*NoSecurityProvider) GetServerCredentials(context.Context) (grpc.ServerOption, error) {
	return grpc.Creds(insecure.NewCredentials()), nil
}

func (*NoSecurityProvider) Close() error {
	return nil
}

// MTLSProvider implements SecurityProvider with mutual TLS. Clients and
// servers trust the same CA file.
type MTLSProvider struct {
	config      *models.SecurityConfig
	clientCreds credentials.TransportCredentials
	serverCreds credentials.TransportCredentials
	closeOnce   sync.Once
	logger      logger.Logger
}

// NewMTLSProvider loads both client and server credentials from config.TLS.
func NewMTLSProvider(config *models.SecurityConfig, log logger.Logger) (*MTLSProvider, error) {
	if config == nil {
		return nil, errSecurityConfigRequired
	}

	if config.TLS.CertFile == "" || config.TLS.KeyFile == "" || config.TLS.CAFile == "" {
		return nil, fmt.Errorf("%w: mtls needs tls.cert_file, tls.key_file and tls.ca_file", errSecurityConfigRequired)
	}

	certPath, keyPath, caPath := resolvePaths(config)

	log.Info().
		Str("cert_file", certPath).
		Str("ca_file", caPath).
		Msg("Initializing mTLS provider")

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToLoadServerCert, err)
	}

	caPool, err := loadCAPool(caPath)
	if err != nil {
		return nil, err
	}

	return &MTLSProvider{
		config: config,
		clientCreds: credentials.NewTLS(&tls.Config{
			Certificates: []tls.Certificate{cert},
			RootCAs:      caPool,
			ServerName:   config.ServerName,
			MinVersion:   tls.VersionTLS13,
		}),
		serverCreds: credentials.NewTLS(&tls.Config{
			Certificates: []tls.Certificate{cert},
			ClientCAs:    caPool,
			ClientAuth:   tls.RequireAndVerifyClientCert,
			MinVersion:   tls.VersionTLS13,
		}),
		logger: log,
	}, nil
}

// NewMTLSClientCredentials builds client credentials from a certificate pair
// that differs from the one the provider serves with.
func NewMTLSClientCredentials(config *models.SecurityConfig) (grpc.DialOption, error) {
	if config == nil {
		return nil, errSecurityConfigRequired
	}

	certPath, keyPath, caPath := resolvePaths(config)

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToLoadClientCert, err)
	}

	caPool, err := loadCAPool(caPath)
	if err != nil {
		return nil, err
	}

	return grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		ServerName:   config.ServerName,
		MinVersion:   tls.VersionTLS13,
	})), nil
}

// resolvePaths joins relative TLS paths with CertDir.
func resolvePaths(config *models.SecurityConfig) (certPath, keyPath, caPath string) {
	paths := []string{config.TLS.CertFile, config.TLS.KeyFile, config.TLS.CAFile}

	for i, p := range paths {
		if p != "" && !filepath.IsAbs(p) && config.CertDir != "" {
			paths[i] = filepath.Join(config.CertDir, p)
		}
	}

	return paths[0], paths[1], paths[2]
}

func loadCAPool(caPath string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedToReadCACert, err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("%w: no certificates in %s", errFailedToAppendCACert, caPath)
	}

	return caPool, nil
}

func (p *MTLSProvider) GetClientCredentials(_ context.Context) (grpc.DialOption, error) {
	return grpc.WithTransportCredentials(p.clientCreds), nil
}

func (p *MTLSProvider) GetServerCredentials(_ context.Context) (grpc.ServerOption, error) {
	return grpc.Creds(p.serverCreds), nil
}

func (p *MTLSProvider) Close() error {
	p.closeOnce.Do(func() {
		p.logger.Debug().Msg("Closed mTLS provider")
	})

	return nil
}

// NewSecurityProvider returns the provider for config.Mode. A nil config or
// an empty mode yields a NoSecurityProvider.
func NewSecurityProvider(_ context.Context, config *models.SecurityConfig, log logger.Logger) (SecurityProvider, error) {
	if config == nil || config.Mode == "" {
		log.Warn().Msg("No security configuration provided, using no security")

		return &NoSecurityProvider{}, nil
	}

	switch config.Mode {
	case models.SecurityModeNone:
		return &NoSecurityProvider{}, nil
	case models.SecurityModeMTLS:
		provider, err := NewMTLSProvider(config, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create mTLS provider: %w", err)
		}

		return provider, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownSecurityMode, config.Mode)
	}
}
