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

// Package config loads service configuration from a JSON file or the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
)

var (
	errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")
	errInvalidConfigPtr    = errors.New("config must be a non-nil pointer")
)

const (
	configSourceFile = "file"
	configSourceEnv  = "env"

	// DefaultEnvPrefix is used when CONFIG_SOURCE=env and CONFIG_ENV_PREFIX is unset.
	DefaultEnvPrefix = "DEVSCAN_"
)

var securityConfigType = reflect.TypeOf((*models.SecurityConfig)(nil))

// Config holds the configuration loading dependencies.
type Config struct {
	defaultLoader ConfigLoader
	logger        logger.Logger
}

// Option customizes a Config.
type Option func(*Config)

// WithStrictFile makes the file loader reject unknown keys.
func WithStrictFile() Option {
	return func(c *Config) {
		c.defaultLoader = &FileConfigLoader{DisallowUnknownFields: true}
	}
}

// NewConfig initializes a new Config instance with a default file loader.
// If log is nil, warnings go to stderr.
func NewConfig(log logger.Logger, opts ...Option) *Config {
	if log == nil {
		log = logger.New(os.Stderr, zerolog.WarnLevel)
	}

	c := &Config{
		defaultLoader: &FileConfigLoader{},
		logger:        log,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}

// LoadAndValidate loads a configuration, normalizes SecurityConfig paths if present, and validates it.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	loader, err := c.loaderFromEnv()
	if err != nil {
		return err
	}

	if err := loader.Load(ctx, path, cfg); err != nil {
		return err
	}

	if err := c.normalizeSecurityConfig(cfg); err != nil {
		return fmt.Errorf("failed to normalize SecurityConfig: %w", err)
	}

	return ValidateConfig(cfg)
}

// loaderFromEnv picks the loader named by CONFIG_SOURCE.
func (c *Config) loaderFromEnv() (ConfigLoader, error) {
	source := strings.ToLower(os.Getenv("CONFIG_SOURCE"))

	switch source {
	case configSourceEnv:
		prefix := os.Getenv("CONFIG_ENV_PREFIX")
		if prefix == "" {
			prefix = DefaultEnvPrefix
		}

		return NewEnvConfigLoader(c.logger, prefix), nil
	case configSourceFile, "":
		return c.defaultLoader, nil
	default:
		return nil, fmt.Errorf("%w: %s (expected '%s' or '%s')",
			errInvalidConfigSource, source, configSourceFile, configSourceEnv)
	}
}

// normalizeSecurityConfig resolves relative TLS paths of every *models.SecurityConfig
// reachable from cfg through struct fields and struct pointers.
func (c *Config) normalizeSecurityConfig(cfg interface{}) error {
	v := reflect.ValueOf(cfg)

	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errInvalidConfigPtr
	}

	c.walkSecurity(v.Elem())

	return nil
}

func (c *Config) walkSecurity(v reflect.Value) {
	if v.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanInterface() {
			continue
		}

		switch {
		case field.Type() == securityConfigType:
			if !field.IsNil() {
				sec := field.Interface().(*models.SecurityConfig)
				c.normalizeTLSPaths(&sec.TLS, sec.CertDir)
			}
		case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
			if !field.IsNil() {
				c.walkSecurity(field.Elem())
			}
		case field.Kind() == reflect.Struct:
			c.walkSecurity(field)
		}
	}
}

// normalizeTLSPaths adjusts TLS file paths based on the certificate directory.
func (c *Config) normalizeTLSPaths(tls *models.TLSConfig, certDir string) {
	if certDir == "" {
		return
	}

	for _, p := range []*string{&tls.CertFile, &tls.KeyFile, &tls.CAFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(certDir, *p)
		}
	}

	c.logger.Debug().
		Str("cert_file", tls.CertFile).
		Str("key_file", tls.KeyFile).
		Str("ca_file", tls.CAFile).
		Msg("Normalized TLS paths")
}
