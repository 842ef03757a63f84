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


package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	OutputStdout  = "stdout"
	OutputStderr  = "stderr"
	OutputConsole = "console"

	envPrefix = "DEVSCAN_"
)

var errInvalidOutput = errors.New("invalid log output")

// Config selects the level and destination of service logs.
type Config struct {
	Level      string `json:"level"`
	Debug      bool   `json:"debug"`
	Output     string `json:"output"`
	TimeFormat string `json:"time_format"`
}

// DefaultConfig reads DEVSCAN_LOG_LEVEL, DEVSCAN_DEBUG, DEVSCAN_LOG_OUTPUT and
// DEVSCAN_LOG_TIME_FORMAT.
func DefaultConfig() *Config {
	return &Config{
		Level:      getEnvOrDefault(envPrefix+"LOG_LEVEL", "info"),
		Debug:      getEnvBoolOrDefault(envPrefix+"DEBUG", false),
		Output:     getEnvOrDefault(envPrefix+"LOG_OUTPUT", OutputStdout),
		TimeFormat: getEnvOrDefault(envPrefix+"LOG_TIME_FORMAT", ""),
	}
}

// Validate checks the level and output names.
func (c *Config) Validate() error {
	switch c.Output {
	case "", OutputStdout, OutputStderr, OutputConsole:
	default:
		return fmt.Errorf("%w: %q", errInvalidOutput, c.Output)
	}

	if c.Level == "" {
		return nil
	}

	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	value = strings.ToLower(value)

	return value == "true" || value == "1" || value == "yes" || value == "on"
}
