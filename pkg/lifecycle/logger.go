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


// Package lifecycle builds the process logger of the devscan binaries.
package lifecycle

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/carverauto/devscan/pkg/logger"
)

// CreateLogger creates a logger from config. A nil config falls back to
// logger.DefaultConfig. The result also becomes zerolog's global logger so
// that libraries logging through zerolog/log end up in the same stream.
func CreateLogger(config *logger.Config) (logger.Logger, error) {
	zlog, err := newZerolog(config)
	if err != nil {
		return nil, err
	}

	log.Logger = zlog

	return logger.Wrap(zlog), nil
}

// CreateComponentLogger creates a logger tagging every event with component.
func CreateComponentLogger(component string, config *logger.Config) (logger.Logger, error) {
	zlog, err := newZerolog(config)
	if err != nil {
		return nil, err
	}

	log.Logger = zlog

	return logger.Wrap(zlog.With().Str("component", component).Logger()), nil
}

func newZerolog(config *logger.Config) (zerolog.Logger, error) {
	if config == nil {
		config = logger.DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return zerolog.Logger{}, fmt.Errorf("failed to initialize logger: %w", err)
	}

	level, err := config.ParseLevel()
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("failed to initialize logger: %w", err)
	}

	timeFormat := time.RFC3339
	if config.TimeFormat != "" {
		timeFormat = config.TimeFormat
	}

	zerolog.TimeFieldFormat = timeFormat

	return zerolog.New(outputFor(config, timeFormat)).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

// outputFor picks the writer. Console output falls back to JSON on stdout
// when stdout is not a terminal, so piped output stays machine readable.
func outputFor(config *logger.Config, timeFormat string) io.Writer {
	if config.Output != logger.OutputConsole {
		return config.Writer()
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return os.Stdout
	}

	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat}
}
