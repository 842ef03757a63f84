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


// Package logger provides JSON structured logging using zerolog
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a Logger writing JSON lines with a timestamp to w.
func New(w io.Writer, level zerolog.Level) Logger {
	return Wrap(zerolog.New(w).Level(level).With().Timestamp().Logger())
}

// Wrap adapts an existing zerolog.Logger.
func Wrap(zlog zerolog.Logger) Logger {
	return &zeroLogger{logger: zlog}
}

// zeroLogger is the Logger implementation shared by the daemon, the CLI and tests.
type zeroLogger struct {
	logger zerolog.Logger
}

func (l *zeroLogger) Trace() *zerolog.Event { return l.logger.Trace() }
func (l *zeroLogger) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *zeroLogger) Info() *zerolog.Event  { return l.logger.Info() }
func (l *zeroLogger) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *zeroLogger) Error() *zerolog.Event { return l.logger.Error() }
func (l *zeroLogger) Fatal() *zerolog.Event { return l.logger.Fatal() }
func (l *zeroLogger) Panic() *zerolog.Event { return l.logger.Panic() }
func (l *zeroLogger) With() zerolog.Context { return l.logger.With() }

func (l *zeroLogger) WithComponent(component string) zerolog.Logger {
	return l.logger.With().Str("component", component).Logger()
}

func (l *zeroLogger) WithFields(fields map[string]interface{}) zerolog.Logger {
	return l.logger.With().Fields(fields).Logger()
}

func (l *zeroLogger) SetLevel(level zerolog.Level) {
	l.logger = l.logger.Level(level)
}

func (l *zeroLogger) SetDebug(debug bool) {
	if debug {
		l.SetLevel(zerolog.DebugLevel)
	} else {
		l.SetLevel(zerolog.InfoLevel)
	}
}

// Writer returns the destination selected by Output. "console" and "stdout"
// both write to stdout; the console form is decided by the caller.
func (c *Config) Writer() io.Writer {
	if c.Output == OutputStderr {
		return os.Stderr
	}

	return os.Stdout
}

// ParseLevel resolves the effective level. Debug overrides Level.
func (c *Config) ParseLevel() (zerolog.Level, error) {
	if c.Debug {
		return zerolog.DebugLevel, nil
	}

	if c.Level == "" {
		return zerolog.InfoLevel, nil
	}

	return zerolog.ParseLevel(c.Level)
}
