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


package lifecycle

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devscan/pkg/logger"
)

func TestCreateComponentLogger(t *testing.T) {
	log, err := CreateComponentLogger("devscan", &logger.Config{Level: "warn", Output: logger.OutputStderr})
	require.NoError(t, err)

	log.SetDebug(true)
	assert.Equal(t, zerolog.DebugLevel, log.WithComponent("x").GetLevel())
}

func TestCreateLoggerRejectsBadConfig(t *testing.T) {
	_, err := CreateLogger(&logger.Config{Level: "loud"})
	require.Error(t, err)

	_, err = CreateComponentLogger("devscan", &logger.Config{Output: "syslog"})
	require.Error(t, err)
}

func TestOutputFor(t *testing.T) {
	assert.Equal(t, os.Stderr, outputFor(&logger.Config{Output: logger.OutputStderr}, ""))
	assert.Equal(t, os.Stdout, outputFor(&logger.Config{}, ""))
}
