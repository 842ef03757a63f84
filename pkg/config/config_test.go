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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
)

var errTestInvalid = errors.New("listen address is required")

type testNATS struct {
	URL      string                 `json:"url"`
	Security *models.SecurityConfig `json:"security,omitempty"`
}

type testMonitor struct {
	LivenessWindow models.Duration `json:"liveness_window"`
	Sweep          time.Duration   `json:"sweep"`
}

type testConfig struct {
	ListenAddr  string            `json:"listen_addr"`
	Workers     int               `json:"workers"`
	Debug       bool              `json:"debug"`
	FamilyTypes []string          `json:"family_types"`
	Labels      map[string]string `json:"labels"`
	Expiration  *int              `json:"expiration,omitempty"`
	Monitor     testMonitor       `json:"monitor"`
	NATS        *testNATS         `json:"nats,omitempty"`
	Security    *models.SecurityConfig
	internal    string
}

func (c *testConfig) Validate() error {
	if c.ListenAddr == "" {
		return errTestInvalid
	}

	return nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "devscan.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestFileConfigLoader(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{
		"listen_addr": ":50051",
		"workers": 4,
		"family_types": ["Dx", "Dl"],
		"monitor": {"liveness_window": "45s", "sweep": 1000000000}
	}`)

	var cfg testConfig

	require.NoError(t, (&FileConfigLoader{}).Load(context.Background(), path, &cfg))
	assert.Equal(t, ":50051", cfg.ListenAddr)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, []string{"Dx", "Dl"}, cfg.FamilyTypes)
	assert.Equal(t, models.Duration(45*time.Second), cfg.Monitor.LivenessWindow)
	assert.Equal(t, time.Second, cfg.Monitor.Sweep)

	err := (&FileConfigLoader{}).Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"), &cfg)
	require.Error(t, err)

	err = (&FileConfigLoader{}).Load(context.Background(), "", &cfg)
	require.ErrorIs(t, err, errConfigPathRequired)

	bad := writeConfig(t, `{"workers": "four"}`)
	require.Error(t, (&FileConfigLoader{}).Load(context.Background(), bad, &cfg))
}

func TestFileConfigLoaderStrict(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := writeConfig(t, `{"listen_addr": ":50051", "wrokers": 4}`)

	var cfg testConfig

	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg))

	err := NewConfig(logger.NewTestLogger(), WithStrictFile()).LoadAndValidate(context.Background(), path, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrokers")
}

func TestEnvConfigLoaderFields(t *testing.T) {
	t.Setenv("TEST_LISTEN_ADDR", ":6000")
	t.Setenv("TEST_WORKERS", "8")
	t.Setenv("TEST_DEBUG", "true")
	t.Setenv("TEST_FAMILY_TYPES", "Dx, Dl ,Pn")
	t.Setenv("TEST_LABELS", `{"site":"lab"}`)
	t.Setenv("TEST_EXPIRATION", "90")
	t.Setenv("TEST_MONITOR_LIVENESS_WINDOW", "2m")
	t.Setenv("TEST_MONITOR_SWEEP", "250ms")

	var cfg testConfig

	loader := NewEnvConfigLoader(logger.NewTestLogger(), "TEST_")
	require.NoError(t, loader.Load(context.Background(), "", &cfg))

	assert.Equal(t, ":6000", cfg.ListenAddr)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"Dx", "Dl", "Pn"}, cfg.FamilyTypes)
	assert.Equal(t, map[string]string{"site": "lab"}, cfg.Labels)
	require.NotNil(t, cfg.Expiration)
	assert.Equal(t, 90, *cfg.Expiration)
	assert.Equal(t, models.Duration(2*time.Minute), cfg.Monitor.LivenessWindow)
	assert.Equal(t, 250*time.Millisecond, cfg.Monitor.Sweep)
	assert.Nil(t, cfg.NATS, "unset nested pointers stay nil")
	assert.Nil(t, cfg.Security, "fields without a json tag are skipped")
}

func TestEnvConfigLoaderNestedPointer(t *testing.T) {
	t.Setenv("TEST_NATS_URL", "nats://127.0.0.1:4222")
	t.Setenv("TEST_NATS_SECURITY_MODE", "mtls")
	t.Setenv("TEST_NATS_SECURITY_TLS_CERT_FILE", "client.pem")

	var cfg testConfig

	require.NoError(t, NewEnvConfigLoader(logger.NewTestLogger(), "TEST_").Load(context.Background(), "", &cfg))
	require.NotNil(t, cfg.NATS)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	require.NotNil(t, cfg.NATS.Security)
	assert.Equal(t, models.SecurityModeMTLS, cfg.NATS.Security.Mode)
	assert.Equal(t, "client.pem", cfg.NATS.Security.TLS.CertFile)
}

func TestEnvConfigLoaderErrors(t *testing.T) {
	loader := NewEnvConfigLoader(logger.NewTestLogger(), "TEST_")

	t.Setenv("TEST_WORKERS", "many")

	var cfg testConfig
	require.Error(t, loader.Load(context.Background(), "", &cfg))

	require.ErrorIs(t, loader.Load(context.Background(), "", cfg), ErrDstMustBeNonNilPointer)

	s := "not a struct"
	require.ErrorIs(t, loader.Load(context.Background(), "", &s), ErrDstMustBePointerToStruct)
}

func TestEnvConfigLoaderConfigJSON(t *testing.T) {
	t.Setenv("TEST_CONFIG_JSON", `{"listen_addr": ":7000", "workers": 2}`)
	t.Setenv("TEST_WORKERS", "9")

	var cfg testConfig

	require.NoError(t, NewEnvConfigLoader(logger.NewTestLogger(), "TEST_").Load(context.Background(), "", &cfg))
	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, 2, cfg.Workers, "CONFIG_JSON wins over single variables")
}

func TestLoadAndValidateFromFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := writeConfig(t, `{
		"listen_addr": ":50051",
		"nats": {
			"url": "nats://localhost:4222",
			"security": {
				"mode": "mtls",
				"cert_dir": "/etc/devscan/certs",
				"tls": {"cert_file": "client.pem", "key_file": "/keys/client-key.pem", "ca_file": "root.pem"}
			}
		}
	}`)

	var cfg testConfig

	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg))
	require.NotNil(t, cfg.NATS)
	require.NotNil(t, cfg.NATS.Security)

	tlsCfg := cfg.NATS.Security.TLS
	assert.Equal(t, "/etc/devscan/certs/client.pem", tlsCfg.CertFile)
	assert.Equal(t, "/keys/client-key.pem", tlsCfg.KeyFile)
	assert.Equal(t, "/etc/devscan/certs/root.pem", tlsCfg.CAFile)
}

func TestLoadAndValidateRunsValidator(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := writeConfig(t, `{"workers": 1}`)

	var cfg testConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.ErrorIs(t, err, errTestInvalid)
}

func TestLoadAndValidateFromEnv(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "ENV")
	t.Setenv("CONFIG_ENV_PREFIX", "")
	t.Setenv("DEVSCAN_LISTEN_ADDR", ":9000")

	var cfg testConfig

	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "ignored.json", &cfg))
	assert.Equal(t, ":9000", cfg.ListenAddr)
}

func TestLoadAndValidateRejectsUnknownSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	var cfg testConfig

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "devscan.json", &cfg)
	require.ErrorIs(t, err, errInvalidConfigSource)
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateConfig(struct{}{}))
	require.ErrorIs(t, ValidateConfig(&testConfig{}), errTestInvalid)
	require.NoError(t, ValidateConfig(&testConfig{ListenAddr: ":1"}))
}

func TestNormalizeSecurityConfigRequiresPointer(t *testing.T) {
	t.Parallel()

	c := NewConfig(logger.NewTestLogger())
	require.ErrorIs(t, c.normalizeSecurityConfig(testConfig{}), errInvalidConfigPtr)

	var nilCfg *testConfig
	require.ErrorIs(t, c.normalizeSecurityConfig(nilCfg), errInvalidConfigPtr)

	cfg := &testConfig{Security: &models.SecurityConfig{TLS: models.TLSConfig{CertFile: "a.pem"}}}
	require.NoError(t, c.normalizeSecurityConfig(cfg))
	assert.Equal(t, "a.pem", cfg.Security.TLS.CertFile, "no cert dir leaves paths alone")
}
