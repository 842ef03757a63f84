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

// Package announce turns raw announce datagrams into validated announces and
// resolves the communication path each one arrived on.
package announce

import (
	"bytes"
	"encoding/json"

	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
)

// DropReason says why a message did not become an announce.
type DropReason string

const (
	DropNone         DropReason = ""
	DropInvalidJSON  DropReason = "invalid_json"
	DropResponse     DropReason = "response"
	DropWrongMethod  DropReason = "wrong_method"
	DropHasID        DropReason = "has_id"
	DropMissingField DropReason = "missing_field"
)

// envelope keeps the top-level members raw so presence can be told apart from null.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  *string         `json:"method"`
	ID      json.RawMessage `json:"id"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

// requiredFields mirrors the members every announce must carry.
type requiredFields struct {
	Device *struct {
		UUID *string `json:"uuid"`
	} `json:"device"`
	NetSettings *struct {
		Interface *struct {
			Name *string `json:"name"`
		} `json:"interface"`
	} `json:"netSettings"`
}

// Deserializer validates announce messages. It is stateless and safe for concurrent use.
type Deserializer struct {
	logger logger.Logger
}

// NewDeserializer creates a Deserializer that logs drops at debug level.
func NewDeserializer(log logger.Logger) *Deserializer {
	return &Deserializer{logger: log}
}

// Parse returns the announce carried by msg, or false if msg is not a valid announce.
func (d *Deserializer) Parse(msg string) (*models.Announce, bool) {
	a, reason := d.ParseWithReason(msg)

	return a, reason == DropNone
}

// ParseWithReason is Parse but reports why a message was dropped.
func (d *Deserializer) ParseWithReason(msg string) (*models.Announce, DropReason) {
	a, reason := parseAnnounce([]byte(msg))
	if reason != DropNone {
		d.logger.Debug().Str("reason", string(reason)).Int("size", len(msg)).Msg("Dropping message")

		return nil, reason
	}

	return a, DropNone
}

func parseAnnounce(data []byte) (*models.Announce, DropReason) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, DropInvalidJSON
	}

	if env.Result != nil || env.Error != nil {
		return nil, DropResponse
	}

	if env.Method == nil || *env.Method != models.MethodAnnounce {
		return nil, DropWrongMethod
	}

	if hasNonEmptyID(env.ID) {
		return nil, DropHasID
	}

	if isNull(env.Params) {
		return nil, DropMissingField
	}

	var req requiredFields
	if err := json.Unmarshal(env.Params, &req); err != nil {
		return nil, DropInvalidJSON
	}

	if !req.complete() {
		return nil, DropMissingField
	}

	a := &models.Announce{
		JSONRPC: env.JSONRPC,
		Method:  *env.Method,
	}

	if err := json.Unmarshal(env.Params, &a.Params); err != nil {
		return nil, DropInvalidJSON
	}

	return a, DropNone
}

func (r *requiredFields) complete() bool {
	if r.Device == nil || r.Device.UUID == nil || *r.Device.UUID == "" {
		return false
	}

	if r.NetSettings == nil || r.NetSettings.Interface == nil {
		return false
	}

	return r.NetSettings.Interface.Name != nil && *r.NetSettings.Interface.Name != ""
}

// hasNonEmptyID reports whether an id member is present with a value other than null or "".
func hasNonEmptyID(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}

	return !bytes.Equal(bytes.TrimSpace(raw), []byte(`""`))
}

func isNull(raw json.RawMessage) bool {
	return raw == nil || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
