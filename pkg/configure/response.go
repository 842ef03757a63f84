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

// Package configure sends configure requests to devices and matches the
// responses that come back on the configure group.
package configure

import (
	"bytes"
	"encoding/json"

	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
)

type responseEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

// ResponseDeserializer recognizes JSON-RPC responses. A frame is a response
// when it has an id that is neither null nor the empty string and exactly one
// of result and error.
type ResponseDeserializer struct {
	logger logger.Logger
}

// NewResponseDeserializer creates a deserializer that logs drops at debug level.
func NewResponseDeserializer(log logger.Logger) *ResponseDeserializer {
	return &ResponseDeserializer{logger: log}
}

// Parse returns the response carried by msg, or false for anything else.
// Numeric ids are kept in their literal form, so 42 and "42" correlate alike.
func (d *ResponseDeserializer) Parse(msg string) (*models.Response, bool) {
	resp, reason := parseResponse([]byte(msg))
	if resp == nil {
		d.logger.Debug().Str("reason", reason).Int("size", len(msg)).Msg("Dropping non-response message")

		return nil, false
	}

	return resp, true
}

func parseResponse(data []byte) (*models.Response, string) {
	var env responseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "invalid_json"
	}

	id, ok := responseID(env.ID)
	if !ok {
		return nil, "no_id"
	}

	hasResult := env.Result != nil
	hasError := env.Error != nil

	if hasResult == hasError {
		return nil, "result_error_mismatch"
	}

	resp := &models.Response{JSONRPC: env.JSONRPC, ID: id}

	if hasResult {
		resp.Result = env.Result

		return resp, ""
	}

	var rpcErr models.RPCError
	if bytes.Equal(bytes.TrimSpace(env.Error), []byte("null")) || json.Unmarshal(env.Error, &rpcErr) != nil {
		return nil, "malformed_error"
	}

	resp.Error = &rpcErr

	return resp, ""
}

// responseID accepts string and number ids. Absent, null and "" are not ids.
func responseID(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false
		}

		return s, true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(raw), true
	default:
		return "", false
	}
}
