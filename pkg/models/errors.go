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

package models

import "errors"

var (
	// ErrMissingRequiredField is returned when data that must have been validated
	// upstream is absent. Seeing it means a caller broke a contract.
	ErrMissingRequiredField = errors.New("missing required field")

	ErrInvalidConfiguration    = errors.New("invalid configuration request")
	ErrEmptyQueryID            = errors.New("query id must not be empty")
	ErrInvalidTTL              = errors.New("ttl must be greater than zero")
	ErrManualWithoutIPv4       = errors.New("manual configuration requires an ipv4 address")
	ErrUnsupportedConfigMethod = errors.New("unsupported configuration method")

	errInvalidDuration = errors.New("invalid duration")
	errNotIPv4         = errors.New("not an IPv4 address")
	errNATSURLRequired = errors.New("nats url is required")
)
