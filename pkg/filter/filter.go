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

// Package filter decides which announces are passed on to the device monitor.
package filter

import (
	"fmt"
	"strings"

	"github.com/carverauto/devscan/pkg/logger"
	"github.com/carverauto/devscan/pkg/models"
)

// Matcher is a predicate over announces. Implementations must be safe for concurrent use.
type Matcher interface {
	Match(a *models.Announce) bool
	// FilterStrings returns the strings the matcher was configured with.
	FilterStrings() []string
}

// stringSet matches a single announce field against an allow-list.
type stringSet struct {
	values []string
	set    map[string]struct{}
}

func newStringSet(values []string) (stringSet, error) {
	if len(values) == 0 {
		return stringSet{}, ErrNoFilterStrings
	}

	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}

	return stringSet{values: append([]string(nil), values...), set: set}, nil
}

func (s stringSet) contains(v string) bool {
	_, ok := s.set[v]

	return ok
}

func (s stringSet) strings() []string {
	return append([]string(nil), s.values...)
}

// FamilyTypeMatch accepts announces whose device family type is in the allow-list.
// The comparison is exact and case sensitive. Announces without a family type never match.
type FamilyTypeMatch struct {
	allowed stringSet
}

// NewFamilyTypeMatch creates a family type matcher. An empty allow-list is rejected.
func NewFamilyTypeMatch(familyTypes ...string) (*FamilyTypeMatch, error) {
	set, err := newStringSet(familyTypes)
	if err != nil {
		return nil, fmt.Errorf("family type match: %w", err)
	}

	return &FamilyTypeMatch{allowed: set}, nil
}

func (m *FamilyTypeMatch) Match(a *models.Announce) bool {
	family, ok := a.FamilyType()
	if !ok {
		return false
	}

	return m.allowed.contains(family)
}

func (m *FamilyTypeMatch) FilterStrings() []string {
	return m.allowed.strings()
}

func (m *FamilyTypeMatch) String() string {
	return "familyType in [" + strings.Join(m.allowed.values, ",") + "]"
}

// UUIDMatch accepts announces from the listed devices only.
type UUIDMatch struct {
	allowed stringSet
}

// NewUUIDMatch creates a device UUID matcher. An empty allow-list is rejected.
func NewUUIDMatch(uuids ...string) (*UUIDMatch, error) {
	set, err := newStringSet(uuids)
	if err != nil {
		return nil, fmt.Errorf("uuid match: %w", err)
	}

	return &UUIDMatch{allowed: set}, nil
}

func (m *UUIDMatch) Match(a *models.Announce) bool {
	if a == nil {
		return false
	}

	return m.allowed.contains(a.Params.Device.UUID)
}

func (m *UUIDMatch) FilterStrings() []string {
	return m.allowed.strings()
}

func (m *UUIDMatch) String() string {
	return "uuid in [" + strings.Join(m.allowed.values, ",") + "]"
}

type allMatch struct {
	matchers []Matcher
}

// All returns a matcher accepting announces accepted by every given matcher.
func All(matchers ...Matcher) (Matcher, error) {
	if len(matchers) == 0 {
		return nil, ErrNoMatchers
	}

	for _, m := range matchers {
		if m == nil {
			return nil, ErrNoMatchers
		}
	}

	return &allMatch{matchers: append([]Matcher(nil), matchers...)}, nil
}

func (m *allMatch) Match(a *models.Announce) bool {
	for _, matcher := range m.matchers {
		if !matcher.Match(a) {
			return false
		}
	}

	return true
}

func (m *allMatch) FilterStrings() []string {
	var out []string

	for _, matcher := range m.matchers {
		out = append(out, matcher.FilterStrings()...)
	}

	return out
}

type notMatch struct {
	inner Matcher
}

// Not inverts a matcher.
func Not(m Matcher) (Matcher, error) {
	if m == nil {
		return nil, ErrNoMatchers
	}

	return &notMatch{inner: m}, nil
}

func (m *notMatch) Match(a *models.Announce) bool {
	return !m.inner.Match(a)
}

func (m *notMatch) FilterStrings() []string {
	return m.inner.FilterStrings()
}

// Filter is a named pipeline stage. Announces the matcher rejects are dropped silently.
type Filter struct {
	name    string
	matcher Matcher
	logger  logger.Logger
}

// New wraps a matcher as a pipeline stage.
func New(name string, m Matcher, log logger.Logger) (*Filter, error) {
	if m == nil {
		return nil, ErrNoMatchers
	}

	return &Filter{name: name, matcher: m, logger: log}, nil
}

// Name returns the stage name used in logs and metrics.
func (f *Filter) Name() string {
	return f.name
}

// Accept reports whether the announce should be forwarded.
func (f *Filter) Accept(a *models.Announce) bool {
	if a == nil {
		return false
	}

	if f.matcher.Match(a) {
		return true
	}

	f.logger.Debug().
		Str("filter", f.name).
		Str("uuid", a.Params.Device.UUID).
		Msg("Announce filtered out")

	return false
}
