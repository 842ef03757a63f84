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

package announce

import (
	"fmt"
	"sync"

	"github.com/carverauto/devscan/pkg/models"
)

// CommunicationPath identifies the way a device is reached: the device itself,
// the router that forwarded its announce (if any) and the announcing interface.
// The same device seen through two routers yields two paths.
//
// A path is immutable except for the caller cookie.
type CommunicationPath struct {
	key      string
	announce *models.Announce

	mu     sync.RWMutex
	cookie interface{}
}

// NewCommunicationPath resolves the path of an announce. The key is the device
// UUID followed by the router UUID (when present) and the interface name, with
// no separators and no case normalization.
func NewCommunicationPath(a *models.Announce) (*CommunicationPath, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: announce", models.ErrMissingRequiredField)
	}

	uuid := a.Params.Device.UUID
	if uuid == "" {
		return nil, fmt.Errorf("%w: device uuid", models.ErrMissingRequiredField)
	}

	ifName := a.Params.NetSettings.Interface.Name
	if ifName == "" {
		return nil, fmt.Errorf("%w: interface name", models.ErrMissingRequiredField)
	}

	key := uuid

	if router, ok := a.RouterUUID(); ok {
		key += router
	}

	key += ifName

	return &CommunicationPath{key: key, announce: a}, nil
}

// Key is the identity of the path.
func (p *CommunicationPath) Key() string {
	return p.key
}

// Announce returns the announce the path was resolved from.
func (p *CommunicationPath) Announce() *models.Announce {
	return p.announce
}

// Equal reports whether both paths have the same identity. The announce content is not compared.
func (p *CommunicationPath) Equal(other *CommunicationPath) bool {
	if p == nil || other == nil {
		return p == other
	}

	return p.key == other.key
}

// SetCookie attaches caller data to the path.
func (p *CommunicationPath) SetCookie(cookie interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cookie = cookie
}

// Cookie returns the caller data attached with SetCookie.
func (p *CommunicationPath) Cookie() interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.cookie
}

func (p *CommunicationPath) String() string {
	if p == nil {
		return "<nil>"
	}

	return p.announce.String()
}
