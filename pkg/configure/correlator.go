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

package configure

import (
	"sync"

	"github.com/carverauto/devscan/pkg/models"
)

// Correlator matches responses to outstanding requests by exact id.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]chan *models.Response
}

func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]chan *models.Response)}
}

// Register reserves id and returns the channel its response will be delivered on.
func (c *Correlator) Register(id string) (<-chan *models.Response, error) {
	if id == "" {
		return nil, models.ErrEmptyQueryID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[id]; ok {
		return nil, ErrDuplicateQueryID
	}

	ch := make(chan *models.Response, 1)
	c.pending[id] = ch

	return ch, nil
}

// Cancel forgets a pending id. A response arriving later is treated as unmatched.
func (c *Correlator) Cancel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pending, id)
}

// Deliver hands resp to the request waiting for its id. Only the first response
// for an id is delivered; it reports false when nothing was waiting.
func (c *Correlator) Deliver(resp *models.Response) bool {
	if resp == nil {
		return false
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.mu.Unlock()

	if !ok {
		return false
	}

	ch <- resp

	return true
}

// Pending returns the number of requests still waiting for a response.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}
