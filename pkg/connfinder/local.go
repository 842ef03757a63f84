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

package connfinder

import (
	"context"
	"fmt"
	"slices"

	psnet "github.com/shirou/gopsutil/v3/net"
)

const flagUp = "up"

// InterfaceLister enumerates network interfaces. gopsutil's InterfacesWithContext satisfies it.
type InterfaceLister func(ctx context.Context) (psnet.InterfaceStatList, error)

// LocalAddresses returns the addresses of every interface that is up, in the
// order the platform reports them. When names is not empty only those
// interfaces are considered.
func LocalAddresses(ctx context.Context, names ...string) ([]LocalAddress, error) {
	return localAddresses(ctx, psnet.InterfacesWithContext, names)
}

func localAddresses(ctx context.Context, list InterfaceLister, names []string) ([]LocalAddress, error) {
	ifaces, err := list(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	var out []LocalAddress

	for _, iface := range ifaces {
		if !slices.Contains(iface.Flags, flagUp) {
			continue
		}

		if len(names) > 0 && !slices.Contains(names, iface.Name) {
			continue
		}

		for _, addr := range iface.Addrs {
			local, err := ParseLocalAddress(iface.Name, addr.Addr)
			if err != nil {
				continue
			}

			out = append(out, local)
		}
	}

	return out, nil
}
