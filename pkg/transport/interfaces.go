package transport

import (
	"fmt"
	"net"
	"slices"
)

// multicastInterfaces returns the interfaces that are up and multicast capable.
// When names is not empty only the named interfaces are returned.
func multicastInterfaces(names []string) ([]net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	var out []net.Interface

	for _, iface := range all {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}

		if len(names) > 0 && !slices.Contains(names, iface.Name) {
			continue
		}

		out = append(out, iface)
	}

	if len(out) == 0 {
		return nil, ErrNoMulticastInterfaces
	}

	return out, nil
}
