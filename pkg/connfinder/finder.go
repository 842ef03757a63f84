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

// Package connfinder decides whether an announced device shares a subnet with
// the local host and which of its addresses to connect to.
package connfinder

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net/netip"

	"github.com/carverauto/devscan/pkg/models"
)

const (
	ipv4Bits = 32
	ipv6Bits = 128
)

// LocalAddress is an address configured on a local interface together with its prefix length.
type LocalAddress struct {
	Interface string
	Prefix    netip.Prefix
}

func (l LocalAddress) String() string {
	return l.Interface + " " + l.Prefix.String()
}

// ParseLocalAddress parses a CIDR string such as "10.0.0.5/24".
func ParseLocalAddress(iface, cidr string) (LocalAddress, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return LocalAddress{}, fmt.Errorf("%w: %w", ErrInvalidLocalAddress, err)
	}

	return LocalAddress{Interface: iface, Prefix: prefix}, nil
}

// ConnectionFinder matches announced addresses against a fixed set of local addresses.
// It holds no mutable state and is safe for concurrent use.
type ConnectionFinder struct {
	ipv4 []LocalAddress
	ipv6 []LocalAddress
}

// NewConnectionFinder keeps the local addresses in the order given, split by family.
// IPv4-mapped IPv6 prefixes such as ::ffff:10.0.0.5/120 are treated as their
// IPv4 form (10.0.0.5/24); mapped prefixes shorter than /96 are dropped.
func NewConnectionFinder(locals []LocalAddress) *ConnectionFinder {
	f := &ConnectionFinder{}

	for _, l := range locals {
		if !l.Prefix.IsValid() {
			continue
		}

		addr := l.Prefix.Addr()

		switch {
		case addr.Is4():
			f.ipv4 = append(f.ipv4, l)
		case addr.Is4In6():
			bits := l.Prefix.Bits() - (ipv6Bits - ipv4Bits)
			if bits < 0 {
				continue
			}

			l.Prefix = netip.PrefixFrom(addr.Unmap(), bits)
			f.ipv4 = append(f.ipv4, l)
		case addr.Is6():
			f.ipv6 = append(f.ipv6, l)
		}
	}

	return f
}

// FindConnectableAddress returns the first announced address that is on the same
// network as one of the local addresses. Announced IPv4 entries are tried before
// IPv6 entries, each in announced order, and for each entry the local addresses
// in the order they were given. Entries that do not parse are skipped.
func (f *ConnectionFinder) FindConnectableAddress(a *models.Announce) (netip.Addr, bool) {
	if a == nil {
		return netip.Addr{}, false
	}

	iface := a.Params.NetSettings.Interface

	for _, entry := range iface.IPv4 {
		if addr, ok := f.matchIPv4(entry); ok {
			return addr, true
		}
	}

	for _, entry := range iface.IPv6 {
		if addr, ok := f.matchIPv6(entry); ok {
			return addr, true
		}
	}

	return netip.Addr{}, false
}

func (f *ConnectionFinder) matchIPv4(entry models.IPv4Entry) (netip.Addr, bool) {
	announced, err := netip.ParseAddr(entry.Address)
	if err != nil {
		return netip.Addr{}, false
	}

	announced = announced.Unmap()
	if !announced.Is4() {
		return netip.Addr{}, false
	}

	netmask, err := netip.ParseAddr(entry.Netmask)
	if err != nil {
		return netip.Addr{}, false
	}

	netmask = netmask.Unmap()
	if !netmask.Is4() {
		return netip.Addr{}, false
	}

	announcedPrefix := netmaskPrefix(netmask)

	for _, local := range f.ipv4 {
		if sameNetIPv4(announced, announcedPrefix, local.Prefix.Addr(), local.Prefix.Bits()) {
			return announced, true
		}
	}

	return netip.Addr{}, false
}

func (f *ConnectionFinder) matchIPv6(entry models.IPv6Entry) (netip.Addr, bool) {
	announced, err := netip.ParseAddr(entry.Address)
	if err != nil || !announced.Is6() || announced.Is4In6() {
		return netip.Addr{}, false
	}

	if entry.Prefix < 0 || entry.Prefix > ipv6Bits {
		return netip.Addr{}, false
	}

	for _, local := range f.ipv6 {
		if sameNetIPv6(announced, entry.Prefix, local.Prefix.Addr(), local.Prefix.Bits()) {
			return announced, true
		}
	}

	return netip.Addr{}, false
}

// netmaskPrefix counts the set bits of a dotted-quad netmask. Non-contiguous
// masks are not rejected; only the number of set bits matters.
func netmaskPrefix(mask netip.Addr) int {
	prefix := 0

	for _, b := range mask.As4() {
		prefix += bits.OnesCount8(b)
	}

	return prefix
}

// sameNetIPv4 shifts each address by its own host bit count and compares what is left.
// A /0 keeps no network bits, so every address under it compares as 0.
func sameNetIPv4(announced netip.Addr, announcedPrefix int, local netip.Addr, localPrefix int) bool {
	a4 := announced.As4()
	l4 := local.As4()

	a := shift32(binary.BigEndian.Uint32(a4[:]), ipv4Bits-announcedPrefix)
	l := shift32(binary.BigEndian.Uint32(l4[:]), ipv4Bits-localPrefix)

	return a == l
}

// shift32 is v >> n with n clamped to 0..32.
func shift32(v uint32, n int) uint32 {
	switch {
	case n <= 0:
		return v
	case n >= ipv4Bits:
		return 0
	default:
		return v >> n
	}
}

func sameNetIPv6(announced netip.Addr, announcedPrefix int, local netip.Addr, localPrefix int) bool {
	aHi, aLo := shift128(announced.As16(), ipv6Bits-announcedPrefix)
	lHi, lLo := shift128(local.As16(), ipv6Bits-localPrefix)

	return aHi == lHi && aLo == lLo
}

// shift128 returns the 128-bit address shifted right by n as a high and low word.
func shift128(addr [16]byte, n int) (hi, lo uint64) {
	hi = binary.BigEndian.Uint64(addr[:8])
	lo = binary.BigEndian.Uint64(addr[8:])

	switch {
	case n <= 0:
		return hi, lo
	case n >= ipv6Bits:
		return 0, 0
	case n >= 64:
		return 0, hi >> (n - 64)
	default:
		return hi >> n, lo>>n | hi<<(64-n)
	}
}
