// Package privacy masks client identifiers before they reach the logs.
package privacy

import "net/netip"

// AnonymizeIP keeps the network part of an address: /24 for IPv4 (and
// IPv4-mapped IPv6), /48 for IPv6. It returns "unknown" for empty input and
// "invalid" for anything that does not parse.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.WithZone("").Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Masked().Addr().String()
}
