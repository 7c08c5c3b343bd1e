// Package ipclass decides whether an address seen in a monitor flow is a
// publicly routable IPv4 address worth a reverse lookup.
package ipclass

import (
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"
)

// reservedCIDRs lists the IANA special-purpose IPv4 blocks that are never public.
var reservedCIDRs = []string{
	"0.0.0.0/8",          // "this" network
	"10.0.0.0/8",         // private use
	"100.64.0.0/10",      // shared address space (CGNAT)
	"127.0.0.0/8",        // loopback
	"169.254.0.0/16",     // link local
	"172.16.0.0/12",      // private use
	"192.0.0.0/24",       // IETF protocol assignments
	"192.0.2.0/24",       // TEST-NET-1
	"192.88.99.0/24",     // 6to4 relay anycast
	"192.168.0.0/16",     // private use
	"198.18.0.0/15",      // benchmarking
	"198.51.100.0/24",    // TEST-NET-2
	"203.0.113.0/24",     // TEST-NET-3
	"240.0.0.0/4",        // reserved, includes 255.255.255.255
	"255.255.255.255/32", // limited broadcast
}

type addrRange struct {
	cidr  string
	start uint32
	end   uint32
}

var (
	reservedRanges = mustBuildRanges(reservedCIDRs)
	// textPrefixes are checked only when the input does not parse as an IPv4
	// address. Some stop short of an octet boundary ("0", "127", "169.254",
	// "192.0.0"), so unparseable text such as "127x" is still rejected.
	textPrefixes = buildTextPrefixes()
)

// IsPublic reports whether ip is a publicly routable, non-reserved IPv4
// address. Anything containing a colon (IPv6) is rejected. Strings that do not
// parse are only rejected when they start like a reserved block; everything
// else falls through as public.
func IsPublic(ip string) bool {
	if strings.Contains(ip, ":") {
		return false
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return !hasReservedPrefix(ip)
	}

	return !inRange(addrToUint32(addr), reservedRanges)
}

// Reserved returns the CIDR of the special-purpose block containing ip, or ""
// when ip is not a valid IPv4 address or not reserved.
func Reserved(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return ""
	}
	u := addrToUint32(addr)
	for _, r := range reservedRanges {
		if u >= r.start && u <= r.end {
			return r.cidr
		}
	}
	return ""
}

func mustBuildRanges(cidrs []string) []addrRange {
	ranges := make([]addrRange, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil || !prefix.Addr().Is4() {
			panic(fmt.Sprintf("ipclass: invalid reserved block %q", cidr))
		}
		prefix = prefix.Masked()
		start := addrToUint32(prefix.Addr())
		hostBits := 32 - prefix.Bits()
		end := start | uint32((uint64(1)<<hostBits)-1)
		ranges = append(ranges, addrRange{cidr: prefix.String(), start: start, end: end})
	}

	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].start == ranges[j].start {
			return ranges[i].end > ranges[j].end
		}
		return ranges[i].start < ranges[j].start
	})

	// Drop blocks nested in a preceding one so the binary search sees
	// disjoint ranges.
	merged := ranges[:0]
	for _, r := range ranges {
		if n := len(merged); n > 0 && r.start <= merged[n-1].end {
			if r.end > merged[n-1].end {
				merged[n-1].end = r.end
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func inRange(u uint32, ranges []addrRange) bool {
	lo, hi := 0, len(ranges)
	for lo < hi {
		mid := (lo + hi) / 2
		if u < ranges[mid].start {
			hi = mid
			continue
		}
		if u > ranges[mid].end {
			lo = mid + 1
			continue
		}
		return true
	}
	return false
}

func addrToUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func buildTextPrefixes() []string {
	prefixes := []string{
		"0", "10.", "127", "169.254", "192.0.0", "192.0.2", "192.88.99",
		"192.168.", "198.51.100.", "203.0.113.", "255.255.255.255",
	}
	prefixes = append(prefixes, numbered("172.", 16, 31, ".")...)
	prefixes = append(prefixes, numbered("100.", 64, 127, ".")...)
	prefixes = append(prefixes, numbered("198.", 18, 19, ".")...)
	return append(prefixes, numbered("", 240, 255, ".")...)
}

// numbered returns head+n+tail for every n in [lo, hi].
func numbered(head string, lo, hi int, tail string) []string {
	out := make([]string, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		out = append(out, head+strconv.Itoa(n)+tail)
	}
	return out
}

func hasReservedPrefix(raw string) bool {
	for _, p := range textPrefixes {
		if strings.HasPrefix(raw, p) {
			return true
		}
	}
	return false
}
