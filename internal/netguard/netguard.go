// Package netguard flags URL hosts that are literal addresses inside
// private or internal ranges. Hostnames are never resolved.
package netguard

import (
	"net"
	"strings"

	"github.com/yl2chen/cidranger"
)

// BlockedCIDRs are private/internal networks a public link should never point at.
var BlockedCIDRs = []string{
	"127.0.0.0/8",    // loopback
	"10.0.0.0/8",     // RFC1918
	"172.16.0.0/12",  // RFC1918
	"192.168.0.0/16", // RFC1918
	"169.254.0.0/16", // link-local / cloud metadata
	"100.64.0.0/10",  // carrier-grade NAT
	"0.0.0.0/8",      // unspecified
	"::1/128",        // IPv6 loopback
	"fe80::/10",      // IPv6 link-local
	"fc00::/7",       // IPv6 unique local
}

var ranger = func() cidranger.Ranger {
	r := cidranger.NewPCTrieRanger()
	for _, c := range BlockedCIDRs {
		_, ipNet, err := net.ParseCIDR(c)
		if err != nil {
			panic("netguard: bad CIDR " + c)
		}
		if err := r.Insert(cidranger.NewBasicRangerEntry(*ipNet)); err != nil {
			panic("netguard: insert " + c + ": " + err.Error())
		}
	}
	return r
}()

// IsBlocked returns true if the IP falls within a private/internal range.
func IsBlocked(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	ok, err := ranger.Contains(ip)
	return err == nil && ok
}

// IsPrivateHost reports whether host is a literal IP inside a blocked range.
// Brackets around IPv6 literals are accepted.
func IsPrivateHost(host string) bool {
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return IsBlocked(net.ParseIP(host))
}
