package fetcher

import "net"

// metadataIPs is the explicit cloud-metadata denylist from spec.md's
// GLOSSARY "Private-range policy", beyond the generic private/local ranges.
var metadataIPs = map[string]bool{
	"169.254.169.254": true,
	"169.254.170.2":   true,
	"100.100.100.200": true,
}

var privateCIDRs = mustParseCIDRs(
	"0.0.0.0/8",
	"10.0.0.0/8",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::/128",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

// isBlockedIP reports whether ip falls in the private/local/metadata set the
// spec's SSRF policy denies as a fetch target.
func isBlockedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if metadataIPs[ip.String()] {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		for _, n := range privateCIDRs {
			if n.IP.To4() != nil && n.Contains(v4) {
				return true
			}
		}
		return false
	}
	for _, n := range privateCIDRs {
		if n.IP.To4() == nil && n.Contains(ip) {
			return true
		}
	}
	return false
}
