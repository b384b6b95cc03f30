package ipfinder

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/likexian/doh"
	"github.com/likexian/doh/dns"
)

// Google's resolver reflects the querying address in this TXT record.
const reflectorName = "o-o.myaddr.l.google.com"

const typeTXT = 16

// DNSReflector resolves the external IP by asking a DNS-over-HTTPS
// resolver which address the query came from.
type DNSReflector struct{}

// NewDNSReflector creates a DNS-over-HTTPS reflector provider.
func NewDNSReflector() *DNSReflector {
	return &DNSReflector{}
}

// CurrentIP queries the reflector record and parses the reported address.
func (p *DNSReflector) CurrentIP(ctx context.Context) (netip.Addr, error) {
	c := doh.Use(doh.GoogleProvider)
	defer c.Close()

	resp, err := c.Query(ctx, dns.Domain(reflectorName), dns.TypeTXT)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("reflector query failed: %w", err)
	}

	for _, answer := range resp.Answer {
		if answer.Type != typeTXT {
			continue
		}
		if addr, err := parseReflected(answer.Data); err == nil {
			return addr, nil
		}
	}

	return netip.Addr{}, fmt.Errorf("reflector %s returned no address", reflectorName)
}

// parseReflected extracts an address from a reflector TXT value, which may
// be quoted and may carry an edns-client-subnet suffix ("1.2.3.4/24").
func parseReflected(data string) (netip.Addr, error) {
	value := strings.Trim(strings.TrimSpace(data), `"`)
	if i := strings.IndexByte(value, '/'); i >= 0 {
		value = value[:i]
	}
	return netip.ParseAddr(value)
}
