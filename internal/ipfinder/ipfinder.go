// Package ipfinder discovers the machine's external IP address. Providers
// exist for the ipify web API, the FRITZ!Box TR-064 interface and a
// DNS-over-HTTPS reflector.
package ipfinder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"

	"github.com/kreigan/netcup-dyndns/internal/config"
)

// Provider looks up the current external IP address.
type Provider interface {
	CurrentIP(ctx context.Context) (netip.Addr, error)
}

// FromSettings selects the provider configured in settings. The default is
// ipify; a configured FRITZ!Box address selects the fritzbox provider.
func FromSettings(settings *config.Settings) Provider {
	switch settings.IPSource {
	case config.IPSourceFritzBox:
		return NewFritzBox(settings.FritzBoxAddress)
	case config.IPSourceDNS:
		return NewDNSReflector()
	case config.IPSourceIpify:
		return NewIpify()
	default:
		if settings.FritzBoxAddress != "" {
			return NewFritzBox(settings.FritzBoxAddress)
		}
		return NewIpify()
	}
}

const ipifyURL = "https://api.ipify.org"

// Ipify resolves the external IP via the https://www.ipify.org/ API.
type Ipify struct {
	url        string
	httpClient *http.Client
}

// NewIpify creates an ipify provider against the public API.
func NewIpify() *Ipify {
	return &Ipify{url: ipifyURL, httpClient: &http.Client{}}
}

// CurrentIP fetches the external IPv4 address.
func (p *Ipify) CurrentIP(ctx context.Context) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("ipify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("ipify answered with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to read ipify response: %w", err)
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(string(body)))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("ipify returned no valid address: %w", err)
	}

	return addr, nil
}
