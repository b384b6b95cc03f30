package ipfinder

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
)

// FritzBox resolves the external IP from a FRITZ!Box router using the
// TR-064 GetExternalIPAddress action on the IGD control endpoint.
type FritzBox struct {
	baseURL    string
	httpClient *http.Client
}

// NewFritzBox creates a provider for the FRITZ!Box at the given address.
func NewFritzBox(address string) *FritzBox {
	return &FritzBox{
		baseURL:    fmt.Sprintf("http://%s:49000", address),
		httpClient: &http.Client{},
	}
}

const (
	fritzControlPath = "/igdupnp/control/WANIPConn1"
	fritzServiceType = "urn:schemas-upnp-org:service:WANIPConnection:1"
	fritzAction      = "GetExternalIPAddress"
)

const fritzEnvelope = `<?xml version="1.0" encoding="utf-8"?>` +
	`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"` +
	` s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` +
	`<s:Body><u:GetExternalIPAddress xmlns:u="` + fritzServiceType + `"/></s:Body>` +
	`</s:Envelope>`

// CurrentIP queries the router for its WAN IP address.
func (p *FritzBox) CurrentIP(ctx context.Context) (netip.Addr, error) {
	url := p.baseURL + fritzControlPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(fritzEnvelope))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", fmt.Sprintf("%s#%s", fritzServiceType, fritzAction))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("FRITZ!Box request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("FRITZ!Box answered with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to read FRITZ!Box response: %w", err)
	}

	var envelope struct {
		Body struct {
			Response struct {
				NewExternalIPAddress string `xml:"NewExternalIPAddress"`
			} `xml:"GetExternalIPAddressResponse"`
		} `xml:"Body"`
	}
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return netip.Addr{}, fmt.Errorf("failed to parse FRITZ!Box response: %w", err)
	}

	addr, err := netip.ParseAddr(envelope.Body.Response.NewExternalIPAddress)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("FRITZ!Box returned no valid address: %w", err)
	}

	return addr, nil
}
