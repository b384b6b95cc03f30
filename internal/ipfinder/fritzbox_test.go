package ipfinder

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const fritzResponse = `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"
 s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
<s:Body>
<u:GetExternalIPAddressResponse xmlns:u="urn:schemas-upnp-org:service:WANIPConnection:1">
<NewExternalIPAddress>84.112.3.9</NewExternalIPAddress>
</u:GetExternalIPAddressResponse>
</s:Body>
</s:Envelope>`

func TestFritzBox_CurrentIP(t *testing.T) {
	var gotAction string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		fmt.Fprint(w, fritzResponse)
	}))
	defer srv.Close()

	provider := &FritzBox{baseURL: srv.URL, httpClient: &http.Client{}}

	ip, err := provider.CurrentIP(context.Background())
	if err != nil {
		t.Fatalf("CurrentIP failed: %v", err)
	}
	if ip.String() != "84.112.3.9" {
		t.Errorf("Expected 84.112.3.9, got %s", ip)
	}
	if gotAction != "urn:schemas-upnp-org:service:WANIPConnection:1#GetExternalIPAddress" {
		t.Errorf("Unexpected SOAPAction header: %s", gotAction)
	}
}

func TestFritzBox_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body/></s:Envelope>`)
	}))
	defer srv.Close()

	provider := &FritzBox{baseURL: srv.URL, httpClient: &http.Client{}}

	if _, err := provider.CurrentIP(context.Background()); err == nil {
		t.Error("Expected an error for a response without an address")
	}
}
