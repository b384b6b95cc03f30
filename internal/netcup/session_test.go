package netcup

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kreigan/netcup-dyndns/internal/logger"
)

func testLogger() *logger.Logger {
	log := logger.New(logger.Options{NoColor: true})
	log.SetOutput(io.Discard)
	return log
}

// fakeEndpoint emulates the netcup webservice: one POST endpoint
// dispatching on the action field.
type fakeEndpoint struct {
	requests []request
	// respond maps an action to its canned response. Missing actions
	// succeed with empty responsedata.
	respond map[string]response
	// httpStatus, if set, short-circuits with a bare HTTP error.
	httpStatus int
}

func (f *fakeEndpoint) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.httpStatus != 0 {
			w.WriteHeader(f.httpStatus)
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.requests = append(f.requests, req)

		resp, ok := f.respond[req.Action]
		if !ok {
			resp = response{Status: "success", ResponseData: json.RawMessage(`{}`)}
			if req.Action == "login" {
				resp.ResponseData = json.RawMessage(`{"apisessionid": "sid-123"}`)
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
}

func newTestSession(t *testing.T, fake *fakeEndpoint) *Session {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewSession(srv.URL, "12345", "key", "password", testLogger())
}

func param(t *testing.T, req request, name string) string {
	t.Helper()
	v, ok := req.Param[name]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		t.Fatalf("Expected string param %s, got %T", name, v)
	}
	return s
}

func TestSession_LoginStoresSessionID(t *testing.T) {
	fake := &fakeEndpoint{}
	session := newTestSession(t, fake)

	if err := session.Login(context.Background()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !session.Authenticated() {
		t.Error("Expected session to be authenticated after login")
	}

	login := fake.requests[0]
	if login.Action != "login" {
		t.Fatalf("Expected login action, got %s", login.Action)
	}
	if param(t, login, "customernumber") != "12345" {
		t.Error("Expected customernumber in login param")
	}
	if param(t, login, "apikey") != "key" {
		t.Error("Expected apikey in login param")
	}
	if param(t, login, "apipassword") != "password" {
		t.Error("Expected apipassword in login param")
	}
	if _, ok := login.Param["apisessionid"]; ok {
		t.Error("Login must not carry a session id")
	}
}

func TestSession_ActionsCarrySessionID(t *testing.T) {
	fake := &fakeEndpoint{respond: map[string]response{
		"infoDnsZone": {Status: "success", ResponseData: json.RawMessage(
			`{"ttl": "3600", "serial": "2024010101", "refresh": "28800", "retry": "7200", "expire": "1209600", "dnssecstatus": false}`)},
	}}
	session := newTestSession(t, fake)

	if err := session.Login(context.Background()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	zone, err := session.InfoDNSZone(context.Background(), "example.org")
	if err != nil {
		t.Fatalf("InfoDNSZone failed: %v", err)
	}

	if zone.Name != "example.org" || zone.TTL != 3600 || zone.Refresh != 28800 {
		t.Errorf("Unexpected zone: %+v", zone)
	}

	info := fake.requests[1]
	if param(t, info, "apisessionid") != "sid-123" {
		t.Error("Expected the stored session id on the request")
	}
	if param(t, info, "domainname") != "example.org" {
		t.Error("Expected domainname param")
	}
}

func TestSession_ActionBeforeLoginFailsFast(t *testing.T) {
	fake := &fakeEndpoint{}
	session := newTestSession(t, fake)

	_, err := session.InfoDNSRecords(context.Background(), "example.org")
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Expected ErrNotAuthenticated, got %v", err)
	}
	if len(fake.requests) != 0 {
		t.Errorf("Expected no network call, got %d requests", len(fake.requests))
	}
}

func TestSession_InfoDNSRecordsParsesWireStrings(t *testing.T) {
	fake := &fakeEndpoint{respond: map[string]response{
		"infoDnsRecords": {Status: "success", ResponseData: json.RawMessage(
			`{"dnsrecords": [
				{"id": "17", "hostname": "www", "type": "A", "priority": "0", "destination": "1.2.3.4", "deleterecord": false, "state": "yes"},
				{"id": "18", "hostname": "home", "type": "AAAA", "priority": "", "destination": "2001:db8::1", "deleterecord": false, "state": "yes"}
			]}`)},
	}}
	session := newTestSession(t, fake)

	if err := session.Login(context.Background()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	set, err := session.InfoDNSRecords(context.Background(), "example.org")
	if err != nil {
		t.Fatalf("InfoDNSRecords failed: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("Expected 2 records, got %d", set.Len())
	}

	www := set.Records()[0]
	if www.ID != 17 || www.Hostname != "www" || www.Destination != "1.2.3.4" {
		t.Errorf("Unexpected record: %+v", www)
	}
	if set.Records()[1].Priority != 0 {
		t.Errorf("Expected empty priority to default to 0, got %d", set.Records()[1].Priority)
	}
}

func TestSession_APIErrorTearsDownSession(t *testing.T) {
	fake := &fakeEndpoint{respond: map[string]response{
		"infoDnsZone": {Status: "error", LongMessage: "domain not found"},
	}}
	session := newTestSession(t, fake)

	if err := session.Login(context.Background()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	_, err := session.InfoDNSZone(context.Background(), "example.org")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Message != "domain not found" {
		t.Errorf("Expected the remote longmessage verbatim, got %q", apiErr.Message)
	}
	if session.Authenticated() {
		t.Error("Expected forced teardown to clear the session")
	}

	// Teardown must have attempted a best-effort logout with the old id.
	last := fake.requests[len(fake.requests)-1]
	if last.Action != "logout" {
		t.Errorf("Expected a trailing logout attempt, got %s", last.Action)
	}
	if param(t, last, "apisessionid") != "sid-123" {
		t.Error("Expected the logout to carry the old session id")
	}

	// A subsequent action fails fast without a network call.
	calls := len(fake.requests)
	if _, err := session.InfoDNSZone(context.Background(), "example.org"); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated after teardown, got %v", err)
	}
	if len(fake.requests) != calls {
		t.Error("Expected no network call after teardown")
	}
}

func TestSession_TransportErrorSurfacesStatus(t *testing.T) {
	fake := &fakeEndpoint{httpStatus: http.StatusServiceUnavailable}
	session := newTestSession(t, fake)

	err := session.Login(context.Background())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected *StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", statusErr.Code)
	}
}

func TestSession_LogoutClearsSessionID(t *testing.T) {
	fake := &fakeEndpoint{}
	session := newTestSession(t, fake)

	if err := session.Login(context.Background()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := session.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if session.Authenticated() {
		t.Error("Expected session id to be cleared after logout")
	}

	// A second logout is a no-op.
	calls := len(fake.requests)
	if err := session.Logout(context.Background()); err != nil {
		t.Fatalf("Second logout failed: %v", err)
	}
	if len(fake.requests) != calls {
		t.Error("Expected no request for a second logout")
	}
}

func TestSession_CloseSwallowsLogoutFailure(t *testing.T) {
	fake := &fakeEndpoint{respond: map[string]response{
		"logout": {Status: "error", LongMessage: "session already gone"},
	}}
	session := newTestSession(t, fake)

	if err := session.Login(context.Background()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// Must not panic or escalate.
	session.Close(context.Background())

	if session.Authenticated() {
		t.Error("Expected session id to be cleared even when logout fails")
	}
}

func TestSession_UpdateDNSRecordsSendsWirePayload(t *testing.T) {
	fake := &fakeEndpoint{}
	session := newTestSession(t, fake)

	if err := session.Login(context.Background()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	zone := &Zone{Name: "example.org", TTL: 3600}
	set := NewRecordSet(
		&Record{ID: 17, Hostname: "www", Type: "A", Destination: "1.2.3.4"},
		&Record{Hostname: "home", Type: "AAAA", Destination: "2001:db8::1"},
	)

	if err := session.UpdateDNSRecords(context.Background(), zone, set); err != nil {
		t.Fatalf("UpdateDNSRecords failed: %v", err)
	}

	update := fake.requests[1]
	if update.Action != "updateDnsRecords" {
		t.Fatalf("Expected updateDnsRecords, got %s", update.Action)
	}
	if param(t, update, "domainname") != "example.org" {
		t.Error("Expected domainname param")
	}

	raw, err := json.Marshal(update.Param["dnsrecordset"])
	if err != nil {
		t.Fatalf("Failed to re-marshal dnsrecordset: %v", err)
	}
	var payload struct {
		DNSRecords []map[string]any `json:"dnsrecords"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("Failed to parse dnsrecordset: %v", err)
	}
	if len(payload.DNSRecords) != 2 {
		t.Fatalf("Expected 2 records on the wire, got %d", len(payload.DNSRecords))
	}
	if payload.DNSRecords[0]["id"] != "17" {
		t.Errorf("Expected id as wire string \"17\", got %v", payload.DNSRecords[0]["id"])
	}
	if _, ok := payload.DNSRecords[1]["id"]; ok {
		t.Error("Expected new record to omit id")
	}
}

func TestSession_UpdateDNSZoneSendsTTL(t *testing.T) {
	fake := &fakeEndpoint{}
	session := newTestSession(t, fake)

	if err := session.Login(context.Background()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	zone := &Zone{Name: "example.org", TTL: 7200, Serial: "1", Refresh: 28800, Retry: 7200, Expire: 1209600}
	if err := session.UpdateDNSZone(context.Background(), zone); err != nil {
		t.Fatalf("UpdateDNSZone failed: %v", err)
	}

	update := fake.requests[1]
	raw, err := json.Marshal(update.Param["dnszone"])
	if err != nil {
		t.Fatalf("Failed to re-marshal dnszone: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("Failed to parse dnszone: %v", err)
	}
	if payload["name"] != "example.org" || payload["ttl"] != "7200" {
		t.Errorf("Unexpected dnszone payload: %v", payload)
	}
}
