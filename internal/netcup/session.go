package netcup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kreigan/netcup-dyndns/internal/logger"
)

// Session manages the authenticated connection lifecycle with the netcup
// webservice. Every action is one JSON POST to the same endpoint; after a
// successful Login the session id is attached to every request
// automatically. A Session must not be shared across concurrent sync
// passes: the remote ties all state to a single session id.
type Session struct {
	endpoint       string
	customerNumber string
	apiKey         string
	apiPassword    string
	sessionID      string
	httpClient     *http.Client
	log            *logger.Logger
}

// NewSession creates an unauthenticated session for the given endpoint and
// credentials.
func NewSession(endpoint, customerNumber, apiKey, apiPassword string, log *logger.Logger) *Session {
	return &Session{
		endpoint:       endpoint,
		customerNumber: customerNumber,
		apiKey:         apiKey,
		apiPassword:    apiPassword,
		httpClient:     &http.Client{},
		log:            log,
	}
}

// request is the {action, param} envelope every webservice call is wrapped in.
type request struct {
	Action string         `json:"action"`
	Param  map[string]any `json:"param"`
}

type response struct {
	Status       string          `json:"status"`
	ShortMessage string          `json:"shortmessage"`
	LongMessage  string          `json:"longmessage"`
	ResponseData json.RawMessage `json:"responsedata"`
}

// buildRequest wraps an action and its parameters into the request
// envelope. customernumber and apikey are attached to every action, the
// session id to every action except login.
func (s *Session) buildRequest(action string, params map[string]any) request {
	param := map[string]any{
		"customernumber": s.customerNumber,
		"apikey":         s.apiKey,
	}
	if action != "login" {
		param["apisessionid"] = s.sessionID
	}
	for k, v := range params {
		param[k] = v
	}
	return request{Action: action, Param: param}
}

// post performs the HTTP exchange for one request and decodes the response
// envelope. It does not interpret the API-level status.
func (s *Session) post(ctx context.Context, req request) (*response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", req.Action, err)
	}

	s.log.APIRequest(req.Action)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", req.Action, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request %s failed: %w", req.Action, err)
	}
	defer httpResp.Body.Close()

	s.log.APIResponse(req.Action, httpResp.StatusCode)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &StatusError{Code: httpResp.StatusCode}
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", req.Action, err)
	}

	var resp response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", req.Action, err)
	}

	return &resp, nil
}

// send posts one action and returns its responsedata. A non-success status
// on an authenticated action forcibly tears the session down; the caller
// must Login again before reusing it.
func (s *Session) send(ctx context.Context, action string, params map[string]any) (json.RawMessage, error) {
	resp, err := s.post(ctx, s.buildRequest(action, params))
	if err != nil {
		return nil, err
	}

	if !strings.EqualFold(resp.Status, "success") {
		if action != "login" && action != "logout" {
			s.teardown(ctx)
		}
		return nil, &APIError{Action: action, Message: resp.LongMessage}
	}

	return resp.ResponseData, nil
}

// teardown attempts a best-effort logout and invalidates the session.
// Failures are logged, never returned: teardown runs in the shadow of the
// error that triggered it and must not mask it.
func (s *Session) teardown(ctx context.Context) {
	id := s.sessionID
	s.sessionID = ""
	if id == "" {
		return
	}

	req := s.buildRequest("logout", nil)
	req.Param["apisessionid"] = id
	if _, err := s.post(ctx, req); err != nil {
		s.log.Debug("logout during teardown failed: %v", err)
	}
}

// Login authenticates the session. It must be the first action; no other
// action is valid before it.
func (s *Session) Login(ctx context.Context) error {
	data, err := s.send(ctx, "login", map[string]any{
		"apipassword": s.apiPassword,
	})
	if err != nil {
		return err
	}

	var login struct {
		APISessionID string `json:"apisessionid"`
	}
	if err := json.Unmarshal(data, &login); err != nil {
		return fmt.Errorf("failed to parse login response: %w", err)
	}

	s.sessionID = login.APISessionID
	s.log.Debug("logged in with session id %s", logger.MaskSecret(s.sessionID))
	return nil
}

// Logout ends the session. The stored session id is cleared whether or not
// the remote call succeeds.
func (s *Session) Logout(ctx context.Context) error {
	if s.sessionID == "" {
		return nil
	}

	_, err := s.send(ctx, "logout", nil)
	s.sessionID = ""
	if err != nil {
		return err
	}

	s.log.Debug("logged out")
	return nil
}

// Close releases the session, attempting a logout on every exit path.
// Logout failures are logged and swallowed so they cannot mask an error
// that is already propagating.
func (s *Session) Close(ctx context.Context) {
	if err := s.Logout(ctx); err != nil {
		s.log.Warn("logout failed: %v", err)
	}
}

// Authenticated reports whether the session currently holds a session id.
func (s *Session) Authenticated() bool {
	return s.sessionID != ""
}

// InfoDNSZone fetches the zone configuration of the given domain.
func (s *Session) InfoDNSZone(ctx context.Context, domain string) (*Zone, error) {
	if s.sessionID == "" {
		return nil, ErrNotAuthenticated
	}

	data, err := s.send(ctx, "infoDnsZone", map[string]any{
		"domainname": domain,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		TTL          string `json:"ttl"`
		Serial       string `json:"serial"`
		Refresh      string `json:"refresh"`
		Retry        string `json:"retry"`
		Expire       string `json:"expire"`
		DNSSECStatus bool   `json:"dnssecstatus"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse infoDnsZone response: %w", err)
	}

	zone := &Zone{Name: domain, DNSSECStatus: payload.DNSSECStatus}
	for _, f := range []struct {
		value string
		dst   *int
	}{
		{payload.TTL, &zone.TTL},
		{payload.Refresh, &zone.Refresh},
		{payload.Retry, &zone.Retry},
		{payload.Expire, &zone.Expire},
	} {
		n, err := atoiDefault(f.value, 0)
		if err != nil {
			return nil, fmt.Errorf("zone %s: invalid numeric field %q", domain, f.value)
		}
		*f.dst = n
	}
	zone.Serial = payload.Serial

	return zone, nil
}

// InfoDNSRecords fetches the host records of the given domain.
func (s *Session) InfoDNSRecords(ctx context.Context, domain string) (*RecordSet, error) {
	if s.sessionID == "" {
		return nil, ErrNotAuthenticated
	}

	data, err := s.send(ctx, "infoDnsRecords", map[string]any{
		"domainname": domain,
	})
	if err != nil {
		return nil, err
	}

	var payload recordSetPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse infoDnsRecords response: %w", err)
	}

	set := NewRecordSet()
	for _, p := range payload.DNSRecords {
		record, err := p.toRecord()
		if err != nil {
			return nil, fmt.Errorf("zone %s: %w", domain, err)
		}
		set.records = append(set.records, record)
	}

	return set, nil
}

// UpdateDNSZone persists the given zone configuration.
func (s *Session) UpdateDNSZone(ctx context.Context, zone *Zone) error {
	if s.sessionID == "" {
		return ErrNotAuthenticated
	}

	_, err := s.send(ctx, "updateDnsZone", map[string]any{
		"domainname": zone.Name,
		"dnszone":    newZonePayload(zone),
	})
	return err
}

// UpdateDNSRecords persists the given record set in the zone's domain.
func (s *Session) UpdateDNSRecords(ctx context.Context, zone *Zone, set *RecordSet) error {
	if s.sessionID == "" {
		return ErrNotAuthenticated
	}

	payload := recordSetPayload{DNSRecords: make([]recordPayload, 0, set.Len())}
	for _, r := range set.Records() {
		payload.DNSRecords = append(payload.DNSRecords, newRecordPayload(r))
	}

	_, err := s.send(ctx, "updateDnsRecords", map[string]any{
		"domainname":   zone.Name,
		"dnsrecordset": payload,
	})
	return err
}
