// Package netcup implements the netcup CCP DNS webservice: the zone and
// record data model, the record-set merge used for dyndns reconciliation,
// and the session-based JSON API protocol.
// See: https://ccp.netcup.net/run/webservice/servers/endpoint.php
package netcup

import (
	"fmt"
	"strconv"
)

// Record types that may coexist for one hostname (dual-stack hosts).
const (
	TypeA    = "A"
	TypeAAAA = "AAAA"
)

// Record represents a single DNS record (host entry) in a zone.
type Record struct {
	// ID is assigned by netcup; zero for records that do not exist remotely yet.
	ID          int
	Hostname    string
	Type        string
	Destination string
	Priority    int
	// DeleteRecord marks the record for deletion on the next updateDnsRecords.
	DeleteRecord bool
	// State is reported by netcup (e.g. "yes") and is read-only.
	State string
}

// NeedsUpdate reports whether the record differs from other in the
// sync-relevant fields (destination and type). ID, priority and state are
// remote-side metadata and not compared.
func (r *Record) NeedsUpdate(other *Record) bool {
	return r.Destination != other.Destination || r.Type != other.Type
}

// ApplyUpdate copies destination and type from other into r and reports
// whether anything actually changed.
func (r *Record) ApplyUpdate(other *Record) bool {
	changed := false
	if r.Destination != other.Destination {
		r.Destination = other.Destination
		changed = true
	}
	if r.Type != other.Type {
		r.Type = other.Type
		changed = true
	}
	return changed
}

// Zone represents the DNS zone configuration of one domain. Only TTL may be
// modified by callers; the remaining fields are authoritative on the netcup
// side.
type Zone struct {
	Name         string
	TTL          int
	Serial       string
	Refresh      int
	Retry        int
	Expire       int
	DNSSECStatus bool
}

// TableRows returns the zone fields as rows for logger.Table.
func (z *Zone) TableRows() [][]string {
	return [][]string{
		{"domain", z.Name},
		{"ttl", strconv.Itoa(z.TTL)},
		{"serial", z.Serial},
		{"refresh", strconv.Itoa(z.Refresh)},
		{"retry", strconv.Itoa(z.Retry)},
		{"expire", strconv.Itoa(z.Expire)},
		{"dnssec", strconv.FormatBool(z.DNSSECStatus)},
	}
}

// Wire shapes of the netcup webservice. Numeric record fields travel as JSON
// strings (e.g. "id": "123", "priority": "0").

type recordPayload struct {
	ID           string `json:"id,omitempty"`
	Hostname     string `json:"hostname"`
	Type         string `json:"type"`
	Priority     string `json:"priority,omitempty"`
	Destination  string `json:"destination"`
	DeleteRecord bool   `json:"deleterecord,omitempty"`
	State        string `json:"state,omitempty"`
}

type recordSetPayload struct {
	DNSRecords []recordPayload `json:"dnsrecords"`
}

type zonePayload struct {
	Name         string `json:"name"`
	TTL          string `json:"ttl"`
	Serial       string `json:"serial,omitempty"`
	Refresh      string `json:"refresh,omitempty"`
	Retry        string `json:"retry,omitempty"`
	Expire       string `json:"expire,omitempty"`
	DNSSECStatus bool   `json:"dnssecstatus"`
}

func newRecordPayload(r *Record) recordPayload {
	p := recordPayload{
		Hostname:     r.Hostname,
		Type:         r.Type,
		Priority:     strconv.Itoa(r.Priority),
		Destination:  r.Destination,
		DeleteRecord: r.DeleteRecord,
		State:        r.State,
	}
	if r.ID != 0 {
		p.ID = strconv.Itoa(r.ID)
	}
	return p
}

func newZonePayload(z *Zone) zonePayload {
	return zonePayload{
		Name:         z.Name,
		TTL:          strconv.Itoa(z.TTL),
		Serial:       z.Serial,
		Refresh:      strconv.Itoa(z.Refresh),
		Retry:        strconv.Itoa(z.Retry),
		Expire:       strconv.Itoa(z.Expire),
		DNSSECStatus: z.DNSSECStatus,
	}
}

func (p recordPayload) toRecord() (*Record, error) {
	id, err := atoiDefault(p.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("record %s/%s: invalid id %q", p.Hostname, p.Type, p.ID)
	}
	priority, err := atoiDefault(p.Priority, 0)
	if err != nil {
		return nil, fmt.Errorf("record %s/%s: invalid priority %q", p.Hostname, p.Type, p.Priority)
	}
	return &Record{
		ID:           id,
		Hostname:     p.Hostname,
		Type:         p.Type,
		Destination:  p.Destination,
		Priority:     priority,
		DeleteRecord: p.DeleteRecord,
		State:        p.State,
	}, nil
}

func atoiDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
