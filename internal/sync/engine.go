// Package sync orchestrates one reconciliation pass: fetch the current
// zone and records, merge in the desired state, and push back what changed.
package sync

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/kreigan/netcup-dyndns/internal/config"
	"github.com/kreigan/netcup-dyndns/internal/logger"
	"github.com/kreigan/netcup-dyndns/internal/netcup"
)

// Client defines the authenticated netcup operations the engine needs.
type Client interface {
	InfoDNSZone(ctx context.Context, domain string) (*netcup.Zone, error)
	InfoDNSRecords(ctx context.Context, domain string) (*netcup.RecordSet, error)
	UpdateDNSZone(ctx context.Context, zone *netcup.Zone) error
	UpdateDNSRecords(ctx context.Context, zone *netcup.Zone, set *netcup.RecordSet) error
}

// Engine runs reconciliation passes against one client.
type Engine struct {
	client Client
	log    *logger.Logger
}

// NewEngine creates a new engine.
func NewEngine(client Client, log *logger.Logger) *Engine {
	return &Engine{client: client, log: log}
}

// Options contains options for Commit.
type Options struct {
	// Update enables remote writes. Without it Commit only reports.
	Update bool
}

// Plan is the outcome of Reconcile: the merged state and what changed.
type Plan struct {
	Domain         string
	Zone           *netcup.Zone
	Records        *netcup.RecordSet
	RecordsChanged bool
	TTLChanged     bool
}

// Changed reports whether the plan contains any change worth writing.
func (p *Plan) Changed() bool {
	return p.RecordsChanged || p.TTLChanged
}

// Result counts the remote writes a Commit performed.
type Result struct {
	ZoneWrites   int
	RecordWrites int
}

var zoneTableHeaders = []string{"ZONE INFO", ""}
var recordTableHeaders = []string{"HOSTNAME", "TYPE", "DESTINATION", "STATE"}

// Reconcile fetches the current zone and records for domain and merges the
// desired records (and optional ttl) into them. It performs no writes.
func (e *Engine) Reconcile(
	ctx context.Context,
	domain string,
	desired []*netcup.Record,
	desiredTTL *int,
) (*Plan, error) {
	zone, err := e.client.InfoDNSZone(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch zone %s: %w", domain, err)
	}
	e.log.Table("Zone", zoneTableHeaders, zone.TableRows())

	records, err := e.client.InfoDNSRecords(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records of %s: %w", domain, err)
	}
	e.log.Table("Current records", recordTableHeaders, records.TableRows())

	recordsChanged := false
	for _, rec := range desired {
		changed, err := records.Merge(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to merge %s/%s: %w", rec.Hostname, rec.Type, err)
		}
		if changed {
			e.log.Diff("~", fmt.Sprintf("%s %s %s", rec.Hostname, rec.Type, rec.Destination))
		}
		recordsChanged = recordsChanged || changed
	}
	e.log.Table("Merged records", recordTableHeaders, records.TableRows())

	ttlChanged := desiredTTL != nil && *desiredTTL != zone.TTL
	if ttlChanged {
		e.log.Info("ttl changes from %d to %d", zone.TTL, *desiredTTL)
		zone.TTL = *desiredTTL
	}

	return &Plan{
		Domain:         domain,
		Zone:           zone,
		Records:        records,
		RecordsChanged: recordsChanged,
		TTLChanged:     ttlChanged,
	}, nil
}

// Commit pushes the plan's changes. The zone write happens first, then the
// record write; each re-fetches and reports the confirmed remote state.
// Writes that would be no-ops are suppressed entirely.
func (e *Engine) Commit(ctx context.Context, plan *Plan, opts Options) (*Result, error) {
	result := &Result{}

	if !plan.Changed() {
		e.log.Info("nothing changed for %s, leaving it alone", plan.Domain)
		return result, nil
	}

	if !opts.Update {
		e.log.Info("changes for %s not applied (run with --update)", plan.Domain)
		return result, nil
	}

	if plan.TTLChanged {
		if err := e.client.UpdateDNSZone(ctx, plan.Zone); err != nil {
			return result, fmt.Errorf("failed to update zone %s: %w", plan.Domain, err)
		}
		result.ZoneWrites++

		confirmed, err := e.client.InfoDNSZone(ctx, plan.Domain)
		if err != nil {
			return result, fmt.Errorf("failed to confirm zone %s: %w", plan.Domain, err)
		}
		e.log.Table("Updated zone", zoneTableHeaders, confirmed.TableRows())
	}

	if plan.RecordsChanged {
		if err := e.client.UpdateDNSRecords(ctx, plan.Zone, plan.Records); err != nil {
			return result, fmt.Errorf("failed to update records of %s: %w", plan.Domain, err)
		}
		result.RecordWrites++

		confirmed, err := e.client.InfoDNSRecords(ctx, plan.Domain)
		if err != nil {
			return result, fmt.Errorf("failed to confirm records of %s: %w", plan.Domain, err)
		}
		e.log.Table("Updated records", recordTableHeaders, confirmed.TableRows())
	}

	return result, nil
}

// BuildDesired converts host entries to desired records, filling missing
// destinations with the discovered external IP. An entry without a
// destination is an error when no IP is available.
func BuildDesired(entries []config.HostEntry, ip netip.Addr) ([]*netcup.Record, error) {
	records := make([]*netcup.Record, 0, len(entries))

	for _, entry := range entries {
		destination := entry.Destination
		if destination == "" {
			if !ip.IsValid() {
				return nil, fmt.Errorf(
					"host %s/%s has no destination and no external IP is available",
					entry.Hostname, entry.Type)
			}
			destination = ip.String()
		}

		records = append(records, &netcup.Record{
			Hostname:    entry.Hostname,
			Type:        strings.ToUpper(entry.Type),
			Destination: destination,
		})
	}

	return records, nil
}

// NeedsExternalIP reports whether any entry relies on external-IP discovery.
func NeedsExternalIP(entries []config.HostEntry) bool {
	for _, entry := range entries {
		if entry.Destination == "" {
			return true
		}
	}
	return false
}
