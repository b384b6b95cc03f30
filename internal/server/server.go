// Package server exposes the dyndns webhook: a GET with a pre-shared key
// in the path and the new addresses as query parameters triggers one
// committed sync pass for the mapped hostname.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/kreigan/netcup-dyndns/internal/config"
	"github.com/kreigan/netcup-dyndns/internal/logger"
	"github.com/kreigan/netcup-dyndns/internal/netcup"
)

// SyncFunc runs one committed sync pass for domain with the desired
// records and reports whether anything changed.
type SyncFunc func(ctx context.Context, domain string, desired []*netcup.Record) (bool, error)

// Server handles webhook requests.
type Server struct {
	settings *config.Settings
	syncFn   SyncFunc
	log      *logger.Logger
}

// New creates a webhook server. syncFn is invoked once per accepted request.
func New(settings *config.Settings, syncFn SyncFunc, log *logger.Logger) *Server {
	return &Server{settings: settings, syncFn: syncFn, log: log}
}

// Handler returns the HTTP handler serving GET /{key}.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{key}", s.handleUpdate)
	return mux
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	hostname, ok := s.settings.HostnameForKey(key)
	if !ok {
		s.log.Warn("rejected request with unknown key %s", logger.MaskSecret(key))
		w.WriteHeader(http.StatusForbidden)
		return
	}

	desired, err := desiredFromQuery(hostname, r.URL.Query().Get("ipv4"), r.URL.Query().Get("ipv6"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.log.Debug("webhook update for %s: %s", hostname, describe(desired))

	changed, err := s.syncFn(r.Context(), s.settings.Webhook.Domain, desired)
	if err != nil {
		s.log.Error("sync for %s failed: %v", hostname, err)
		http.Error(w, fmt.Sprintf("sync failed: %v", err), http.StatusBadGateway)
		return
	}

	if changed {
		fmt.Fprintln(w, "updated")
	} else {
		fmt.Fprintln(w, "unchanged")
	}
}

// desiredFromQuery builds the desired records for one hostname from the
// ipv4/ipv6 query parameters. At least one must be present and parse as an
// address of the matching family.
func desiredFromQuery(hostname, ipv4, ipv6 string) ([]*netcup.Record, error) {
	if ipv4 == "" && ipv6 == "" {
		return nil, fmt.Errorf("provide an ipv4 or ipv6 or both")
	}

	var desired []*netcup.Record

	if ipv4 != "" {
		addr, err := netip.ParseAddr(ipv4)
		if err != nil || !addr.Is4() {
			return nil, fmt.Errorf("invalid ipv4 %q", ipv4)
		}
		desired = append(desired, &netcup.Record{
			Hostname:    hostname,
			Type:        netcup.TypeA,
			Destination: addr.String(),
		})
	}

	if ipv6 != "" {
		addr, err := netip.ParseAddr(ipv6)
		if err != nil || !addr.Is6() {
			return nil, fmt.Errorf("invalid ipv6 %q", ipv6)
		}
		desired = append(desired, &netcup.Record{
			Hostname:    hostname,
			Type:        netcup.TypeAAAA,
			Destination: addr.String(),
		})
	}

	return desired, nil
}

func describe(records []*netcup.Record) string {
	parts := make([]string, 0, len(records))
	for _, r := range records {
		parts = append(parts, fmt.Sprintf("%s=%s", r.Type, r.Destination))
	}
	return strings.Join(parts, " ")
}
