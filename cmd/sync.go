package cmd

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kreigan/netcup-dyndns/internal/config"
	"github.com/kreigan/netcup-dyndns/internal/ipfinder"
	"github.com/kreigan/netcup-dyndns/internal/logger"
	"github.com/kreigan/netcup-dyndns/internal/netcup"
	"github.com/kreigan/netcup-dyndns/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync [hosts-file]",
	Short: "Reconcile zones against a hosts file",
	Long: `Reconcile the configured zones against the desired state in a YAML
hosts file.

For every zone the current records are fetched, the desired hosts are
merged in, and the result is reported. Nothing is written unless --update
is given. Hosts without an explicit destination get the machine's external
IP, discovered via the source configured in the settings file.

The hosts file is not checked for DNS sanity beyond the required fields.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runSync,
}

var update bool
var ttlFlag int

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVarP(&update, "update", "u", false, "Apply changes instead of only reporting them")
	syncCmd.Flags().IntVarP(&ttlFlag, "ttl", "t", 0, "Override the zone ttl for all zones")
}

func runSync(cmd *cobra.Command, args []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	log.SetDryRun(!update)

	settings, err := loadSettings(cmd, log)
	if err != nil {
		return err
	}

	hostsFile := args[0]
	log.Info("Loading hosts from %s", hostsFile)
	hosts, err := config.LoadHosts(hostsFile)
	if err != nil {
		return fmt.Errorf("failed to load hosts: %w", err)
	}
	log.Info("Loaded %d zone(s)", len(hosts.Zones))

	var desiredTTL *int
	if cmd.Flags().Changed("ttl") {
		desiredTTL = &ttlFlag
	}

	ip, err := discoverIP(cmd, settings, hosts, log)
	if err != nil {
		return err
	}

	session := netcup.NewSession(
		settings.APIURL, settings.CustomerNumber, settings.APIKey, settings.APIPassword, log)
	ctx := cmd.Context()

	if err := session.Login(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	defer session.Close(ctx)

	engine := sync.NewEngine(session, log)

	// Deterministic zone order.
	names := make([]string, 0, len(hosts.Zones))
	for name := range hosts.Zones {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, domain := range names {
		zone := hosts.Zones[domain]
		log.Info("Working on domain: %s", domain)

		desired, err := sync.BuildDesired(zone.Hosts, ip)
		if err != nil {
			return fmt.Errorf("zone %s: %w", domain, err)
		}

		ttl := desiredTTL
		if ttl == nil {
			ttl = zone.TTL
		}

		plan, err := engine.Reconcile(ctx, domain, desired, ttl)
		if err != nil {
			return err
		}

		result, err := engine.Commit(ctx, plan, sync.Options{Update: update})
		if err != nil {
			return err
		}

		log.InfoWithData(fmt.Sprintf("Finished zone %s", domain), map[string]interface{}{
			"domain":         domain,
			"recordsChanged": plan.RecordsChanged,
			"ttlChanged":     plan.TTLChanged,
			"zoneWrites":     result.ZoneWrites,
			"recordWrites":   result.RecordWrites,
		})
	}

	return nil
}

// discoverIP fetches the external IP when any configured host needs it.
func discoverIP(
	cmd *cobra.Command,
	settings *config.Settings,
	hosts *config.HostsConfig,
	log *logger.Logger,
) (netip.Addr, error) {
	needed := false
	for _, zone := range hosts.Zones {
		if sync.NeedsExternalIP(zone.Hosts) {
			needed = true
			break
		}
	}
	if !needed {
		return netip.Addr{}, nil
	}

	provider := ipfinder.FromSettings(settings)
	ip, err := provider.CurrentIP(cmd.Context())
	if err != nil {
		return netip.Addr{}, fmt.Errorf("unable to find external ip: %w", err)
	}
	log.Info("Found external ip: %s", ip)
	return ip, nil
}
