// Package config handles loading and validating the API settings and the
// desired host state from YAML files.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// IP source names accepted in settings.
const (
	IPSourceIpify    = "ipify"
	IPSourceFritzBox = "fritzbox"
	IPSourceDNS      = "dns"
)

// Settings holds the netcup API credentials and runtime options.
type Settings struct {
	APIURL         string `yaml:"api_url"`
	CustomerNumber string `yaml:"customer_number"`
	APIKey         string `yaml:"api_key"`
	APIPassword    string `yaml:"api_password"`

	// IPSource selects the external-IP lookup strategy (ipify, fritzbox,
	// dns). Empty defaults to ipify, or to fritzbox when FritzBoxAddress
	// is set.
	IPSource        string `yaml:"ip_source,omitempty"`
	FritzBoxAddress string `yaml:"fritzbox_address,omitempty"`

	Webhook WebhookSettings `yaml:"webhook,omitempty"`
}

// WebhookSettings configures the webhook front end: the domain updates
// apply to and the key-to-hostname map.
type WebhookSettings struct {
	Domain string       `yaml:"domain,omitempty"`
	Keys   []WebhookKey `yaml:"keys,omitempty"`
}

// WebhookKey maps an opaque URL key to the hostname it may update.
type WebhookKey struct {
	Key      string `yaml:"key"`
	Hostname string `yaml:"hostname"`
}

// HostsConfig is the desired state: per zone, an optional ttl and the host
// records to reconcile.
type HostsConfig struct {
	Zones map[string]ZoneHosts `yaml:"zones"`
}

// ZoneHosts is the desired state for one zone.
type ZoneHosts struct {
	TTL   *int        `yaml:"ttl,omitempty"`
	Hosts []HostEntry `yaml:"hosts"`
}

// HostEntry is one desired record. An empty destination means "use the
// discovered external IP".
type HostEntry struct {
	Hostname    string `yaml:"hostname"`
	Type        string `yaml:"type"`
	Destination string `yaml:"destination,omitempty"`
}

// LoadSettings loads and validates API settings from a YAML file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from CLI argument
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if validationErr := settings.Validate(); validationErr != nil {
		return nil, validationErr
	}

	return &settings, nil
}

// LoadHosts loads and validates the desired host state from a YAML file.
func LoadHosts(path string) (*HostsConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from CLI argument
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var cfg HostsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, validationErr
	}

	return &cfg, nil
}

// ValidationError holds all validation errors.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf(
		"validation failed with %d error(s):\n  - %s",
		len(e.Errors),
		strings.Join(e.Errors, "\n  - "),
	)
}

// Add appends a formatted error message to the validation errors.
func (e *ValidationError) Add(format string, args ...interface{}) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks the settings and returns all errors at once.
func (s *Settings) Validate() *ValidationError {
	errs := &ValidationError{}

	if s.APIURL == "" {
		errs.Add("api_url is required")
	}
	if s.CustomerNumber == "" {
		errs.Add("customer_number is required")
	}
	if s.APIKey == "" {
		errs.Add("api_key is required")
	}
	if s.APIPassword == "" {
		errs.Add("api_password is required")
	}

	switch s.IPSource {
	case "", IPSourceIpify, IPSourceDNS:
	case IPSourceFritzBox:
		if s.FritzBoxAddress == "" {
			errs.Add("ip_source %q requires fritzbox_address", s.IPSource)
		}
	default:
		errs.Add("invalid ip_source %q, must be one of: ipify, fritzbox, dns", s.IPSource)
	}

	seenKeys := make(map[string]bool)
	for i, k := range s.Webhook.Keys {
		if k.Key == "" {
			errs.Add("webhook key[%d]: key is required", i)
		}
		if k.Hostname == "" {
			errs.Add("webhook key[%d]: hostname is required", i)
		}
		if seenKeys[k.Key] {
			errs.Add("webhook key[%d]: duplicate key", i)
		}
		seenKeys[k.Key] = true
	}
	if len(s.Webhook.Keys) > 0 && s.Webhook.Domain == "" {
		errs.Add("webhook: domain is required when keys are configured")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Validate checks the desired state and returns all errors at once. Records
// without hostname or type are rejected here, before any remote call is
// made.
func (c *HostsConfig) Validate() *ValidationError {
	errs := &ValidationError{}

	if len(c.Zones) == 0 {
		errs.Add("at least one zone is required")
	}

	for zoneName, zone := range c.Zones {
		if zoneName == "" {
			errs.Add("zone name cannot be empty")
		}
		if len(zone.Hosts) == 0 {
			errs.Add("zone %q: at least one host is required", zoneName)
		}
		if zone.TTL != nil && *zone.TTL < 0 {
			errs.Add("zone %q: ttl cannot be negative", zoneName)
		}
		for i, h := range zone.Hosts {
			if h.Hostname == "" {
				errs.Add("zone %q, host[%d]: hostname is required", zoneName, i)
			}
			if h.Type == "" {
				errs.Add("zone %q, host[%d] (%s): type is required", zoneName, i, h.Hostname)
			}
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// HostnameForKey resolves a webhook key to its hostname.
func (s *Settings) HostnameForKey(key string) (string, bool) {
	for _, k := range s.Webhook.Keys {
		if k.Key == key {
			return k.Hostname, true
		}
	}
	return "", false
}
