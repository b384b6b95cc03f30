package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kreigan/netcup-dyndns/internal/ipfinder"
)

var ipCmd = &cobra.Command{
	Use:          "ip",
	Short:        "Print the discovered external IP",
	Long:         `Look up the external IP using the source configured in the settings file and print it.`,
	SilenceUsage: true,
	RunE:         runIP,
}

func init() {
	rootCmd.AddCommand(ipCmd)
}

func runIP(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}

	settings, err := loadSettings(cmd, log)
	if err != nil {
		return err
	}

	provider := ipfinder.FromSettings(settings)
	ip, err := provider.CurrentIP(cmd.Context())
	if err != nil {
		return fmt.Errorf("unable to find external ip: %w", err)
	}

	fmt.Println(ip)
	return nil
}
