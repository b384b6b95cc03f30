package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kreigan/netcup-dyndns/internal/netcup"
	"github.com/kreigan/netcup-dyndns/internal/server"
	"github.com/kreigan/netcup-dyndns/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dyndns webhook server",
	Long: `Run an HTTP server that accepts dyndns updates.

A request to /{key}?ipv4=<addr>&ipv6=<addr> updates the hostname mapped to
the key in the settings file. Unknown keys are rejected with 403; requests
without any address with 400. Every accepted request runs one committed
sync pass against the configured webhook domain.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var listenAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", ":8081", "Address to listen on")
}

func runServe(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}

	settings, err := loadSettings(cmd, log)
	if err != nil {
		return err
	}

	if len(settings.Webhook.Keys) == 0 {
		return fmt.Errorf("settings contain no webhook keys")
	}

	// Each pass owns its session: login, sync, guaranteed logout.
	syncPass := func(ctx context.Context, domain string, desired []*netcup.Record) (bool, error) {
		session := netcup.NewSession(
			settings.APIURL, settings.CustomerNumber, settings.APIKey, settings.APIPassword, log)

		if err := session.Login(ctx); err != nil {
			return false, fmt.Errorf("login failed: %w", err)
		}
		defer session.Close(ctx)

		engine := sync.NewEngine(session, log)
		plan, err := engine.Reconcile(ctx, domain, desired, nil)
		if err != nil {
			return false, err
		}
		if _, err := engine.Commit(ctx, plan, sync.Options{Update: true}); err != nil {
			return false, err
		}
		return plan.Changed(), nil
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           server.New(settings, syncPass, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Listening on %s for domain %s", listenAddr, settings.Webhook.Domain)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
