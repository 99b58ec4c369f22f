package main

import (
	"fmt"

	"fdep/internal/server"

	"github.com/spf13/cobra"
)

var (
	listenAddr string
	testMode   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve target and run history status over HTTP",
	Long: `Start a read-only JSON API over the targets in deploy.json and the
local run history:

  GET /health            targets and the latest run of each
  GET /status/{target}   latest and recent runs of one target
  GET /runs?limit=N      recent runs of every target`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", getEnvOrDefault("FDEP_LISTEN", ""), "Address to listen on (default from settings)")
	serveCmd.Flags().BoolVar(&testMode, "test-mode", false, "Disable rate limiting")
}

func runServe(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	if reg.Count() == 0 {
		app.logger.Warn("No targets configured")
	}

	hist, err := openHistory()
	if err != nil {
		return fmt.Errorf("failed to initialize history database: %w", err)
	}
	defer hist.Close()

	addr := listenAddr
	if addr == "" {
		addr = app.settings.Server.Listen
	}

	ctx, stop := signalContext()
	defer stop()

	srv := server.NewServer(reg, hist, app.logger, testMode)
	app.console.Info("Serving status on http://%s", addr)
	if err := srv.Serve(ctx, addr); err != nil {
		app.logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
