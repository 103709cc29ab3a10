package main

import (
	"fmt"

	"HistPull/internal/di"

	"github.com/spf13/cobra"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	// Blocks until SIGINT/SIGTERM, then shuts down in order:
	// scheduler, job workers, HTTP server, infrastructure clients.
	return app.Run()
}
