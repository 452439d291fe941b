package main

import (
	"fmt"

	"github.com/DromeProduto/DromeBoard/bootstrap"
	"github.com/spf13/cobra"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the DromeBoard server.

The server will:
  - Load configuration from dromeboard.yaml (or --config) and DROMEBOARD_* variables
  - Open and migrate the SQLite database
  - Warm the cache and serve the API under /api and the dashboard under /dashboard

Environment variables:
  DROMEBOARD_DATABASE_DSN      - Database path (default: dromeboard.db)
  DROMEBOARD_AUTH_JWT_SECRET   - Token signing secret (random per process when unset)
  DROMEBOARD_SERVER_PORT       - Server port (default: 8080)
  DROMEBOARD_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  dromeboard serve
  dromeboard serve --config /etc/dromeboard/config.yaml
  dromeboard serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "reload cache regions and log level when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := fileExists(cfgFile)
	if !hasConfigFile {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s not found, using environment variables\n", cfgFile)
	}

	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		HotReload:  hasConfigFile && hotReload,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run blocks until shutdown.
	return app.Run()
}
