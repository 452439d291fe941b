package main

import (
	"fmt"

	"github.com/DromeProduto/DromeBoard/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate configuration before deployment",
	Long: `Validate a DromeBoard configuration file.

Checks that the YAML parses, that values are in range and that every
dashboard module names a constructor (and a script for script modules).

Examples:
  dromeboard validate
  dromeboard validate /etc/dromeboard/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if len(args) == 1 {
		path = args[0]
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", path)

	if !fileExists(path) {
		fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", path)
	}
	fmt.Fprintf(out, "  %s Config file exists\n", checkMark)

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Listen:   %s\n", cfg.Server.Addr())
	fmt.Fprintf(out, "  Database: %s\n", cfg.Database.DSN)
	fmt.Fprintf(out, "  Modules:  %d\n", len(cfg.Modules))
	fmt.Fprintf(out, "  Regions:  %d overridden\n", len(cfg.Cache.Regions))
	return nil
}
