package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "dromeboard",
	Short: "Dashboard server for Drome units",
	Long: `DromeBoard serves the unit dashboard and its JSON API.

Quick start:
  dromeboard users create-admin --email=admin@example.com --name=Admin
  dromeboard serve

Maintenance:
  dromeboard validate      # Check a configuration file
  dromeboard cache stats   # Show cache counters of a running server`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "dromeboard.yaml", "config file path")
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
