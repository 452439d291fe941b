package main

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the cache of a running server",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache counters from the metrics endpoint",
	Long: `Print the dromeboard_cache_* series exposed by a running server.

Examples:
  dromeboard cache stats
  dromeboard cache stats --url http://dashboard.internal:8080/metrics`,
	RunE: runCacheStats,
}

var metricsURL string

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)

	cacheStatsCmd.Flags().StringVar(&metricsURL, "url", "http://127.0.0.1:8080/metrics", "metrics endpoint of the server")
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, metricsURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch metrics: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch metrics: unexpected status %d", resp.StatusCode)
	}

	out := cmd.OutOrStdout()
	found := 0
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "dromeboard_cache_") {
			fmt.Fprintln(out, line)
			found++
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read metrics: %w", err)
	}
	if found == 0 {
		fmt.Fprintln(out, "No cache series reported yet.")
	}
	return nil
}
