// cmd/cache.go
package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sk3lla/mend/internal/cache"
	"github.com/sk3lla/mend/internal/observability"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the healed-strategy cache.",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every cached strategy.",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := cache.NewManager(cfg.Heal.CacheFile, observability.GetLogger())
		entries := mgr.Entries()
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "cache is empty")
			return nil
		}

		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			e := entries[k]
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n  strategy: %s\n", k, e.Strategy)
			if e.TestName != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  test:     %s\n", e.TestName)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d entries in %s\n", len(entries), cfg.Heal.CacheFile)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the strategy cache.",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := cache.NewManager(cfg.Heal.CacheFile, observability.GetLogger())
		if err := mgr.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", cfg.Heal.CacheFile)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
