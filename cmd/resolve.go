// cmd/resolve.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sk3lla/mend/api/schemas"
	"github.com/sk3lla/mend/internal/browser"
	"github.com/sk3lla/mend/internal/cache"
	"github.com/sk3lla/mend/internal/healer"
	"github.com/sk3lla/mend/internal/llmclient"
	"github.com/sk3lla/mend/internal/observability"
)

var resolveFlags struct {
	url         string
	action      string
	selector    string
	description string
	value       string
	testName    string
	force       bool
}

// resolveCmd runs one resolution against a live page. It exists for
// debugging cache entries and prompt behavior outside a test suite.
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Navigate to a URL and resolve one action against it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		gen, err := llmclient.NewGenerator(cmd.Context(), cfg.LLM, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize completion backend: %w", err)
		}

		page, closeBrowser := browser.NewBrowser(cmd.Context(), cfg.Browser, logger)
		defer closeBrowser()

		if err := page.Navigate(cmd.Context(), resolveFlags.url, cfg.Browser.NavigationTimeout); err != nil {
			return err
		}

		h := healer.New(
			page,
			gen,
			cache.NewManager(cfg.Heal.CacheFile, logger),
			healer.NewReporter(cfg.Heal.ReportFile, logger),
			cfg,
			logger,
		)

		req := healer.ResolveRequest{
			Action:      schemas.ActionKind(resolveFlags.action),
			Selector:    resolveFlags.selector,
			Description: resolveFlags.description,
			Value:       resolveFlags.value,
			Force:       resolveFlags.force,
			TestName:    resolveFlags.testName,
		}
		if err := h.Resolve(cmd.Context(), req); err != nil {
			return err
		}

		logger.Info("Resolution succeeded",
			zap.String("action", resolveFlags.action),
			zap.String("description", resolveFlags.description))
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFlags.url, "url", "", "page to navigate to")
	resolveCmd.Flags().StringVar(&resolveFlags.action, "action", "click", "action kind (click, fill, hover, check, uncheck, dblclick, focus, select_option)")
	resolveCmd.Flags().StringVar(&resolveFlags.selector, "selector", "", "declared CSS selector, if any")
	resolveCmd.Flags().StringVar(&resolveFlags.description, "description", "", "human description of the target element")
	resolveCmd.Flags().StringVar(&resolveFlags.value, "value", "", "value for fill or select_option")
	resolveCmd.Flags().StringVar(&resolveFlags.testName, "test-name", "", "logical test name for the report")
	resolveCmd.Flags().BoolVar(&resolveFlags.force, "force", false, "skip visibility gating and dispatch clicks directly")
	_ = resolveCmd.MarkFlagRequired("url")
	_ = resolveCmd.MarkFlagRequired("description")
	rootCmd.AddCommand(resolveCmd)
}
