package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/arcade-market/media-api/internal/app"
	"github.com/arcade-market/media-api/pkg/locator"
	"github.com/arcade-market/media-api/pkg/resolver"
)

type resolveRow struct {
	Source string `json:"source"`
	resolver.Result
	Elapsed time.Duration `json:"elapsedNs"`
}

func newResolveCommand(opts *options) *cobra.Command {
	var (
		tokenID string
		strict  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "resolve <locator>...",
		Short: "Resolve locators to displayable URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := locator.ParseTokenID(tokenID)
			if err != nil {
				return err
			}

			components, err := app.Build(opts.config, nil)
			if err != nil {
				return err
			}
			defer components.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			rows := make([]resolveRow, 0, len(args))
			for _, raw := range args {
				start := time.Now()
				res, err := components.Engine.Resolve(ctx, raw, resolver.Options{TokenID: id, Strict: strict})
				if errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("timed out after %s with %d of %d locators resolved: %w", timeout, len(rows), len(args), err)
				}
				if err != nil {
					return fmt.Errorf("%s: %w", raw, err)
				}
				rows = append(rows, resolveRow{Source: raw, Result: res, Elapsed: time.Since(start)})
			}

			if opts.output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			t := newTable(cmd, table.Row{"Source", "Status", "Strategy", "Best Effort", "Attempts", "Elapsed", "URL"})
			for _, r := range rows {
				url := r.URL
				if url == "" {
					url = r.FallbackURL
				}
				t.AppendRow(table.Row{r.Source, r.Status, r.Strategy, r.BestEffort, r.Attempts, r.Elapsed.Round(time.Millisecond), url})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&tokenID, "token-id", "", "Token id substituted into {id} templates (decimal or 0x hex)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail instead of returning a best-effort URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall deadline for all resolutions")
	return cmd
}
