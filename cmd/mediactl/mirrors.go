package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/arcade-market/media-api/internal/api/common"
	"github.com/arcade-market/media-api/pkg/gateway"
)

type mirrorsResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Data    []common.MirrorResponse `json:"data"`
	Error   string                  `json:"error"`
}

func newMirrorsCommand(opts *options) *cobra.Command {
	var (
		server string
		apiKey string
	)

	cmd := &cobra.Command{
		Use:   "mirrors",
		Short: "List mirrors with their breaker state",
		Long: strings.TrimSpace(`
Without --server the mirrors from the local configuration are listed with
fresh health. With --server the running instance is asked for its live view,
which requires an operator API key.
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				policy  string
				mirrors []common.MirrorResponse
				err     error
			)
			if server != "" {
				policy, mirrors, err = fetchMirrors(cmd, server, apiKey)
			} else {
				policy, mirrors, err = localMirrors(opts)
			}
			if err != nil {
				return err
			}

			if opts.output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(mirrors)
			}

			t := newTable(cmd, table.Row{"#", "Name", "Base URL", "Rate Limit", "State", "Failure Ratio", "Consecutive Failures"})
			for i, m := range mirrors {
				rate := "-"
				if m.RateLimit > 0 {
					rate = fmt.Sprintf("%g/s (burst %d)", m.RateLimit, m.Burst)
				}
				t.AppendRow(table.Row{i + 1, m.Name, m.BaseURL, rate, m.Health.State,
					fmt.Sprintf("%.2f", m.Health.FailureRatio), m.Health.ConsecutiveErr})
			}
			t.SetCaption("ordering: %s", policy)
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Base URL of a running media API")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Operator API key for --server")
	return cmd
}

func localMirrors(opts *options) (string, []common.MirrorResponse, error) {
	policy, err := gateway.ParsePolicy(opts.config.Gateways.Ordering)
	if err != nil {
		return "", nil, err
	}
	health := gateway.NewHealthTracker(gateway.DefaultHealthConfig(), nil)
	registry, err := gateway.NewRegistry(opts.config.Gateways.Mirrors, policy, health)
	if err != nil {
		return "", nil, err
	}

	mirrors := registry.Mirrors()
	snapshot := health.Snapshot(registry.Names())
	out := make([]common.MirrorResponse, 0, len(mirrors))
	for i, m := range mirrors {
		out = append(out, common.MirrorResponse{MirrorConfig: m.Config(), Health: snapshot[i]})
	}
	return string(policy), out, nil
}

func fetchMirrors(cmd *cobra.Command, server, apiKey string) (string, []common.MirrorResponse, error) {
	if apiKey == "" {
		return "", nil, fmt.Errorf("--api-key is required with --server")
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, strings.TrimRight(server, "/")+"/api/v1/mirrors", nil)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("X-API-Key", apiKey)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to reach %s: %w", server, err)
	}
	defer resp.Body.Close()

	var body mirrorsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", nil, fmt.Errorf("unexpected response from %s (status %d): %w", server, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		return "", nil, fmt.Errorf("server answered %d: %s", resp.StatusCode, body.Error)
	}
	return body.Message, body.Data, nil
}
