package main

import (
	"encoding/json"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/arcade-market/media-api/internal/app"
	"github.com/arcade-market/media-api/pkg/locator"
	"github.com/arcade-market/media-api/pkg/resolver"
)

type candidateReport struct {
	Locator    string   `json:"locator"`
	Scheme     string   `json:"scheme"`
	Kind       string   `json:"kind"`
	Candidates []string `json:"candidates"`
	Guesses    []string `json:"guesses,omitempty"`
}

func newCandidatesCommand(opts *options) *cobra.Command {
	var (
		tokenID string
		guesses bool
	)

	cmd := &cobra.Command{
		Use:   "candidates <locator>",
		Short: "Show how a locator is normalized and which mirror URLs would be tried",
		Long:  "Normalize and expand a locator without any network access.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := locator.ParseTokenID(tokenID)
			if err != nil {
				return err
			}

			expanded, err := locator.Expand(locator.Normalize(args[0]), id)
			if err != nil {
				return err
			}

			components, err := app.Build(opts.config, nil)
			if err != nil {
				return err
			}
			defer components.Close()

			report := candidateReport{
				Locator: expanded.String(),
				Scheme:  string(expanded.Scheme),
				Kind:    string(expanded.Kind),
			}
			for c := range components.Registry.Candidates(expanded) {
				report.Candidates = append(report.Candidates, c.URL)
			}
			if guesses && expanded.Kind == locator.KindDirectory {
				guesser := resolver.NewDirectoryGuesser()
				report.Guesses = append(guesser.MetadataFilenames(id), guesser.CandidateFilenames(id)...)
			}

			if opts.output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			t := newTable(cmd, table.Row{"Field", "Value"})
			t.AppendRow(table.Row{"Locator", report.Locator})
			t.AppendRow(table.Row{"Scheme", report.Scheme})
			t.AppendRow(table.Row{"Kind", report.Kind})
			t.AppendSeparator()
			for i, u := range report.Candidates {
				t.AppendRow(table.Row{"Candidate " + strconv.Itoa(i+1), u})
			}
			if len(report.Guesses) > 0 {
				t.AppendSeparator()
				for i, g := range report.Guesses {
					t.AppendRow(table.Row{"Guess " + strconv.Itoa(i+1), g})
				}
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&tokenID, "token-id", "", "Token id substituted into {id} templates (decimal or 0x hex)")
	cmd.Flags().BoolVar(&guesses, "guesses", false, "List the file names tried inside directory locators")
	return cmd
}
