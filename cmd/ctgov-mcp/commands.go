package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Sternrassler/ctgov-client/internal/tools"
	"github.com/Sternrassler/ctgov-client/pkg/client"
	"github.com/Sternrassler/ctgov-client/pkg/query"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:          "ctgov-mcp",
		Short:        "ClinicalTrials.gov tools over MCP",
		Version:      client.Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (YAML)")

	root.AddCommand(
		newServeCmd(&cfgFile),
		newSearchCmd(&cfgFile),
		newDetailsCmd(&cfgFile),
		newTranslateCmd(),
	)
	return root
}

func newSearchCmd(cfgFile *string) *cobra.Command {
	var (
		limit   int
		asJSON  bool
		phases  []string
		status  []string
		country string
	)

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search trials with a natural language query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			intent := query.SearchIntent{
				Query:    strings.Join(args, " "),
				Phases:   phases,
				Statuses: status,
			}
			if country != "" {
				intent.Location = &query.Location{Country: country}
			}

			res, err := a.service.SearchTrials(cmd.Context(), tools.SearchArgs{SearchIntent: intent, Limit: limit})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, res)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "query: %s\n", res.QueryUsed)
			if res.TotalCount != nil {
				fmt.Fprintf(out, "showing %d of %d trials\n\n", res.ReturnedCount, *res.TotalCount)
			} else {
				fmt.Fprintf(out, "showing %d trials\n\n", res.ReturnedCount)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NCT ID\tSTATUS\tPHASE\tTITLE")
			for _, s := range res.Studies {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.NCTID, s.Status, strings.Join(s.Phases, "/"), s.Title)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", tools.DefaultSearchLimit, "maximum number of trials")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().StringSliceVar(&phases, "phase", nil, "phase filter, repeatable")
	cmd.Flags().StringSliceVar(&status, "status", nil, "overall status filter, repeatable")
	cmd.Flags().StringVar(&country, "country", "", "location country")
	return cmd
}

func newDetailsCmd(cfgFile *string) *cobra.Command {
	var depth string

	cmd := &cobra.Command{
		Use:   "details <nct-id>...",
		Short: "Fetch trials by NCT identifier",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.service.TrialDetails(cmd.Context(), args, tools.ParseDepth(depth))
			if err != nil {
				return err
			}
			return writeJSON(cmd, res)
		},
	}

	cmd.Flags().StringVar(&depth, "depth", string(tools.DepthStandard), "SUMMARY, STANDARD or COMPREHENSIVE")
	return cmd
}

func newTranslateCmd() *cobra.Command {
	var withParams bool

	cmd := &cobra.Command{
		Use:   "translate <text>",
		Short: "Translate a natural language query to AREA[] syntax",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			tr := query.NewTranslator()
			if withParams {
				return writeJSON(cmd, tr.BuildParams(query.SearchIntent{Query: text}))
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), tr.Translate(text))
			return err
		},
	}

	cmd.Flags().BoolVar(&withParams, "params", false, "print the resulting search parameters as JSON")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	text, err := tools.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}
