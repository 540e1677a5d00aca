package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/triageworks/dupfind/internal"
)

func NewSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find likely duplicates of a bug report",
		Long:  `Run the hybrid duplicate search: vector candidate generation, pairwise re-ranking, and metadata-weighted fusion.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeSearchRunner(a),
	}

	cmd.Flags().IntP("number", "n", 0, "Maximum results (0 uses the configured default)")
	cmd.Flags().StringSlice("columns", nil, "Columns to compare against the query during re-ranking")
	cmd.Flags().String("application", "", "Only match reports for this application")
	cmd.Flags().String("platform", "", "Only search this platform's index (android/ios)")
	cmd.Flags().String("app-version", "", "Weigh candidates by version proximity")
	cmd.Flags().String("language", "", "Only match reports in this language")

	return cmd
}

func makeSearchRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		tenant, err := tenantFromFlags(cmd)
		if err != nil {
			return err
		}

		req := searchRequestFromFlags(cmd, args[0])
		asJSON, _ := cmd.Flags().GetBool("json")

		results, err := a.searcher.Search(cmd.Context(), tenant, req)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matching reports.")
			return nil
		}
		for i, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%2d. %.4f  #%d  %s\n", i+1, r.FinalScore, r.Ordinal, resultTitle(r, req.SelectedColumns))
		}
		return nil
	}
}

func searchRequestFromFlags(cmd *cobra.Command, query string) internal.SearchRequest {
	topK, _ := cmd.Flags().GetInt("number")
	columns, _ := cmd.Flags().GetStringSlice("columns")
	application, _ := cmd.Flags().GetString("application")
	platform, _ := cmd.Flags().GetString("platform")
	version, _ := cmd.Flags().GetString("app-version")
	language, _ := cmd.Flags().GetString("language")

	return internal.SearchRequest{
		Query:           query,
		SelectedColumns: columns,
		TopK:            topK,
		Filters: internal.SearchFilters{
			Application: application,
			Platform:    platform,
			Version:     version,
			Language:    language,
		},
	}
}

func resultTitle(r internal.SearchResult, columns []string) string {
	for _, col := range columns {
		if v := r.Fields[col]; v != "" {
			return v
		}
	}
	for _, col := range []string{"Summary", "Title", "Description"} {
		if v := r.Fields[col]; v != "" {
			return v
		}
	}
	return ""
}
