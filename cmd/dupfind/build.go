package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/triageworks/dupfind/internal"
)

func NewBuildCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <dataset.csv>",
		Short: "Build a tenant's search index from a dataset",
		Long:  `Embed every record of a CSV dataset and build the per-platform vector indexes. A complete artifact set in the remote cache is reused instead of re-embedding.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeBuildRunner(a),
	}

	cmd.Flags().StringSlice("text", nil, "Text columns to embed, in order (required)")
	cmd.Flags().String("application-column", "", "Column holding the application name")
	cmd.Flags().String("platform-column", "", "Column holding the platform (android/ios)")
	cmd.Flags().String("version-column", "", "Column holding the app version")
	cmd.Flags().String("language-column", "", "Column holding the report language")
	cmd.Flags().String("priority-column", "", "Column holding the priority")
	cmd.Flags().Bool("no-cache", false, "Skip the remote cache and embed locally")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func makeBuildRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		tenant, err := tenantFromFlags(cmd)
		if err != nil {
			return err
		}

		ds, err := internal.LoadDatasetCSV(args[0])
		if err != nil {
			return fmt.Errorf("load dataset: %w", err)
		}

		roles, err := rolesFromFlags(cmd)
		if err != nil {
			return err
		}
		noCache, _ := cmd.Flags().GetBool("no-cache")

		res, err := a.pipeline.Build(cmd.Context(), tenant, ds, internal.BuildOptions{
			Roles:    roles,
			UseCache: a.cfg.Cache.Enabled && !noCache,
		})
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}

		if res.EmbeddingsCreated {
			fmt.Fprintf(cmd.OutOrStdout(), "Built index for %s: %d records embedded\n", tenant, res.RecordCount)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Restored index for %s from cache: %d records\n", tenant, res.RecordCount)
		}
		return nil
	}
}

func rolesFromFlags(cmd *cobra.Command) (internal.ColumnRoles, error) {
	text, _ := cmd.Flags().GetStringSlice("text")
	if len(text) == 0 {
		return internal.ColumnRoles{}, fmt.Errorf("--text requires at least one column")
	}

	application, _ := cmd.Flags().GetString("application-column")
	platform, _ := cmd.Flags().GetString("platform-column")
	version, _ := cmd.Flags().GetString("version-column")
	language, _ := cmd.Flags().GetString("language-column")
	priority, _ := cmd.Flags().GetString("priority-column")

	return internal.ColumnRoles{
		Text:        text,
		Application: application,
		Platform:    platform,
		Version:     version,
		Language:    language,
		Priority:    priority,
	}, nil
}
