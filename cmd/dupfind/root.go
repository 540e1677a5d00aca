package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/triageworks/dupfind/internal"
)

func NewRootCmd(version string, a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dupfind",
		Short:         "Duplicate bug report search",
		Long:          `Hybrid semantic search over bug report datasets: build a per-tenant embedding index, then find likely duplicates of an incoming report.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	setHelpWithExternals(rootCmd)

	if a != nil {
		addSubcommands(rootCmd, a)
	}

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("tenant", "t", "", "Tenant id")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
}

func addSubcommands(root *cobra.Command, a *app) {
	root.AddCommand(
		NewBuildCmd(a),
		NewAppendCmd(a),
		NewSearchCmd(a),
		NewStatusCmd(a),
		NewDelCmd(a),
	)
}

// tenantFromFlags resolves and validates the persistent --tenant flag.
func tenantFromFlags(cmd *cobra.Command) (internal.TenantID, error) {
	raw, _ := cmd.Flags().GetString("tenant")
	if raw == "" {
		return "", fmt.Errorf("--tenant is required")
	}
	id, err := internal.NewTenantID(raw)
	if err != nil {
		return "", fmt.Errorf("tenant %q: %w", raw, err)
	}
	return id, nil
}

func setHelpWithExternals(cmd *cobra.Command) {
	defaultHelp := cmd.HelpFunc()

	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		defaultHelp(c, args)
		printExternalCommands(c)
	})
}

func printExternalCommands(cmd *cobra.Command) {
	externals := listExternalCommands()
	if len(externals) == 0 {
		return
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nExternal commands (dupfind-*):")
	for _, name := range externals {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
	}
}
