package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewDelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "del",
		Aliases: []string{"delete", "rm"},
		Short:   "Delete a tenant's local index",
		Long:    `Drop the tenant from memory and remove its local artifacts. The remote mirror, if any, is left in place.`,
		RunE:    makeDelRunner(a),
	}
}

func makeDelRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		tenant, err := tenantFromFlags(cmd)
		if err != nil {
			return err
		}

		if err := a.registry.Clear(tenant); err != nil {
			return fmt.Errorf("delete tenant: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", tenant)
		return nil
	}
}
