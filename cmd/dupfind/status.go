package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func NewStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show a tenant's index status",
		Long:  `Show whether the tenant can serve searches, plus record count, model and partition sizes.`,
		RunE:  makeStatusRunner(a),
	}
}

func makeStatusRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		tenant, err := tenantFromFlags(cmd)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		ts := a.registry.Get(tenant)
		ts.RLock()
		defer ts.RUnlock()

		if !ts.Servable() {
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"tenant": tenant, "servable": false,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tenant %s has no index. Run 'dupfind build' first.\n", tenant)
			return nil
		}

		partitions := make(map[string]int, len(ts.Embeddings.Partitions()))
		for p, idx := range ts.Embeddings.Partitions() {
			partitions[string(p)] = idx.Len()
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"tenant":     tenant,
				"servable":   true,
				"records":    ts.Meta.RecordCount,
				"columns":    ts.Meta.Columns,
				"model":      ts.Meta.Model,
				"dimension":  ts.Meta.Dimension,
				"partitions": partitions,
				"updated_at": ts.Meta.UpdatedAt,
			})
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Tenant %s\n", tenant)
		fmt.Fprintf(cmd.OutOrStdout(), "  Records:   %d\n", ts.Meta.RecordCount)
		fmt.Fprintf(cmd.OutOrStdout(), "  Columns:   %s\n", strings.Join(ts.Meta.Columns, ", "))
		fmt.Fprintf(cmd.OutOrStdout(), "  Model:     %s (%d dims)\n", ts.Meta.Model, ts.Meta.Dimension)
		fmt.Fprintf(cmd.OutOrStdout(), "  Updated:   %s\n", ts.Meta.UpdatedAt.Format("2006-01-02 15:04:05"))

		names := make([]string, 0, len(partitions))
		for name := range partitions {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "  Partition: %s (%d records)\n", name, partitions[name])
		}
		return nil
	}
}
