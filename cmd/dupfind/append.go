package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func NewAppendCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append one record to a tenant's index",
		Long:  `Embed a single new bug report and add it to the dataset and index without rebuilding. Fields use the tenant's column names.`,
		RunE:  makeAppendRunner(a),
	}

	cmd.Flags().StringArrayP("field", "f", nil, "Record field as column=value (repeatable)")
	_ = cmd.MarkFlagRequired("field")

	return cmd
}

func makeAppendRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		tenant, err := tenantFromFlags(cmd)
		if err != nil {
			return err
		}

		raw, _ := cmd.Flags().GetStringArray("field")
		fields, err := parseFields(raw)
		if err != nil {
			return err
		}

		res, err := a.pipeline.Append(cmd.Context(), tenant, fields)
		if err != nil {
			return fmt.Errorf("append record: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Appended record to %s: %d records total\n", tenant, res.RecordCount)
		return nil
	}
}

func parseFields(raw []string) (map[string]string, error) {
	fields := make(map[string]string, len(raw))
	for _, kv := range raw {
		column, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(column) == "" {
			return nil, fmt.Errorf("invalid field %q: want column=value", kv)
		}
		fields[strings.TrimSpace(column)] = value
	}
	return fields, nil
}
