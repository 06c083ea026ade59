package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fiftyone-dev/appsync/internal/errors"
)

func codesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes [code]",
		Short: "List error codes",
		Long: `List the error codes appsync reports, or explain one of them.

Examples:
  appsync codes
  appsync codes E100`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				tmpl, ok := errors.GetTemplate(args[0])
				if !ok {
					return fmt.Errorf("unknown error code %q", args[0])
				}
				info(out, "%s %s: %s", args[0], tmpl.Category, tmpl.Message)
				info(out, "%s", tmpl.Detail)
				return nil
			}
			for _, code := range errors.GetAllCodes() {
				tmpl, _ := errors.GetTemplate(code)
				info(out, "%s  %-8s %s", code, tmpl.Category, tmpl.Message)
			}
			return nil
		},
	}
	return cmd
}
