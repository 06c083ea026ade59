package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fiftyone-dev/appsync/internal/errors"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/router"
	"github.com/fiftyone-dev/appsync/pkg/routes"
)

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <path>",
		Short: "Match a location against the app routes",
		Long: `Match a location against the app routes and print the route
pattern, the matched URL and the query variables it resolves to.

Examples:
  appsync match /datasets/quickstart
  appsync match "/datasets/quickstart?view=my-view"
  appsync match "/proxy/datasets/quickstart?proxy=/proxy"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pathname, search := history.ParsePath(args[0])
			_, m := router.MatchRoutes(routes.Routes(), pathname, search, history.State{})
			if m == nil {
				return errors.New(errors.CodeRouteNotFound).WithSubject(args[0])
			}

			vars, err := json.MarshalIndent(m.Variables, "  ", "  ")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			info(out, "Route:     %s", m.Path)
			info(out, "URL:       %s", m.URL)
			fmt.Fprintf(out, "  Variables: %s\n", vars)
			return nil
		},
	}
	return cmd
}
