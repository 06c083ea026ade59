package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fiftyone-dev/appsync/pkg/sessiontest"
)

func mockCmd() *cobra.Command {
	var (
		addr     string
		datasets []string
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Run a fake session server",
		Long: `Run a fake session server for local development.

The server answers the page queries with the given datasets, keeps a
session record from the mutations it receives and serves the event
stream on /events.

Examples:
  appsync mock
  appsync mock --addr=:5151 --dataset=quickstart --dataset=cifar10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := newMockServer(newLogger(cmd.ErrOrStderr(), verbose), datasets)
			hs := &http.Server{Addr: addr, Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}

			errCh := make(chan error, 1)
			go func() {
				errCh <- hs.ListenAndServe()
			}()
			success(cmd.OutOrStdout(), "Session server on http://%s", addr)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			fmt.Fprintln(cmd.OutOrStdout(), "\n  Shutting down...")
			srv.Disconnect()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "localhost:5151", "Address to listen on")
	cmd.Flags().StringSliceVar(&datasets, "dataset", []string{"quickstart"}, "Dataset names to serve")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every request")

	return cmd
}

// newMockServer answers the page queries from datasets.
func newMockServer(logger *slog.Logger, datasets []string) *sessiontest.Server {
	srv := sessiontest.New(sessiontest.WithLogger(logger))

	srv.Handle("IndexPageQuery", func(map[string]any) (any, error) {
		edges := make([]map[string]any, len(datasets))
		for i, name := range datasets {
			edges[i] = map[string]any{"node": map[string]any{"name": name}}
		}
		return map[string]any{"datasets": map[string]any{"total": len(datasets), "edges": edges}}, nil
	})
	srv.Handle("DatasetPageQuery", func(vars map[string]any) (any, error) {
		name, _ := vars["name"].(string)
		for i, d := range datasets {
			if d == name {
				return map[string]any{"dataset": map[string]any{
					"id":       fmt.Sprint(i + 1),
					"name":     name,
					"viewName": vars["savedViewSlug"],
				}}, nil
			}
		}
		return nil, fmt.Errorf("dataset %q not found", name)
	})
	return srv
}
