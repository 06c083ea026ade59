package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/fiftyone-dev/appsync"
	"github.com/fiftyone-dev/appsync/internal/config"
	"github.com/fiftyone-dev/appsync/internal/errors"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/router"
	"github.com/fiftyone-dev/appsync/pkg/synchronizer"
)

func connectCmd() *cobra.Command {
	var (
		dir         string
		server      string
		path        string
		metricsAddr string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Follow a session server",
		Long: `Connect to a session server and follow its session.

Settings come from appsync.json in --dir when present, then from
APPSYNC_* environment variables (a .env file in --dir is loaded first),
then from flags.

Examples:
  appsync connect
  appsync connect --server=http://localhost:5151
  appsync connect --path=/datasets/quickstart --metrics-addr=:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(dir)
			if err != nil {
				return err
			}
			if server != "" {
				cfg.Server.URL = server
			}
			if metricsAddr != "" {
				cfg.Telemetry.MetricsAddr = metricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runConnect(ctx, cmd, cfg, path, verbose)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory holding appsync.json and .env")
	cmd.Flags().StringVarP(&server, "server", "s", "", "Session server URL (default from appsync.json)")
	cmd.Flags().StringVarP(&path, "path", "p", "/", "Initial location")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every dispatch")

	return cmd
}

func runConnect(ctx context.Context, cmd *cobra.Command, cfg *config.Config, path string, verbose bool) error {
	out := cmd.OutOrStdout()
	logger := newLogger(cmd.ErrOrStderr(), verbose)

	app, err := appsync.New(cfg,
		appsync.WithLogger(logger),
		appsync.WithInitialPath(path),
		appsync.WithErrorHandler(func(err error) {
			logger.Error("session error", "error", errors.Compact(err))
		}),
	)
	if err != nil {
		return err
	}
	defer app.Close()

	unsubscribe := app.Router().Subscribe(func(entry *router.Entry, action history.Action, _ *router.Entry) {
		info(out, "%-7s %s", actionName(action), entry.Path())
	}, nil)
	defer unsubscribe()

	remove := app.Synchronizer().OnStateChange(func(s synchronizer.ReadyState) {
		if s == synchronizer.Open {
			success(out, "Connected to %s", cfg.Server.URL)
		}
	})
	defer remove()

	if cfg.Telemetry.MetricsAddr != "" {
		srv := metricsServer(cfg.Telemetry.MetricsAddr, app)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		info(out, "Metrics on http://%s/metrics", cfg.Telemetry.MetricsAddr)
	}

	return app.Run(ctx)
}

func metricsServer(addr string, app *appsync.App) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", app.MetricsHandler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if app.View() != synchronizer.ViewApp {
			http.Error(w, app.Synchronizer().ReadyState().String(), http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("OK"))
	})
	return &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
}

func actionName(a history.Action) string {
	if a == history.ActionNone {
		return "LOAD"
	}
	return string(a)
}
