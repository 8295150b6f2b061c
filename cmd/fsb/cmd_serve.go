package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hlop3z/formsandbox/internal/lockfile"
	"github.com/hlop3z/formsandbox/internal/metrics"
	"github.com/hlop3z/formsandbox/internal/server"
	"github.com/hlop3z/formsandbox/pkg/formsandbox"
)

// serveCmd starts the HTTP server.
func serveCmd() *cobra.Command {
	var addr string
	var watch, migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server.

Routes:
  GET  /forms                  - Form names
  GET  /forms/:name            - Form definition
  POST /forms/:name/validate   - Validate and accept a submission
  POST /forms/:name/evaluate   - Run form logic only (live preview)
  POST /forms/:name/captcha    - Issue a one-time captcha token
  POST /render                 - Render a template
  GET  /metrics                - Prometheus metrics
  GET  /healthz                - Liveness and sandbox counters

With --watch, edits in the forms directory are picked up without a restart.`,
		Example: `  fsb serve --addr :8080 --watch
  fsb serve -d ./forms.db --migrate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := commandConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("watch") {
				cfg.Server.Watch = watch
			}

			collector := metrics.New()
			client, err := newServingClient(cfg, collector)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if migrate {
				if err := client.Migrate(ctx); err != nil {
					return err
				}
			}
			if cfg.Server.Watch {
				go watchForms(ctx, client.WatchForms)
			}
			if cfg.DatabaseURL != "" {
				go sweepCaptchas(ctx, client, cfg.CaptchaTTL)
			}
			warnOnLockDrift(client, cfg.FormsDir)

			slog.Info("serving forms", "dir", cfg.FormsDir, "forms", len(client.Forms()), "store", cfg.DatabaseURL != "")
			return server.New(client, collector, slog.Default()).Run(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default 127.0.0.1:8080)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload forms when files change")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Create store tables before serving")

	return cmd
}

// watchForms runs the forms watcher and logs when it stops on an error.
func watchForms(ctx context.Context, watch func(context.Context, func([]string, error)) error) {
	err := watch(ctx, func(names []string, err error) {
		slog.Debug("forms changed", "forms", names)
	})
	if err != nil {
		slog.Error("forms watcher stopped", "error", err)
	}
}

// sweepCaptchas purges used and expired captcha tokens once per ttl.
func sweepCaptchas(ctx context.Context, client *formsandbox.Client, ttl time.Duration) {
	t := time.NewTicker(ttl)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := client.PurgeCaptchas(ctx)
			if err != nil {
				slog.Warn("captcha purge failed", "error", err)
				continue
			}
			slog.Debug("captcha tokens purged", "count", n)
		}
	}
}

// warnOnLockDrift logs when fsb.lock exists and no longer matches.
func warnOnLockDrift(client *formsandbox.Client, formsDir string) {
	fp, err := client.Fingerprint()
	if err != nil {
		return
	}
	lf, err := lockfile.Compute(fp, formsDir)
	if err != nil {
		return
	}
	res, err := lockfile.Verify(lf, lockfile.DefaultPath())
	if err != nil || !res.LockFileExists || res.Valid {
		return
	}
	slog.Warn("fsb.lock does not match", "modified", res.Modified, "new", res.New, "removed", res.Removed)
}
