package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/faciam-dev/schemasync/pkg/registry"
)

func newSyncCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Create or reconcile every table declared in the schema files",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, log, err := setup(cmd)
			if err != nil {
				return err
			}
			tables, err := loadTables(r.Files)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			drv, closeDB, err := connect(ctx, r)
			if err != nil {
				return err
			}
			defer closeDB()

			if r.MetricsAddr != "" {
				srv := serveMetrics(r.MetricsAddr, log)
				defer srv.Shutdown(context.Background())
			}

			reg := registry.New(drv, registry.Config{
				Namespace:     r.Namespace,
				Transactional: r.Transactional,
				StrictRenames: r.StrictRenames,
				Logger:        log,
			})
			for _, t := range tables {
				if err := reg.Register(ctx, t); err != nil {
					return err
				}
			}
			if err := reg.Ready(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d table(s)\n", len(tables))

			if !watch {
				return nil
			}
			return watchFiles(ctx, r.Files, log, func() error {
				tables, err := loadTables(r.Files)
				if err != nil {
					return err
				}
				for _, t := range tables {
					if err := reg.Register(ctx, t); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "re-synced %d table(s)\n", len(tables))
				return nil
			})
		},
	}
	cmd.Flags().StringSlice("file", nil, "schema file (repeatable)")
	cmd.Flags().Bool("transactional", false, "apply each table's statements in one transaction")
	cmd.Flags().Bool("strict", false, "fail on ambiguous column renames")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and re-sync when a schema file changes")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func serveMetrics(addr string, log *zap.SugaredLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server", "addr", addr, "err", err)
		}
	}()
	log.Infow("serving metrics", "addr", addr)
	return srv
}
