package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/scriptd/scriptd/internal/api"
	"github.com/scriptd/scriptd/internal/bootstrap"
	"github.com/scriptd/scriptd/internal/logger"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scriptd daemon: bootstrap components and serve the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sys, err := bootstrap.Start(ctx, cfg)
			if err != nil {
				return err
			}

			srv := api.New(api.Config{
				Store:      sys.Store,
				Supervisor: sys.Supervisor,
				Jobs:       sys.Jobs,
				Sink:       sys.Sink,
				Notifier:   sys.Notifier,
				Scanner:    sys.Syncer,
				ScriptRoot: cfg.ScriptRoot,
			})

			httpSrv := &http.Server{
				Addr:    cfg.HTTPAddr,
				Handler: srv.Router(),
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info(ctx, "scriptd: listening", "addr", cfg.HTTPAddr)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			shutdownCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			select {
			case err := <-errCh:
				cancel()
				_ = shutdownEverything(sys, httpSrv)
				return err
			case <-waitForShutdownCh(shutdownCtx):
			}

			logger.Info(ctx, "scriptd: shutting down")
			return shutdownEverything(sys, httpSrv)
		},
	}
}

func waitForShutdownCh(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		waitForShutdown(ctx)
		close(done)
	}()
	return done
}

func shutdownEverything(sys *bootstrap.System, httpSrv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var errs []error
	if err := httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := sys.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
