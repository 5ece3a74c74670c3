package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camden-git/dopplerindex/catalog"
	"github.com/camden-git/dopplerindex/database"
	"github.com/camden-git/dopplerindex/handlers"
	"github.com/camden-git/dopplerindex/logging"
	"github.com/camden-git/dopplerindex/metrics"
	"github.com/camden-git/dopplerindex/realtime"
	"github.com/camden-git/dopplerindex/repository"
	"github.com/camden-git/dopplerindex/scan"
)

var scanOnStart bool

func init() {
	serveCmd.Flags().BoolVar(&scanOnStart, "scan-on-start", false, "start an appending scan of ROOT_DIRECTORIES once the server is up")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog API, scan triggers and progress stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		httpLog := logger.Tag(logging.TagHTTP)

		db, err := openIndex(cfg, false, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		gormDB, err := database.InitGormDB(db, logger)
		if err != nil {
			return err
		}

		m := metrics.New(metrics.Config{Enabled: true})
		hub := realtime.NewHub(logger)
		go hub.Run(ctx)

		runner := &scan.Runner{
			Orchestrator: newOrchestrator(cfg, db, m, logger),
			Roots:        cfg.RootDirectories,
			Notify:       hub.NotifyScan,
			AfterScan: func(summaries []*catalog.Summary) error {
				return writeReport(cfg, summaries, logger)
			},
		}

		router := handlers.NewRouter(handlers.RouterConfig{
			Catalog:     &handlers.CatalogHandler{Repo: repository.NewCatalogRepository(gormDB), Log: httpLog},
			Scans:       &handlers.ScanHandler{Runner: runner, Log: httpLog},
			Hub:         hub,
			Metrics:     m,
			CORSOrigins: cfg.CORSOrigins,
			Log:         logger,
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			httpLog.Info("server starting", zap.String("addr", srv.Addr), zap.Strings("roots", cfg.RootDirectories))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		if scanOnStart {
			if err := runner.Start(context.WithoutCancel(ctx), false); err != nil {
				httpLog.Warn("scan on start not launched", zap.Error(err))
			}
		}

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		case <-ctx.Done():
		}

		httpLog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			httpLog.Warn("graceful shutdown failed", zap.Error(err))
		}
		// a scan in flight holds the only connection; let it commit or roll back
		runner.Wait()
		return nil
	},
}
