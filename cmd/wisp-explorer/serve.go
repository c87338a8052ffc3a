package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matildepark/wisp-explorer/internal/gateway"
	"github.com/matildepark/wisp-explorer/internal/logging"
	"github.com/matildepark/wisp-explorer/internal/metrics"
	"github.com/matildepark/wisp-explorer/internal/store"
)

func newServeCmd() *cobra.Command {
	var preloadHandle, preloadSite string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		Long:  "Starts the HTTP gateway. With --handle and --site the named site is resolved and loaded on startup; otherwise the last served site is rehydrated from the durable store when present.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logging.Sync()

			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				logging.Warn("data directory unavailable", zap.String("dir", cfg.DataDir), zap.Error(err))
			}
			st := store.Open(filepath.Join(cfg.DataDir, "wisp.db"))
			defer st.Close()

			client, resolver, fetcher := newClients(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			session := gateway.NewSession(st)
			go session.Run(ctx)

			srv := gateway.NewServer(session, client, resolver, fetcher, cfg.Prefix)

			if preloadHandle != "" && preloadSite != "" {
				m, si, err := srv.LoadSite(ctx, preloadHandle, preloadSite)
				if err != nil {
					return err
				}
				logging.Info("site preloaded",
					zap.String("handle", si.Handle),
					zap.String("site", si.SiteName),
					zap.Int("files", m.FileCount))
			}

			metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux()}
			go func() {
				logging.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
				if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
					logging.Error("metrics server error", zap.Error(err))
				}
			}()

			httpServer := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				logging.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
				_ = metricsServer.Shutdown(shutdownCtx)
			}()

			logging.Info("gateway listening",
				zap.String("addr", cfg.ListenAddr),
				zap.String("prefix", "/"+cfg.Prefix+"/"))
			if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&preloadHandle, "handle", "", "Handle or identity to load on startup")
	cmd.Flags().StringVar(&preloadSite, "site", "", "Site name to load on startup")
	return cmd
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
