package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/kquery/internal/access"
	"github.com/alfredjeanlab/kquery/internal/events"
	"github.com/alfredjeanlab/kquery/internal/export"
	"github.com/alfredjeanlab/kquery/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the HTTP and gRPC search server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		b, err := openBackend(cmd.Context(), logger)
		if err != nil {
			return err
		}
		cfg := b.cfg

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				b.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (KQ_NATS_URL not set)")
		}

		srv := server.New(b.store, b.searcher, b.index, publisher, server.WithMaxRows(cfg.MaxRows))
		grpcServer := server.NewGRPCServer(srv, cfg.AuthToken)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			b.Close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		var scheduler *export.Scheduler
		if cfg.ExportInterval > 0 {
			scheduler, err = newExportScheduler(cmd.Context(), b, cfg.ExportFile, nil, logger)
			if err != nil {
				logger.Error("export disabled", "err", err)
			} else {
				scheduler.Start()
				logger.Info("export scheduler started", "interval", cfg.ExportInterval, "jobs", cfg.ExportFile)
			}
		}

		logger.Info("kquery server started", "grpc_addr", cfg.GRPCAddr, "http_addr", cfg.HTTPAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("export scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := b.Close(); err != nil {
			logger.Error("error closing backends", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// exportChecker is the permission set export jobs run with.
var exportChecker access.Checker = access.AllowAll{}
