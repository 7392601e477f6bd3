package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jradxl/idrived2backend/internal/janitor"
	"github.com/jradxl/idrived2backend/internal/metrics"
)

func newJanitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "janitor",
		Short: "Run the staging sweeper on its schedule, with a /metrics endpoint",
		Args:  cobra.NoArgs,
		RunE:  runJanitor,
	}
}

func runJanitor(_ *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	collector, err := metrics.NewCollector(a.config, a.logger, a.registry)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := collector.Start(ctx); err != nil {
		return err
	}

	sweeper := janitor.NewSweeper(a.config, a.logger, a.client)
	if err := sweeper.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-sigChan

	a.logger.Info("received shutdown signal, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer shutdownCancel()

	errChan := make(chan error, 2)
	go func() { errChan <- collector.Stop(shutdownCtx) }()
	go func() { errChan <- sweeper.Stop(shutdownCtx) }()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errChan:
			if err != nil {
				a.logger.Error("component shutdown error", zap.Error(err))
			}
		case <-shutdownCtx.Done():
			a.logger.Error("shutdown timeout reached")
			return nil
		}
	}

	a.logger.Info("graceful shutdown completed")
	return nil
}
