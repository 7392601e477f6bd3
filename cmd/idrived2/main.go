// Command idrived2 exposes the EVS storage adapter as a CLI for backup
// pipelines: put, get, list, delete and query of archive files, plus a
// janitor daemon that reclaims interrupted-upload residue.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jradxl/idrived2backend/internal/config"
	"github.com/jradxl/idrived2backend/internal/run"
	"github.com/jradxl/idrived2backend/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "idrived2",
		Short:         "Object-store adapter for the IDrive EVS transfer utility",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newPutCmd(),
		newGetCmd(),
		newListCmd(),
		newDeleteCmd(),
		newQueryCmd(),
		newJanitorCmd(),
	)

	return root
}

func initLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	return config.Build()
}

// app bundles the pieces every subcommand needs.
type app struct {
	logger   *zap.Logger
	config   *config.Config
	registry *prometheus.Registry
	client   *storage.Client
}

func newApp() (*app, error) {
	logger, err := initLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	client, err := storage.NewClient(cfg, logger, run.NewExecRunner(logger), registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &app{
		logger:   logger,
		config:   cfg,
		registry: registry,
		client:   client,
	}, nil
}

func (a *app) close() {
	a.client.Close()
	a.logger.Sync()
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <local-file> [remote-name]",
		Short: "Store a local file under the remote prefix",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			remoteName := filepath.Base(args[0])
			if len(args) == 2 {
				remoteName = args[1]
			}

			return a.client.Put(context.Background(), args[0], remoteName)
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote-name> <local-file>",
		Short: "Download a remote file",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			return a.client.Get(context.Background(), args[0], args[1])
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List files under the remote prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			entries, err := a.client.List(context.Background())
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%12d  %s\n", e.Size, e.Name)
			}
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <remote-name>...",
		Short: "Delete remote files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			return a.client.DeleteMany(context.Background(), args)
		},
	}
}

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <remote-name>...",
		Short: "Report the remote size of files, or 'unknown' when absent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			sizes, err := a.client.QueryMany(context.Background(), args)
			if err != nil {
				return err
			}
			for _, name := range args {
				if sizes[name] == storage.SizeUnknown {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tunknown\n", name)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, sizes[name])
			}
			return nil
		},
	}
}
