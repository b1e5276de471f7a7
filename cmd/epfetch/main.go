package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/bugmaschine/epfetch/internal/app"
	"github.com/bugmaschine/epfetch/internal/config"
	"github.com/bugmaschine/epfetch/internal/metrics"
	"github.com/bugmaschine/epfetch/pkg/cli"
	"github.com/bugmaschine/epfetch/pkg/logger"
	"github.com/bugmaschine/epfetch/pkg/progress"
)

func main() {
	args := &cli.Args{}
	rootCmd := cli.NewRootCommand(args, run)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args *cli.Args) error {
	cfg, err := config.New(args.ConfigFile, cmd.Flags())
	if err != nil {
		return err
	}

	// Set up logger
	logger.InitDefaultLogger(logger.Options{
		Debug:      cfg.Debug,
		FilePath:   cfg.LogPath,
		MaxSizeMB:  cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
	})

	slog.Info("epfetch started")

	req, err := args.Request()
	if err != nil {
		return err
	}

	// Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	bars := progress.NewBars(os.Stdout)
	a, err := app.New(cfg, bars, m)
	if err != nil {
		return err
	}

	summary, err := a.Run(ctx, req)
	bars.Wait()

	switch {
	case errors.Is(err, app.ErrNothingPlanned):
		slog.Error("No episodes to download")
		return err
	case err != nil:
		slog.Error("Download failed", "error", err)
		return err
	}

	slog.Info("Done!", "completed", summary.Completed, "skipped", summary.Skipped, "failed", summary.Failed)
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", summary.Failed, summary.Total())
	}
	return nil
}
