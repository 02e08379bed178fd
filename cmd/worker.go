package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/auto-migrate/internal/progress"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued ingestion jobs",
	Long:  `Polls the job store for pending or stale jobs and ingests them until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		embedder := createEmbedderFromConfig(ctx, cfg)
		stores, err := openStores(cfg, embedder)
		if err != nil {
			return err
		}
		defer stores.Close()

		w, err := newWorker(cfg, stores, embedder, progress.Nop{}, false)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "automigrate worker v%s polling every %s\n", Version, cfg.Worker.PollInterval)
		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
