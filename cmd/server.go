package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/auto-migrate/internal/detect"
	"github.com/ziadkadry99/auto-migrate/internal/progress"
	"github.com/ziadkadry99/auto-migrate/internal/server"
)

var (
	serverPort      int
	serverNoWorker  bool
	serverCORSAllow bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API with an in-process ingestion worker",
	Long: `Starts the automigrate HTTP API: job submission and status, a websocket
progress feed, translation and language detection. Unless --no-worker is set,
a background worker ingests submitted jobs in the same process.`,
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

		orch, err := newOrchestrator(ctx, cfg, embedder, stores.Chunks)
		if err != nil {
			return err
		}

		srv := server.New(server.Config{
			Port:          serverPort,
			AllowAll:      serverCORSAllow,
			WatchInterval: cfg.Worker.PollInterval / 5,
		}, server.Deps{
			Jobs:       stores.Jobs,
			Chunks:     stores.Chunks,
			Translator: orch,
			Detector:   detect.New(),
		})

		workerDone := make(chan error, 1)
		if serverNoWorker {
			close(workerDone)
		} else {
			w, err := newWorker(cfg, stores, embedder, progress.Nop{}, false)
			if err != nil {
				return err
			}
			go func() { workerDone <- w.Run(ctx) }()
		}

		// Graceful shutdown.
		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "automigrate server v%s starting on port %d\n", Version, serverPort)
		fmt.Fprintf(os.Stderr, "  Store: %s\n", cfg.Store.Backend)
		fmt.Fprintf(os.Stderr, "  Data: %s\n", cfg.DataDir)
		fmt.Fprintf(os.Stderr, "  Worker: %t\n", !serverNoWorker)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		stop()
		return <-workerDone
	},
}

func init() {
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "port to listen on")
	serverCmd.Flags().BoolVar(&serverNoWorker, "no-worker", false, "do not ingest jobs in this process")
	serverCmd.Flags().BoolVar(&serverCORSAllow, "cors-allow-all", false, "accept requests from any origin (development only)")
	rootCmd.AddCommand(serverCmd)
}
