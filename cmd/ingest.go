package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/auto-migrate/internal/acquire"
	"github.com/ziadkadry99/auto-migrate/internal/progress"
	"github.com/ziadkadry99/auto-migrate/internal/store"
	"github.com/ziadkadry99/auto-migrate/internal/walker"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Ingest a local directory into a session",
	Long: `Creates an ingestion job for every source file under dir and processes it
in-process: files are chunked, analyzed, embedded and stored under the session.
Prints the session id so later translate calls can find the chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("session", "", "session id (generated when empty)")
	ingestCmd.Flags().String("user", "", "owner of the ingested chunks")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sessionID, _ := cmd.Flags().GetString("session")
	userID, _ := cmd.Flags().GetString("user")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files, err := walker.Walk(walker.WalkerConfig{RootDir: args[0], Exclude: cfg.Exclude})
	if err != nil {
		return fmt.Errorf("scanning %s: %w", args[0], err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no source files found under %s", args[0])
	}
	descriptors := make([]store.FileDescriptor, 0, len(files))
	for _, f := range files {
		descriptors = append(descriptors, store.FileDescriptor{
			RelativePath: f.RelPath,
			FetchURL:     acquire.FileURL(f.Path),
		})
	}

	embedder := createEmbedderFromConfig(ctx, cfg)
	stores, err := openStores(cfg, embedder)
	if err != nil {
		return err
	}
	defer stores.Close()

	w, err := newWorker(cfg, stores, embedder, progress.NewReporter("Ingesting"), true)
	if err != nil {
		return err
	}

	job, err := stores.Jobs.Create(ctx, sessionID, userID, descriptors)
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	claimed, err := stores.Jobs.Claim(ctx, job.ID, cfg.Worker.ReclaimAfter)
	if err != nil {
		return fmt.Errorf("claiming job: %w", err)
	}
	if !claimed {
		return fmt.Errorf("job %s was claimed by another worker", job.ID)
	}

	fmt.Fprintf(os.Stderr, "Ingesting %d files into session %s (job %s)\n", len(descriptors), sessionID, job.ID)
	if err := w.Process(ctx, job); err != nil {
		return fmt.Errorf("ingesting: %w", err)
	}

	done, err := stores.Jobs.Get(ctx, job.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Done: %d chunks from %d files\n", done.TotalChunks, done.ProcessedFiles)
	fmt.Println(sessionID)
	return nil
}
