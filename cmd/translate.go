package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/auto-migrate/internal/acquire"
	"github.com/ziadkadry99/auto-migrate/internal/orchestrator"
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate an ingested session into another language",
	Long: `Retrieves the session's chunks, asks the configured LLM to migrate each
source file and prints the result as JSON. With --out the migrated files are
written under the given directory instead.`,
	RunE: runTranslate,
}

func init() {
	translateCmd.Flags().String("session", "", "session to translate (required)")
	translateCmd.Flags().String("user", "", "restrict context to chunks owned by this user")
	translateCmd.Flags().String("from", "", "source language (detected when empty)")
	translateCmd.Flags().String("to", "", "target language")
	translateCmd.Flags().String("command", "", "free-form instruction, e.g. \"convert this to TypeScript\"")
	translateCmd.Flags().String("out", "", "write migrated files under this directory")
	_ = translateCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(translateCmd)
}

func runTranslate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	req := orchestrator.Request{}
	req.Session, _ = cmd.Flags().GetString("session")
	req.User, _ = cmd.Flags().GetString("user")
	req.SourceLang, _ = cmd.Flags().GetString("from")
	req.TargetLang, _ = cmd.Flags().GetString("to")
	req.Command, _ = cmd.Flags().GetString("command")
	outDir, _ := cmd.Flags().GetString("out")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
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

	res, err := orch.Translate(ctx, req)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	if res.Usage.CostUSD > 0 {
		fmt.Fprintf(os.Stderr, "LLM usage: %d in / %d out tokens, ~$%.4f\n",
			res.Usage.InputTokens, res.Usage.OutputTokens, res.Usage.CostUSD)
	}

	if outDir == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return writeMigratedFiles(outDir, res)
}

func writeMigratedFiles(outDir string, res *orchestrator.Result) error {
	for _, f := range res.Files {
		path, err := acquire.SafeJoin(outDir, f.MigratedFilename)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		marker := ""
		if f.IsDemo {
			marker = " (demo)"
		}
		fmt.Printf("  %s -> %s%s\n", f.Filename, path, marker)
	}
	fmt.Printf("\n%s\n", res.Summary)
	return nil
}
