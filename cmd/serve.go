package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/auto-migrate/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing translation, search and job tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
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

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "automigrate MCP server started on stdio (data=%s, store=%s)\n", cfg.DataDir, cfg.Store.Backend)

		srv := mcpserver.NewServer(orch, newRetriever(cfg, embedder, stores.Chunks), stores.Jobs)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
