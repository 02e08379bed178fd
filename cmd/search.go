package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/auto-migrate/internal/retriever"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Semantically search a session's ingested code",
	Long:  `Ranks the session's chunks against a natural language query, the same way translation context is selected.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().String("session", "", "session to search (required)")
	searchCmd.Flags().String("user", "", "restrict to chunks owned by this user")
	searchCmd.Flags().Int("limit", 10, "maximum number of results")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	_ = searchCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sessionID, _ := cmd.Flags().GetString("session")
	userID, _ := cmd.Flags().GetString("user")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

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

	results, err := newRetriever(cfg, embedder, stores.Chunks).Retrieve(ctx, sessionID, userID, args[0])
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No results found. Run `automigrate ingest` first.")
		return nil
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	if jsonOutput {
		return printSearchResultsJSON(results)
	}
	printSearchResultsTable(results)
	return nil
}

type searchResultJSON struct {
	Rank       int     `json:"rank"`
	Similarity float64 `json:"similarity"`
	FilePath   string  `json:"file_path"`
	LineStart  int     `json:"line_start,omitempty"`
	Kind       string  `json:"kind"`
	Symbol     string  `json:"symbol,omitempty"`
	Content    string  `json:"content"`
}

func printSearchResultsJSON(results []retriever.Scored) error {
	var out []searchResultJSON
	for i, r := range results {
		out = append(out, searchResultJSON{
			Rank:       i + 1,
			Similarity: r.Similarity,
			FilePath:   r.FilePath,
			LineStart:  r.StartLine,
			Kind:       string(r.Kind),
			Symbol:     r.Name,
			Content:    truncate(r.Content, 200),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printSearchResultsTable(results []retriever.Scored) {
	fmt.Printf("Found %d results:\n\n", len(results))
	for i, r := range results {
		location := r.FilePath
		if r.StartLine > 0 {
			location = fmt.Sprintf("%s:%d", location, r.StartLine)
		}

		symbol := ""
		if r.Name != "" {
			symbol = fmt.Sprintf(" (%s)", r.Name)
		}

		fmt.Printf("  %d. [%.1f%%] %s%s\n", i+1, r.Similarity*100, location, symbol)
		fmt.Printf("     Kind: %s\n", r.Kind)
		fmt.Printf("     %s\n\n", truncate(r.Content, 120))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
