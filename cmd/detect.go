package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/auto-migrate/internal/detect"
)

var detectCmd = &cobra.Command{
	Use:   "detect [file]",
	Short: "Detect the language and framework of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		res := detect.New().Detect(filepath.Base(args[0]), string(content))

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Printf("%s\n", res.DisplayName)
		fmt.Printf("  Syntax:    %s (%.0f%%)\n", res.Syntax, res.SyntaxConfidence*100)
		if res.FrameworkDetected {
			fmt.Printf("  Framework: %s (%.0f%%)\n", res.Framework, res.FrameworkConfidence*100)
		}
		return nil
	},
}

func init() {
	detectCmd.Flags().Bool("json", false, "output the result as JSON")
	rootCmd.AddCommand(detectCmd)
}
