package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/auto-migrate/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize automigrate configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to pick the LLM provider, quality tier and store backend, and generates a .automigrate.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
