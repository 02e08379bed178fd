package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
)

// DefaultPath is where RunWizard writes the configuration.
const DefaultPath = ".automigrate.yml"

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .automigrate.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to automigrate! Let's configure your workspace.")
	fmt.Println()

	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"anthropic", "openai", "google", "ollama", "minimax", "openrouter"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	qualityPrompt := promptui.Select{
		Label: "Select quality tier",
		Items: []string{
			"lite   - fast and cheap",
			"normal - balanced",
			"max    - highest quality",
		},
	}
	qualityIdx, _, err := qualityPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("quality selection: %w", err)
	}
	tiers := []QualityTier{QualityLite, QualityNormal, QualityMax}
	quality := tiers[qualityIdx]

	preset := GetPreset(provider, quality)

	backendPrompt := promptui.Select{
		Label: "Select chunk store",
		Items: []string{string(BackendSQLite), string(BackendPostgres), string(BackendChromem)},
	}
	_, backendStr, err := backendPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("store selection: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.Model = preset.Model
	cfg.EmbeddingProvider = embeddingProviderFor(provider)
	cfg.EmbeddingModel = preset.EmbeddingModel
	cfg.Quality = quality
	cfg.Store.Backend = StoreBackend(backendStr)

	if cfg.Store.Backend == BackendPostgres {
		dsnPrompt := promptui.Prompt{
			Label:   "PostgreSQL connection string",
			Default: "postgres://localhost:5432/automigrate?sslmode=disable",
		}
		dsn, err := dsnPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("store dsn: %w", err)
		}
		cfg.Store.DSN = dsn
	}

	endpointPrompt := promptui.Prompt{
		Label:   "Object storage endpoint for s3:// sources (blank to skip)",
		Default: "",
	}
	endpoint, err := endpointPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("object storage endpoint: %w", err)
	}
	cfg.ObjectStorage.Endpoint = strings.TrimSpace(endpoint)

	excludePrompt := promptui.Prompt{
		Label:   "Extra exclude patterns (comma-separated, leave blank for defaults)",
		Default: "",
	}
	excludeStr, err := excludePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}
	if excludeStr != "" {
		cfg.Exclude = append(append([]string{}, DefaultExcludes...), splitAndTrim(excludeStr)...)
	}

	if envVar := APIKeyEnvVar(provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before running automigrate translate.\n", envVar)
	}

	if err := cfg.Save(DefaultPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", DefaultPath)
	return cfg, nil
}

// embeddingProviderFor returns the default embedding provider for a given
// LLM provider. OpenAI embeddings are used for all cloud providers except Google.
func embeddingProviderFor(p ProviderType) ProviderType {
	switch p {
	case ProviderOllama:
		return ProviderOllama
	case ProviderGoogle:
		return ProviderGoogle
	default:
		return ProviderOpenAI
	}
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
