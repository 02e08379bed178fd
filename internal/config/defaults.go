package config

import "time"

// QualityPreset describes the models to use for a given quality tier.
type QualityPreset struct {
	Model          string
	EmbeddingModel string
}

// qualityPresets maps each provider+quality combination to its model choices.
var qualityPresets = map[ProviderType]map[QualityTier]QualityPreset{
	ProviderAnthropic: {
		QualityLite:   {Model: "claude-haiku-4-5-20251001", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "claude-sonnet-4-5-20250929", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "claude-opus-4-6", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderOpenAI: {
		QualityLite:   {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "gpt-4o", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "gpt-4.1", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderGoogle: {
		QualityLite:   {Model: "gemini-2.5-flash", EmbeddingModel: "text-embedding-004"},
		QualityNormal: {Model: "gemini-2.5-pro", EmbeddingModel: "text-embedding-004"},
		QualityMax:    {Model: "gemini-2.5-pro", EmbeddingModel: "text-embedding-004"},
	},
	ProviderOllama: {
		QualityLite:   {Model: "qwen2.5-coder", EmbeddingModel: "nomic-embed-text"},
		QualityNormal: {Model: "qwen2.5-coder", EmbeddingModel: "nomic-embed-text"},
		QualityMax:    {Model: "qwen2.5-coder:32b", EmbeddingModel: "nomic-embed-text"},
	},
	ProviderMiniMax: {
		QualityLite:   {Model: "MiniMax-M2.5-highspeed", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "MiniMax-M2.5", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "MiniMax-M2.5", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderOpenRouter: {
		QualityLite:   {Model: "minimax/minimax-m2.5", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "minimax/minimax-m2.5", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "minimax/minimax-m2.5", EmbeddingModel: "text-embedding-3-large"},
	},
}

// DefaultExcludes are glob patterns never materialized into a scratch tree.
var DefaultExcludes = []string{
	"node_modules/**",
	".git/**",
	"dist/**",
	"build/**",
	"vendor/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/*.map",
	"**/*.lock",
	"package-lock.json",
}

// DefaultRetryDelays are the waits between transient LLM failures.
var DefaultRetryDelays = []time.Duration{5 * time.Second, 10 * time.Second, 15 * time.Second}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:            ProviderAnthropic,
		Model:               "claude-sonnet-4-5-20250929",
		EmbeddingProvider:   ProviderOpenAI,
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 768,
		Quality:             QualityNormal,
		DataDir:             ".automigrate",
		Exclude:             DefaultExcludes,
		Store: StoreConfig{
			Backend: BackendSQLite,
		},
		Worker: WorkerConfig{
			PollInterval: 5 * time.Second,
			ReclaimAfter: 30 * time.Minute,
		},
		Generation: GenerationConfig{
			Timeout:      60 * time.Second,
			RetryTimeout: 30 * time.Second,
			RetryDelays:  DefaultRetryDelays,
			MinAnalytics: 15000,
			MaxTokens:    16384,
		},
		Retrieval: RetrievalConfig{
			TopK:          20,
			MinSimilarity: 0.05,
		},
		CacheSize:      256,
		RateLimitRPM:   60,
		MaxConcurrency: 4,
	}
}

// GetPreset returns the quality preset for the given provider and tier.
// Returns the Normal Anthropic preset if the combination is not found.
func GetPreset(provider ProviderType, tier QualityTier) QualityPreset {
	if tiers, ok := qualityPresets[provider]; ok {
		if preset, ok := tiers[tier]; ok {
			return preset
		}
	}
	return qualityPresets[ProviderAnthropic][QualityNormal]
}
