package config

import "time"

// QualityTier controls the model selection and trade-off between speed/cost and quality.
type QualityTier string

const (
	QualityLite   QualityTier = "lite"
	QualityNormal QualityTier = "normal"
	QualityMax    QualityTier = "max"
)

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderGoogle     ProviderType = "google"
	ProviderOllama     ProviderType = "ollama"
	ProviderMiniMax    ProviderType = "minimax"
	ProviderOpenRouter ProviderType = "openrouter"
)

// StoreBackend selects where jobs and chunks are persisted.
type StoreBackend string

const (
	BackendSQLite   StoreBackend = "sqlite"
	BackendPostgres StoreBackend = "postgres"
	BackendChromem  StoreBackend = "chromem"
)

// Config is the top-level automigrate configuration, corresponding to .automigrate.yml.
type Config struct {
	Provider            ProviderType        `yaml:"provider" koanf:"provider"`
	Model               string              `yaml:"model" koanf:"model"`
	EmbeddingProvider   ProviderType        `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel      string              `yaml:"embedding_model" koanf:"embedding_model"`
	EmbeddingDimensions int                 `yaml:"embedding_dimensions" koanf:"embedding_dimensions"`
	Quality             QualityTier         `yaml:"quality" koanf:"quality"`
	DataDir             string              `yaml:"data_dir" koanf:"data_dir"`
	Exclude             []string            `yaml:"exclude" koanf:"exclude"`
	Store               StoreConfig         `yaml:"store" koanf:"store"`
	ObjectStorage       ObjectStorageConfig `yaml:"object_storage" koanf:"object_storage"`
	Worker              WorkerConfig        `yaml:"worker" koanf:"worker"`
	Generation          GenerationConfig    `yaml:"generation" koanf:"generation"`
	Retrieval           RetrievalConfig     `yaml:"retrieval" koanf:"retrieval"`
	CacheSize           int                 `yaml:"cache_size" koanf:"cache_size"`
	RateLimitRPM        int                 `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`
	MaxConcurrency      int                 `yaml:"max_concurrency" koanf:"max_concurrency"`
}

// StoreConfig configures the job and chunk store.
type StoreConfig struct {
	Backend StoreBackend `yaml:"backend" koanf:"backend"`
	// DSN is a file path for sqlite and a connection string for postgres.
	DSN string `yaml:"dsn" koanf:"dsn"`
}

// ObjectStorageConfig holds credentials for s3:// file descriptors.
type ObjectStorageConfig struct {
	Endpoint  string `yaml:"endpoint" koanf:"endpoint"`
	Region    string `yaml:"region" koanf:"region"`
	AccessKey string `yaml:"access_key" koanf:"access_key"`
	SecretKey string `yaml:"secret_key" koanf:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl" koanf:"use_ssl"`
}

// WorkerConfig controls the background ingestion worker.
type WorkerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" koanf:"poll_interval"`
	ReclaimAfter time.Duration `yaml:"reclaim_after" koanf:"reclaim_after"`
}

// GenerationConfig controls LLM calls made during translation.
type GenerationConfig struct {
	Timeout      time.Duration   `yaml:"timeout" koanf:"timeout"`
	RetryTimeout time.Duration   `yaml:"retry_timeout" koanf:"retry_timeout"`
	RetryDelays  []time.Duration `yaml:"retry_delays" koanf:"retry_delays"`
	MinAnalytics int             `yaml:"min_analytics_chars" koanf:"min_analytics_chars"`
	MaxTokens    int             `yaml:"max_tokens" koanf:"max_tokens"`
}

// RetrievalConfig controls context selection.
type RetrievalConfig struct {
	TopK          int     `yaml:"top_k" koanf:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity" koanf:"min_similarity"`
}
