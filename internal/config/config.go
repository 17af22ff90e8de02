package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig controls the Postgres connection used for the relational
// store (Sources, DocumentRecords, DocumentMetadata, SyncLogs,
// ExternalDataSources, job history).
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifeMins int
}

// ObjectStoreConfig controls the blob adapter (component G).
type ObjectStoreConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PublicURL string
}

// VectorStoreConfig controls the Qdrant-backed dense index (component J).
type VectorStoreConfig struct {
	Addr       string
	Collection string
}

// EmbeddingConfig controls the embedder (component I).
type EmbeddingConfig struct {
	Provider       string
	Model          string
	APIKey         string
	BaseURL        string
	CanonicalDim   int
	WorkerPoolSize int
}

// LLMProviderConfig is one named LLM endpoint configuration.
type LLMProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// LLMConfig selects providers per role and holds the metadata primary +
// fallback chain.
type LLMConfig struct {
	MetadataPrimary  string
	MetadataFallback string
	ChatProvider     string
	RerankerProvider string

	OpenAI    LLMProviderConfig
	Anthropic LLMProviderConfig
	Google    LLMProviderConfig
}

// CryptoConfig holds the symmetric key used to encrypt ExternalDataSource
// credentials at rest.
type CryptoConfig struct {
	KeyHex string
}

// ScrapeConfig holds the default floors and ceilings for the scrape pipeline.
type ScrapeConfig struct {
	MaxConcurrentJobs  int
	InterPageDelayMs   int
	InterDocDelayMs    int
	RequestTimeoutSecs int
	MaxRedirects       int
	MaxDownloadBytes   int64
	DefaultWindowSize  int
	DeleteWithoutMeta  bool
	RespectRobots      bool
	RatePerSecond      float64
}

// RetentionConfig controls TTL sweeps for ScrapeJob history.
type RetentionConfig struct {
	Enabled           bool
	JobRetentionDays  int
	SweepIntervalMins int
}

// RedisConfig backs the scrape job progress pub-sub.
type RedisConfig struct {
	Addr string
}

// Config is the root configuration object, populated entirely from process
// environment variables at startup.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	ObjectStore ObjectStoreConfig
	VectorStore VectorStoreConfig
	Embedding   EmbeddingConfig
	LLM         LLMConfig
	Crypto      CryptoConfig
	Scrape      ScrapeConfig
	Retention   RetentionConfig
	Redis       RedisConfig
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Load reads configuration from a .env file (if present) and the process
// environment. A missing .env is not an error: production deployments set
// real environment variables directly.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", ""),
			MaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 10),
			ConnMaxLifeMins: getEnvInt("DATABASE_CONN_MAX_LIFE_MINS", 30),
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:  getEnv("OBJECT_STORE_ENDPOINT", ""),
			Bucket:    getEnv("OBJECT_STORE_BUCKET", "policy-documents"),
			AccessKey: getEnv("OBJECT_STORE_ACCESS_KEY", ""),
			SecretKey: getEnv("OBJECT_STORE_SECRET_KEY", ""),
			UseSSL:    getEnvBool("OBJECT_STORE_USE_SSL", true),
			PublicURL: getEnv("OBJECT_STORE_PUBLIC_URL", ""),
		},
		VectorStore: VectorStoreConfig{
			Addr:       getEnv("VECTOR_STORE_ADDR", "localhost:6334"),
			Collection: getEnv("VECTOR_STORE_COLLECTION", "policy_documents"),
		},
		Embedding: EmbeddingConfig{
			Provider:       getEnv("EMBEDDING_PROVIDER", "openai"),
			Model:          getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			APIKey:         getEnv("EMBEDDING_API_KEY", ""),
			BaseURL:        getEnv("EMBEDDING_BASE_URL", ""),
			CanonicalDim:   getEnvInt("EMBEDDING_CANONICAL_DIM", 1024),
			WorkerPoolSize: getEnvInt("EMBEDDING_WORKER_POOL_SIZE", 5),
		},
		LLM: LLMConfig{
			MetadataPrimary:  getEnv("LLM_METADATA_PRIMARY", "openai"),
			MetadataFallback: getEnv("LLM_METADATA_FALLBACK", "anthropic"),
			ChatProvider:     getEnv("LLM_CHAT_PROVIDER", "openai"),
			RerankerProvider: getEnv("LLM_RERANKER_PROVIDER", "openai"),
			OpenAI: LLMProviderConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", ""),
				Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: LLMProviderConfig{
				APIKey: getEnv("ANTHROPIC_API_KEY", ""),
				Model:  getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
			},
			Google: LLMProviderConfig{
				APIKey: getEnv("GOOGLE_API_KEY", ""),
				Model:  getEnv("GOOGLE_MODEL", "gemini-1.5-flash"),
			},
		},
		Crypto: CryptoConfig{
			KeyHex: getEnv("CREDENTIAL_ENCRYPTION_KEY", ""),
		},
		Scrape: ScrapeConfig{
			MaxConcurrentJobs:  getEnvInt("SCRAPE_MAX_CONCURRENT_JOBS", 1),
			InterPageDelayMs:   getEnvInt("SCRAPE_INTER_PAGE_DELAY_MS", 1000),
			InterDocDelayMs:    getEnvInt("SCRAPE_INTER_DOC_DELAY_MS", 200),
			RequestTimeoutSecs: getEnvInt("SCRAPE_REQUEST_TIMEOUT_SECS", 30),
			MaxRedirects:       getEnvInt("SCRAPE_MAX_REDIRECTS", 5),
			MaxDownloadBytes:   getEnvInt64("SCRAPE_MAX_DOWNLOAD_BYTES", 50*1024*1024),
			DefaultWindowSize:  getEnvInt("SCRAPE_DEFAULT_WINDOW_SIZE", 3),
			DeleteWithoutMeta:  getEnvBool("SCRAPE_DELETE_WITHOUT_METADATA", false),
			RespectRobots:      getEnvBool("SCRAPE_RESPECT_ROBOTS", true),
			RatePerSecond:      getEnvFloat("SCRAPE_RATE_PER_SECOND", 2),
		},
		Retention: RetentionConfig{
			Enabled:           getEnvBool("RETENTION_ENABLED", true),
			JobRetentionDays:  getEnvInt("RETENTION_JOB_DAYS", 30),
			SweepIntervalMins: getEnvInt("RETENTION_SWEEP_INTERVAL_MINS", 60),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
	}
}

// Validate performs basic sanity checks so obviously misconfigured
// deployments fail fast at startup rather than during the first request.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return errors.New("DATABASE_DSN must be set")
	}

	provider := strings.TrimSpace(cfg.LLM.MetadataPrimary)
	if provider == "" {
		return errors.New("LLM_METADATA_PRIMARY must be set to 'openai', 'anthropic', or 'google'")
	}
	if err := cfg.checkProviderConfigured(provider); err != nil {
		return fmt.Errorf("metadata primary provider: %w", err)
	}
	if fb := strings.TrimSpace(cfg.LLM.MetadataFallback); fb != "" {
		if err := cfg.checkProviderConfigured(fb); err != nil {
			return fmt.Errorf("metadata fallback provider: %w", err)
		}
	}

	if cfg.Crypto.KeyHex == "" {
		return errors.New("CREDENTIAL_ENCRYPTION_KEY must be set (32-byte hex key for external source credential encryption)")
	}

	if cfg.Embedding.CanonicalDim <= 0 {
		return errors.New("EMBEDDING_CANONICAL_DIM must be positive")
	}

	return nil
}

func (cfg *Config) checkProviderConfigured(name string) error {
	switch name {
	case "openai":
		if cfg.LLM.OpenAI.APIKey == "" || cfg.LLM.OpenAI.Model == "" {
			return errors.New("openai provider is not fully configured")
		}
	case "anthropic":
		if cfg.LLM.Anthropic.APIKey == "" || cfg.LLM.Anthropic.Model == "" {
			return errors.New("anthropic provider is not fully configured")
		}
	case "google":
		if cfg.LLM.Google.APIKey == "" || cfg.LLM.Google.Model == "" {
			return errors.New("google provider is not fully configured")
		}
	default:
		return fmt.Errorf("unsupported llm provider: %s", name)
	}
	return nil
}
