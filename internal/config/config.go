package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Qdrant        QdrantConfig        `mapstructure:"qdrant"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Summary       SummaryConfig       `mapstructure:"summary"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Chunking      ChunkingConfig      `mapstructure:"chunking"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Port           int        `mapstructure:"port"`
	Mode           string     `mapstructure:"mode"`
	MaxUploadBytes int64      `mapstructure:"max_upload_bytes"`
	CORS           CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or sqlite
	Path            string        `mapstructure:"path"`   // sqlite file
	URL             string        `mapstructure:"url"`    // postgres URL, wins over the discrete fields
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver != "postgres" {
		return c.Path
	}
	if c.URL != "" {
		return c.URL
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslMode)
}

type StorageConfig struct {
	Type      string        `mapstructure:"type"` // r2, s3, s3compatible
	Endpoint  string        `mapstructure:"endpoint"`
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	UseSSL    bool          `mapstructure:"use_ssl"`
	Bucket    string        `mapstructure:"bucket"`
	Region    string        `mapstructure:"region"`
	PublicURL string        `mapstructure:"public_url"`
	URLTTL    time.Duration `mapstructure:"url_ttl"`
}

type QdrantConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

type TranscriptionConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	APIKey             string        `mapstructure:"api_key"`
	Model              string        `mapstructure:"model"`
	Language           string        `mapstructure:"language"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxFileBytes       int64         `mapstructure:"max_file_bytes"`
	SegmentDuration    time.Duration `mapstructure:"segment_duration"`
	SegmentConcurrency int           `mapstructure:"segment_concurrency"`
	FFmpegPath         string        `mapstructure:"ffmpeg_path"`
	FFprobePath        string        `mapstructure:"ffprobe_path"`
	WorkDir            string        `mapstructure:"work_dir"`
}

type ChatConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SummaryConfig struct {
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	MaxInputTokens int     `mapstructure:"max_input_tokens"`
	Encoding       string  `mapstructure:"encoding"`
}

type RetrievalConfig struct {
	Threshold       float64 `mapstructure:"threshold"`
	MaxResults      int     `mapstructure:"max_results"`
	CandidateSource string  `mapstructure:"candidate_source"` // database or qdrant
	CandidateLimit  int     `mapstructure:"candidate_limit"`
}

type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
}

// GetStorageConfig returns the storage configuration with the region
// defaulted for the detected provider.
func (c *Config) GetStorageConfig() StorageConfig {
	sc := c.Storage
	if sc.Region == "" && sc.Type == "r2" {
		sc.Region = "auto"
	}
	return sc
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, %d)", c.Chunking.Size)
	}
	if c.Retrieval.MaxResults <= 0 {
		return fmt.Errorf("retrieval.max_results must be positive")
	}
	switch c.Retrieval.CandidateSource {
	case "database":
	case "qdrant":
		if !c.Qdrant.Enabled {
			return fmt.Errorf("retrieval.candidate_source=qdrant requires qdrant.enabled")
		}
	default:
		return fmt.Errorf("unknown retrieval.candidate_source %q", c.Retrieval.CandidateSource)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive")
	}
	if c.Transcription.SegmentConcurrency <= 0 {
		return fmt.Errorf("transcription.segment_concurrency must be positive")
	}
	return c.Embedding.Validate()
}

func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and deployment-specific values
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.bucket", "STORAGE_BUCKET")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("transcription.api_key", "OPENAI_API_KEY")
	v.BindEnv("transcription.base_url", "OPENAI_BASE_URL")
	v.BindEnv("chat.api_key", "OPENAI_API_KEY")
	v.BindEnv("chat.base_url", "OPENAI_BASE_URL")
	v.BindEnv("chat.model", "CHAT_MODEL")
	v.BindEnv("embedding.api_key", "EMBEDDING_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Embedding.ResolveEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_upload_bytes", int64(2<<30))
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/minutes.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.type", "s3compatible")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "minutes")
	v.SetDefault("storage.url_ttl", time.Hour)

	v.SetDefault("qdrant.enabled", false)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "transcript_chunks")

	v.SetDefault("transcription.base_url", "https://api.openai.com/v1")
	v.SetDefault("transcription.model", "whisper-1")
	v.SetDefault("transcription.language", "ja")
	v.SetDefault("transcription.timeout", 10*time.Minute)
	v.SetDefault("transcription.max_file_bytes", int64(25<<20))
	v.SetDefault("transcription.segment_duration", 10*time.Minute)
	v.SetDefault("transcription.segment_concurrency", 2)
	v.SetDefault("transcription.ffmpeg_path", "ffmpeg")
	v.SetDefault("transcription.ffprobe_path", "ffprobe")
	v.SetDefault("transcription.work_dir", "")

	v.SetDefault("embedding.name", "default")
	v.SetDefault("embedding.provider", "openai-compatible")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("embedding.dimensions", 1536)

	v.SetDefault("chat.base_url", "https://api.openai.com/v1")
	v.SetDefault("chat.model", "gpt-4o-mini")
	v.SetDefault("chat.temperature", 0.3)
	v.SetDefault("chat.max_tokens", 800)
	v.SetDefault("chat.timeout", 60*time.Second)

	v.SetDefault("summary.temperature", 0.7)
	v.SetDefault("summary.max_tokens", 1000)
	v.SetDefault("summary.max_input_tokens", 100000)
	v.SetDefault("summary.encoding", "cl100k_base")

	v.SetDefault("retrieval.threshold", 0.65)
	v.SetDefault("retrieval.max_results", 5)
	v.SetDefault("retrieval.candidate_source", "database")
	v.SetDefault("retrieval.candidate_limit", 50)

	v.SetDefault("chunking.size", 400)
	v.SetDefault("chunking.overlap", 50)

	v.SetDefault("pipeline.workers", 2)
}
