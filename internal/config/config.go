package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Diaflow  DiaflowConfig  `mapstructure:"diaflow"`
	Polling  PollingConfig  `mapstructure:"polling"`
	CDN      CDNConfig      `mapstructure:"cdn"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Qdrant   QdrantConfig   `mapstructure:"qdrant"`
	Research ResearchConfig `mapstructure:"research"`
	Log      LogConfig      `mapstructure:"log"`
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
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	URL             string        `mapstructure:"url"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.URL
	}
	return c.Path
}

// PollingConfig controls the status-check scheduler.
type PollingConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

// CDNConfig holds the signing parameters for generated image URLs.
type CDNConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Policy    string `mapstructure:"policy"`
	Signature string `mapstructure:"signature"`
	KeyPairID string `mapstructure:"key_pair_id"`
}

// Configured reports whether every signing parameter is present.
func (c *CDNConfig) Configured() bool {
	return c.BaseURL != "" && c.Policy != "" && c.Signature != "" && c.KeyPairID != ""
}

type GeminiConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	ChatModel      string        `mapstructure:"chat_model"`
	EmbedModel     string        `mapstructure:"embed_model"`
	EmbedDimension int           `mapstructure:"embed_dimension"`
	Temperature    float32       `mapstructure:"temperature"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds settings for the S3-compatible bucket used for uploads.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // r2, s3, s3compatible
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

// Enabled reports whether uploads can be stored.
func (c *StorageConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

type QdrantConfig struct {
	Host       string  `mapstructure:"host"`
	Port       int     `mapstructure:"port"`
	Collection string  `mapstructure:"collection"`
	APIKey     string  `mapstructure:"api_key"`
	UseTLS     bool    `mapstructure:"use_tls"`
	Enabled    bool    `mapstructure:"enabled"`
	MinScore   float32 `mapstructure:"min_score"`
}

type ResearchConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
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

	// Secrets are bound explicitly so they never need to live in the YAML file
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("diaflow.api_key", "DIAFLOW_API_KEY")
	v.BindEnv("diaflow.base_url", "DIAFLOW_BASE_URL")
	v.BindEnv("cdn.base_url", "CDN_BASE_URL")
	v.BindEnv("cdn.policy", "CDN_POLICY")
	v.BindEnv("cdn.signature", "CDN_SIGNATURE")
	v.BindEnv("cdn.key_pair_id", "CDN_KEY_PAIR_ID")
	v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("research.api_key", "SEMANTIC_SCHOLAR_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_upload_bytes", 100<<20)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/sourcedesk.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("diaflow.base_url", "https://api.diaflow.app/api/v1/builders")
	v.SetDefault("diaflow.timeout", 30*time.Second)

	v.SetDefault("polling.interval", 3*time.Second)
	v.SetDefault("polling.timeout", 30*time.Minute)
	v.SetDefault("polling.max_concurrent", 0)
	v.SetDefault("polling.rate_per_second", 0)
	v.SetDefault("polling.sweep_schedule", "@every 1m")

	v.SetDefault("gemini.chat_model", "gemini-2.0-flash")
	v.SetDefault("gemini.embed_model", "gemini-embedding-001")
	v.SetDefault("gemini.embed_dimension", 768)
	v.SetDefault("gemini.temperature", 0.4)
	v.SetDefault("gemini.timeout", 60*time.Second)

	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "sources")

	v.SetDefault("qdrant.enabled", false)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "sources")

	v.SetDefault("research.base_url", "https://api.semanticscholar.org/graph/v1")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
