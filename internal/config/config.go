// Package config loads the Parley configuration from a YAML file and PARLEY_*
// environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PARLEY"

// ErrInvalid marks configuration values that fail validation.
var ErrInvalid = errors.New("invalid configuration")

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverDir      = "dir"
)

// Embedding providers.
const (
	EmbeddingOpenAI = "openai"
	EmbeddingHash   = "hash"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Flows     FlowsConfig     `mapstructure:"flows"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Security  SecurityConfig  `mapstructure:"security"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	MCPAddr         string        `mapstructure:"mcp_addr"`
	MCPBaseURL      string        `mapstructure:"mcp_base_url"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects where conversation state lives.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // memory | file | redis | postgres
	Dir    string `mapstructure:"dir"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	// Lock serializes conversations across processes.
	Lock bool `mapstructure:"lock"`
	// LockTTL is the lease of a conversation lock; holders renew it while a pass runs.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type FlowsConfig struct {
	Source string `mapstructure:"source"` // dir | postgres
	Dir    string `mapstructure:"dir"`
	Watch  bool   `mapstructure:"watch"`
}

type KnowledgeConfig struct {
	Store           string        `mapstructure:"store"` // memory | postgres
	ChunkSize       int           `mapstructure:"chunk_size"`
	ChunkOverlap    int           `mapstructure:"chunk_overlap"`
	InsertBatchSize int           `mapstructure:"insert_batch_size"`
	EmbedBatchSize  int           `mapstructure:"embed_batch_size"`
	ProcessTimeout  time.Duration `mapstructure:"process_timeout"`
	ChunkTimeout    time.Duration `mapstructure:"chunk_timeout"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	MaxFetchBytes   int64         `mapstructure:"max_fetch_bytes"`
	CacheSize       int           `mapstructure:"cache_size"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type LLMConfig struct {
	Provider string         `mapstructure:"provider"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	Groq     ProviderConfig `mapstructure:"groq"`
	OpenAI   ProviderConfig `mapstructure:"openai"`
	Gemini   ProviderConfig `mapstructure:"gemini"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai | hash
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"` // 0 keeps the provider default
	// Fallback chains the hash embedder behind the provider.
	Fallback bool `mapstructure:"fallback"`
}

type WhatsAppConfig struct {
	PhoneNumberID string `mapstructure:"phone_number_id"`
	AccessToken   string `mapstructure:"access_token"`
	VerifyToken   string `mapstructure:"verify_token"`
	AppSecret     string `mapstructure:"app_secret"`
	APIVersion    string `mapstructure:"api_version"`
	BaseURL       string `mapstructure:"base_url"`
}

// Enabled reports whether outbound WhatsApp messages can be sent.
func (c WhatsAppConfig) Enabled() bool {
	return c.PhoneNumberID != "" && c.AccessToken != ""
}

// RuntimeConfig tunes the interpreter. Zero AI fields keep the built-in defaults,
// except temperature and min_similarity, where only an absent key does.
type RuntimeConfig struct {
	MaxSteps      int     `mapstructure:"max_steps"`
	MaxInputSize  int     `mapstructure:"max_input_size"`
	SystemPrompt  string  `mapstructure:"system_prompt"`
	ErrorMessage  string  `mapstructure:"error_message"`
	Temperature   *float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	HistoryWindow int     `mapstructure:"history_window"`
	TopK          int     `mapstructure:"top_k"`
	MinSimilarity *float64 `mapstructure:"min_similarity"`
}

type SecurityConfig struct {
	// EncryptionKey is a base64 AES-256 key. Empty disables state encryption.
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
	PIIPatterns   []string `mapstructure:"pii_patterns"`
}

// Keys decodes the encryption keys. A nil active key means encryption is off.
func (c SecurityConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if c.EncryptionKey == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey(c.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("security.encryption_key: %w", err)
	}
	for i, k := range c.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("security.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: key is not base64", ErrInvalid)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: key must be 32 bytes, got %d", ErrInvalid, len(key))
	}
	return key, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mcp_addr", ":8081")
	v.SetDefault("server.mcp_base_url", "http://localhost:8081")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.dir", ".parley/state")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "parley:")
	v.SetDefault("redis.ttl", time.Duration(0))
	v.SetDefault("redis.lock", true)
	v.SetDefault("redis.lock_ttl", 30*time.Second)

	v.SetDefault("postgres.dsn", "")

	v.SetDefault("flows.source", DriverDir)
	v.SetDefault("flows.dir", "flows")
	v.SetDefault("flows.watch", false)

	v.SetDefault("knowledge.store", DriverMemory)
	v.SetDefault("knowledge.chunk_size", 800)
	v.SetDefault("knowledge.chunk_overlap", 100)
	v.SetDefault("knowledge.insert_batch_size", 50)
	v.SetDefault("knowledge.embed_batch_size", 50)
	v.SetDefault("knowledge.process_timeout", 60*time.Second)
	v.SetDefault("knowledge.chunk_timeout", 10*time.Second)
	v.SetDefault("knowledge.batch_timeout", 30*time.Second)
	v.SetDefault("knowledge.query_timeout", 10*time.Second)
	v.SetDefault("knowledge.fetch_timeout", 10*time.Second)
	v.SetDefault("knowledge.max_fetch_bytes", 100*1024)
	v.SetDefault("knowledge.cache_size", 100)

	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.timeout", 30*time.Second)
	for _, p := range []string{"groq", "openai", "gemini"} {
		v.SetDefault("llm."+p+".api_key", "")
		v.SetDefault("llm."+p+".base_url", "")
		v.SetDefault("llm."+p+".model", "")
	}

	v.SetDefault("embedding.provider", EmbeddingOpenAI)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.fallback", true)

	v.SetDefault("whatsapp.phone_number_id", "")
	v.SetDefault("whatsapp.access_token", "")
	v.SetDefault("whatsapp.verify_token", "")
	v.SetDefault("whatsapp.app_secret", "")
	v.SetDefault("whatsapp.api_version", "v18.0")
	v.SetDefault("whatsapp.base_url", "")

	v.SetDefault("runtime.max_steps", 100)
	v.SetDefault("runtime.max_input_size", 4096)
	v.SetDefault("runtime.system_prompt", "")
	v.SetDefault("runtime.error_message", "")
	v.SetDefault("runtime.max_tokens", 0)
	v.SetDefault("runtime.history_window", 0)
	v.SetDefault("runtime.top_k", 0)

	v.SetDefault("security.encryption_key", "")
	v.SetDefault("security.fallback_keys", []string{})
	v.SetDefault("security.pii_patterns", []string{})
}

// Load reads the configuration. An empty path looks for parley.yaml in the
// working directory and in $HOME/.config/parley; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without a default are only seen by Unmarshal when bound.
	_ = v.BindEnv("runtime.temperature")
	_ = v.BindEnv("runtime.min_similarity")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("parley")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/parley")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks driver names and the settings each driver needs.
func (c *Config) Validate() error {
	var errs []error
	oneOf := func(key, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%w: %s must be one of %s, got %q", ErrInvalid, key, strings.Join(allowed, ", "), value))
	}

	oneOf("storage.driver", c.Storage.Driver, DriverMemory, DriverFile, DriverRedis, DriverPostgres)
	oneOf("flows.source", c.Flows.Source, DriverDir, DriverPostgres)
	oneOf("knowledge.store", c.Knowledge.Store, DriverMemory, DriverPostgres)
	oneOf("embedding.provider", c.Embedding.Provider, EmbeddingOpenAI, EmbeddingHash)
	oneOf("llm.provider", c.LLM.Provider, "groq", "openai", "gemini")

	if c.UsesPostgres() && c.Postgres.DSN == "" {
		errs = append(errs, fmt.Errorf("%w: postgres.dsn is required by the postgres driver", ErrInvalid))
	}
	if c.Knowledge.ChunkSize <= 0 || c.Knowledge.ChunkOverlap < 0 || c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		errs = append(errs, fmt.Errorf("%w: knowledge.chunk_overlap must be in [0, chunk_size)", ErrInvalid))
	}
	if c.Redis.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("%w: redis.lock_ttl must be positive", ErrInvalid))
	}
	if c.Embedding.Dimensions < 0 {
		errs = append(errs, fmt.Errorf("%w: embedding.dimensions must not be negative", ErrInvalid))
	}
	if _, _, err := c.Security.Keys(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// UsesPostgres reports whether any driver needs a database connection.
func (c *Config) UsesPostgres() bool {
	return c.Storage.Driver == DriverPostgres || c.Flows.Source == DriverPostgres || c.Knowledge.Store == DriverPostgres
}
