// Package config holds the runtime configuration shared by the binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/go-ini/ini"
	"github.com/joho/godotenv"
)

var (
	// ErrConfiguration marks errors that make the process unable to start.
	ErrConfiguration = errors.New("configuration error")
	// ErrMissingCredential is returned when no OpenAI API key is configured.
	ErrMissingCredential = errors.New("missing OpenAI API key")
)

// Config is built once at startup and passed by reference.
type Config struct {
	OpenAIAPIKey  string `ini:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `ini:"openai_base_url" env:"OPENAI_BASE_URL"`

	ChatModel      string  `ini:"chat_model" env:"CHAT_MODEL"`
	Temperature    float32 `ini:"chat_temperature" env:"CHAT_TEMPERATURE"`
	MaxTokens      int     `ini:"chat_max_tokens" env:"CHAT_MAX_TOKENS"`
	TopK           int     `ini:"top_k" env:"TOP_K"`
	EmbeddingModel string  `ini:"embedding_model" env:"EMBEDDING_MODEL"`

	IndexDir     string `ini:"index_dir" env:"INDEX_DIR"`
	IndexBackend string `ini:"index_backend" env:"INDEX_BACKEND"`
	ChunkSize    int    `ini:"chunk_size" env:"CHUNK_SIZE"`
	ChunkOverlap int    `ini:"chunk_overlap" env:"CHUNK_OVERLAP"`
	Language     string `ini:"transcript_language" env:"TRANSCRIPT_LANGUAGE"`

	RetrievalTimeout  time.Duration `ini:"retrieval_timeout" env:"RETRIEVAL_TIMEOUT"`
	GenerationTimeout time.Duration `ini:"generation_timeout" env:"GENERATION_TIMEOUT"`

	HTTPAddr string `ini:"http_addr" env:"HTTP_ADDR"`
	APIKey   string `ini:"api_key" env:"API_KEY"`

	RedisAddr          string        `ini:"redis_addr" env:"REDIS_ADDR"`
	TranscriptCacheTTL time.Duration `ini:"transcript_cache_ttl" env:"TRANSCRIPT_CACHE_TTL"`
	IngestConcurrency  int           `ini:"ingest_concurrency" env:"INGEST_CONCURRENCY"`

	LogLevel string `ini:"log_level" env:"LOG_LEVEL"`
}

// Default returns the built-in configuration. It lacks the API key and
// does not validate on its own.
func Default() *Config {
	return &Config{
		ChatModel:          "gpt-4",
		Temperature:        0.7,
		MaxTokens:          1000,
		TopK:               4,
		EmbeddingModel:     "text-embedding-3-small",
		IndexDir:           "data",
		IndexBackend:       "gob",
		ChunkSize:          1000,
		ChunkOverlap:       100,
		Language:           "nl",
		RetrievalTimeout:   30 * time.Second,
		GenerationTimeout:  90 * time.Second,
		HTTPAddr:           ":8080",
		TranscriptCacheTTL: 7 * 24 * time.Hour,
		IngestConcurrency:  4,
		LogLevel:           "info",
	}
}

// Load builds the configuration from, in increasing precedence: the
// defaults, the INI file at iniPath, the dotenv file at envFile and the
// process environment. Empty paths are skipped; a missing envFile is not an
// error. The result is not validated.
func Load(iniPath, envFile string) (*Config, error) {
	return load(iniPath, envFile, os.LookupEnv)
}

func load(iniPath, envFile string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if iniPath != "" {
		f, err := ini.Load(iniPath)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrConfiguration, iniPath, err)
		}
		if err := checkDurations(f.Section("")); err != nil {
			return nil, fmt.Errorf("%s: %w", iniPath, err)
		}
		if err := f.StrictMapTo(cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %w", ErrConfiguration, iniPath, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("%w: reading %s: %w", ErrConfiguration, envFile, err)
		}
	}

	// Environment values go through go-ini as well so every layer shares
	// one set of type conversions.
	overlay := ini.Empty()
	section := overlay.Section("")
	t := reflect.TypeOf(*cfg)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("env")
		value, ok := dotenv[name]
		if v, set := lookup(name); set {
			value, ok = v, true
		}
		if !ok {
			continue
		}
		if _, err := section.NewKey(field.Tag.Get("ini"), value); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, name, err)
		}
	}
	if err := checkDurations(section); err != nil {
		return nil, err
	}
	if err := overlay.StrictMapTo(cfg); err != nil {
		return nil, fmt.Errorf("%w: environment: %w", ErrConfiguration, err)
	}

	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// checkDurations rejects duration values without a unit. go-ini falls back
// to reading them as integer nanoseconds.
func checkDurations(section *ini.Section) error {
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("ini")
		if field.Type != durationType || !section.HasKey(name) {
			continue
		}
		if _, err := time.ParseDuration(section.Key(name).String()); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConfiguration, name, err)
		}
	}
	return nil
}

// Validate reports the first setting that prevents the pipeline from
// running. Every error wraps ErrConfiguration.
func (c *Config) Validate() error {
	switch {
	case c.OpenAIAPIKey == "":
		return fmt.Errorf("%w: %w: set OPENAI_API_KEY in the environment or .env", ErrConfiguration, ErrMissingCredential)
	case c.TopK < 1:
		return fmt.Errorf("%w: top_k must be at least 1, got %d", ErrConfiguration, c.TopK)
	case c.MaxTokens < 1:
		return fmt.Errorf("%w: chat_max_tokens must be at least 1, got %d", ErrConfiguration, c.MaxTokens)
	case c.Temperature < 0 || c.Temperature > 2:
		return fmt.Errorf("%w: chat_temperature must be in [0, 2], got %g", ErrConfiguration, c.Temperature)
	case c.ChunkSize < 1:
		return fmt.Errorf("%w: chunk_size must be at least 1, got %d", ErrConfiguration, c.ChunkSize)
	case c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize:
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size)", ErrConfiguration, c.ChunkOverlap)
	case c.IndexBackend != "gob" && c.IndexBackend != "sqlite":
		return fmt.Errorf("%w: unknown index_backend %q (want gob or sqlite)", ErrConfiguration, c.IndexBackend)
	case c.RetrievalTimeout < 0 || c.GenerationTimeout < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrConfiguration)
	case c.IngestConcurrency < 1:
		return fmt.Errorf("%w: ingest_concurrency must be at least 1, got %d", ErrConfiguration, c.IngestConcurrency)
	}
	return nil
}
