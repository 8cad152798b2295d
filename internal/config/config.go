// Package config loads reelmatch settings.
//
// Sources are layered, later ones winning:
//
//  1. built-in defaults
//  2. an optional YAML file (CONFIG_PATH, else config.yaml or config.yml)
//  3. environment variables, after a .env file in the working directory
//     has been loaded into the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are tried in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Data       DataConfig       `koanf:"data"`
	Letterboxd LetterboxdConfig `koanf:"letterboxd"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	Logging    LoggingConfig    `koanf:"logging"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	// RequestTimeout bounds each API request, including the diary fetch.
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
	CORSOrigins    []string      `koanf:"cors_origins" validate:"dive,required"`
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit int `koanf:"rate_limit" validate:"min=0"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type DataConfig struct {
	MetadataPath string `koanf:"metadata_path" validate:"required"`
	VectorsPath  string `koanf:"vectors_path" validate:"required"`
	Table        string `koanf:"table" validate:"omitempty,max=64"`
}

type LetterboxdConfig struct {
	BaseURL         string        `koanf:"base_url" validate:"required,url"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxPages        int           `koanf:"max_pages" validate:"min=1,max=50"`
	UserAgent       string        `koanf:"user_agent" validate:"required"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"min=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

type RecommendConfig struct {
	DefaultK          int  `koanf:"default_k" validate:"min=1,ltefield=MaxK"`
	DefaultTarget     int  `koanf:"default_target" validate:"min=1,ltefield=MaxK"`
	DefaultPerTitleK  int  `koanf:"default_per_title_k" validate:"min=1,ltefield=MaxK"`
	MaxK              int  `koanf:"max_k" validate:"min=1"`
	DedupeAcrossSeeds bool `koanf:"dedupe_across_seeds"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8990,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  20 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       120,
		},
		Data: DataConfig{
			MetadataPath: "data/movie_metadata.csv",
			VectorsPath:  "data/tfidf_matrix.json.gz",
			Table:        "movies",
		},
		Letterboxd: LetterboxdConfig{
			BaseURL:         "https://letterboxd.com",
			Timeout:         10 * time.Second,
			MaxPages:        1,
			UserAgent:       "reelmatch/1.0",
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Recommend: RecommendConfig{
			DefaultK:          10,
			DefaultTarget:     10,
			DefaultPerTitleK:  5,
			MaxK:              100,
			DedupeAcrossSeeds: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, file and environment, then
// validates it.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths arrive from the environment as comma-separated strings.
var sliceConfigPaths = []string{"server.cors_origins"}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names to config paths. Variables
// not listed are ignored.
var envMappings = map[string]string{
	"server_host":      "server.host",
	"port":             "server.port",
	"read_timeout":     "server.read_timeout",
	"write_timeout":    "server.write_timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"request_timeout":  "server.request_timeout",
	"cors_origins":     "server.cors_origins",
	"rate_limit":       "server.rate_limit",

	"metadata_path":  "data.metadata_path",
	"vectors_path":   "data.vectors_path",
	"metadata_table": "data.table",

	"letterboxd_base_url":         "letterboxd.base_url",
	"letterboxd_timeout":          "letterboxd.timeout",
	"letterboxd_max_pages":        "letterboxd.max_pages",
	"letterboxd_user_agent":       "letterboxd.user_agent",
	"letterboxd_breaker_failures": "letterboxd.breaker_failures",
	"letterboxd_breaker_timeout":  "letterboxd.breaker_timeout",

	"default_recommendations":  "recommend.default_k",
	"default_target_count":     "recommend.default_target",
	"recommendations_per_film": "recommend.default_per_title_k",
	"max_recommendations":      "recommend.max_k",
	"dedupe_across_seeds":      "recommend.dedupe_across_seeds",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
