// Package config builds the host configuration from built-in defaults, an
// optional YAML file, an optional .env file and FASTTEXT_* environment
// variables, in that order of increasing precedence.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kennethnrk/fasttext-services/internal/common/constants"
)

var (
	ErrRequired = errors.New("required")
	ErrInvalid  = errors.New("invalid value")
)

// ServiceConfig is everything a service needs to load its model.
type ServiceConfig struct {
	Name        string                `yaml:"name"`
	Kind        constants.ServiceKind `yaml:"-"`
	Enabled     bool                  `yaml:"enabled"`
	ModelPath   string                `yaml:"model_path"`
	ModelURL    string                `yaml:"model_url"`
	ModelSHA256 string                `yaml:"model_sha256"`
}

type ServerConfig struct {
	GRPCAddr        string        `yaml:"grpc_addr"`
	HTTPAddr        string        `yaml:"http_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	DataDir      string `yaml:"data_dir"`
	CompactAfter int    `yaml:"compact_after"`
}

// CacheConfig enables the Redis vector cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// DownloadConfig bounds model downloads. A zero Timeout leaves the whole
// transfer unbounded; HeaderTimeout still catches a server that never answers.
type DownloadConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	HeaderTimeout time.Duration `yaml:"header_timeout"`
}

type MonitorConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type Config struct {
	Server            ServerConfig   `yaml:"server"`
	Log               LogConfig      `yaml:"log"`
	Store             StoreConfig    `yaml:"store"`
	Cache             CacheConfig    `yaml:"cache"`
	Download          DownloadConfig `yaml:"download"`
	Monitor           MonitorConfig  `yaml:"monitor"`
	Vectorizer        ServiceConfig  `yaml:"vectorizer"`
	LanguageDetection ServiceConfig  `yaml:"language_detection"`
}

// Default returns the configuration used when nothing overrides it. Model
// paths and the vectorizer URL have no defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCAddr:        ":50051",
			HTTPAddr:        ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log:      LogConfig{Level: "info", Format: "json"},
		Store:    StoreConfig{DataDir: "data", CompactAfter: 1024},
		Cache:    CacheConfig{TTL: 24 * time.Hour},
		Download: DownloadConfig{HeaderTimeout: time.Minute},
		Monitor:  MonitorConfig{Interval: 30 * time.Second},
		Vectorizer: ServiceConfig{
			Name:    string(constants.ServiceKindVectorizer),
			Kind:    constants.ServiceKindVectorizer,
			Enabled: true,
		},
		LanguageDetection: ServiceConfig{
			Name:    string(constants.ServiceKindLanguageDetection),
			Kind:    constants.ServiceKindLanguageDetection,
			Enabled: true,
		},
	}
}

// Load reads the YAML file at path and the dotenv file at envFile on top of
// the defaults, applies the environment and validates the result. Either
// path may be empty or point at a file that does not exist. Every problem
// found is reported in the one returned error.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.Vectorizer.Kind = constants.ServiceKindVectorizer
	cfg.LanguageDetection.Kind = constants.ServiceKindLanguageDetection

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read env file: %w", err)
		default:
			dotenv = m
		}
	}

	src := envSource{dotenv: dotenv}
	src.apply(cfg)

	if err := errors.Join(append(src.errs, cfg.Validate())...); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// Validate returns every missing or malformed setting joined into one error.
func (c *Config) Validate() error {
	var errs []error
	required := func(field, v string) {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s: %w", field, ErrRequired))
		}
	}

	if !c.Vectorizer.Enabled && !c.LanguageDetection.Enabled {
		errs = append(errs, fmt.Errorf("services: %w: at least one service must be enabled", ErrInvalid))
	}
	if c.Vectorizer.Enabled {
		required("vectorizer.name", c.Vectorizer.Name)
		required("vectorizer.model_path", c.Vectorizer.ModelPath)
		required("vectorizer.model_url", c.Vectorizer.ModelURL)
		errs = append(errs, checkSHA256("vectorizer.model_sha256", c.Vectorizer.ModelSHA256)...)
	}
	if c.LanguageDetection.Enabled {
		required("language_detection.name", c.LanguageDetection.Name)
		required("language_detection.model_path", c.LanguageDetection.ModelPath)
		errs = append(errs, checkSHA256("language_detection.model_sha256", c.LanguageDetection.ModelSHA256)...)
	}
	if c.Vectorizer.Enabled && c.LanguageDetection.Enabled && c.Vectorizer.Name == c.LanguageDetection.Name {
		errs = append(errs, fmt.Errorf("language_detection.name: %w: %q is already used by the vectorizer", ErrInvalid, c.LanguageDetection.Name))
	}
	if c.Vectorizer.Enabled && c.LanguageDetection.Enabled && c.Vectorizer.ModelPath != "" &&
		filepath.Clean(c.Vectorizer.ModelPath) == filepath.Clean(c.LanguageDetection.ModelPath) {
		errs = append(errs, fmt.Errorf("language_detection.model_path: %w: %q is already used by the vectorizer", ErrInvalid, c.LanguageDetection.ModelPath))
	}

	required("store.data_dir", c.Store.DataDir)
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		errs = append(errs, fmt.Errorf("server: %w: grpc_addr or http_addr must be set", ErrRequired))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: %w: %q", ErrInvalid, c.Log.Format))
	}
	if c.Download.Timeout < 0 || c.Download.HeaderTimeout < 0 {
		errs = append(errs, fmt.Errorf("download: %w: timeouts must not be negative", ErrInvalid))
	}
	if c.Monitor.Interval <= 0 {
		errs = append(errs, fmt.Errorf("monitor.interval: %w: must be positive", ErrInvalid))
	}
	return errors.Join(errs...)
}

// Services lists the enabled service configurations.
func (c *Config) Services() []ServiceConfig {
	var out []ServiceConfig
	for _, s := range []ServiceConfig{c.Vectorizer, c.LanguageDetection} {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

func checkSHA256(field, v string) []error {
	if v == "" {
		return nil
	}
	if b, err := hex.DecodeString(v); err != nil || len(b) != 32 {
		return []error{fmt.Errorf("%s: %w: want 64 hex characters", field, ErrInvalid)}
	}
	return nil
}
