package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location, relative to the working directory.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port           string   `yaml:"port"`
	DatabaseURL    string   `yaml:"databaseURL"`
	LogLevel       string   `yaml:"logLevel"`
	TrustedProxies []string `yaml:"trustedProxies"`
	TemplatesDir   string   `yaml:"templatesDir"`
	MinioEndpoint  string   `yaml:"minioEndpoint"`
	MinioAccessKey string   `yaml:"minioAccessKey"`
	MinioSecretKey string   `yaml:"minioSecretKey"`
	MinioBucket    string   `yaml:"minioBucket"`
	MinioUseSSL    bool     `yaml:"minioUseSSL"`
	MaxUploadBytes int64    `yaml:"maxUploadBytes"`
	RedisAddr      string   `yaml:"redisAddr"`
	RedisPassword  string   `yaml:"redisPassword"`
	EventStream    string   `yaml:"eventStream"`
}

// CoversEnabled reports whether cover uploads have an object store to land in.
func (c FileConfig) CoversEnabled() bool {
	return c.MinioEndpoint != ""
}

// Load reads config from path (defaults to config.yaml) and validates what the
// server and migrations need.
func Load(path string) (FileConfig, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFeed reads config for commands that only talk to the change feed.
// The database and listener settings may be absent.
func LoadFeed(path string) (FileConfig, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}
	if cfg.RedisAddr == "" {
		return cfg, errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	return cfg, nil
}

func read(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("CATALOG_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CATALOG_TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("CATALOG_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or CATALOG_PORT)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must not be negative")
	}
	if !cfg.CoversEnabled() {
		return nil
	}
	if cfg.MinioAccessKey == "" {
		return errors.New("config: minioAccessKey is required when minioEndpoint is set")
	}
	if cfg.MinioSecretKey == "" {
		return errors.New("config: minioSecretKey is required when minioEndpoint is set")
	}
	if cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required when minioEndpoint is set")
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
