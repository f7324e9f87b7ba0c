// Package config assembles service settings from an optional .env file, an
// optional YAML file named by CONFIG_FILE, and the process environment, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the service.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	ModelPath  string `yaml:"model_path"`
	TFIDFPath  string `yaml:"tfidf_path"`
	LabelsPath string `yaml:"labels_path"`

	DatabaseURL string `yaml:"database_url"`

	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	RateLimitBurst     int `yaml:"rate_limit_burst"`

	BatchMaxURLs     int `yaml:"batch_max_urls"`
	BatchConcurrency int `yaml:"batch_concurrency"`

	TLSDomains  []string `yaml:"tls_domains"`
	ACMEEmail   string   `yaml:"acme_email"`
	ACMEStaging bool     `yaml:"acme_staging"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:               "5000",
		LogLevel:           "info",
		ModelPath:          "models/url_detector.json",
		TFIDFPath:          "models/url_tfidf.json",
		LabelsPath:         "models/url_labels.json",
		RateLimitPerMinute: 60,
		RateLimitBurst:     10,
		BatchMaxURLs:       50,
		BatchConcurrency:   8,
	}
}

// Load reads .env (if present), then CONFIG_FILE (if set), then applies
// environment overrides. A missing .env is not an error; a missing
// CONFIG_FILE is.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("PORT", &c.Port)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("MODEL_PATH", &c.ModelPath)
	setString("TFIDF_PATH", &c.TFIDFPath)
	setString("LABELS_PATH", &c.LabelsPath)
	setString("DATABASE_URL", &c.DatabaseURL)
	setString("ACME_EMAIL", &c.ACMEEmail)

	for key, dst := range map[string]*int{
		"RATE_LIMIT_PER_MINUTE": &c.RateLimitPerMinute,
		"RATE_LIMIT_BURST":      &c.RateLimitBurst,
		"BATCH_MAX_URLS":        &c.BatchMaxURLs,
		"BATCH_CONCURRENCY":     &c.BatchConcurrency,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}

	if v := os.Getenv("TLS_DOMAINS"); v != "" {
		c.TLSDomains = nil
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				c.TLSDomains = append(c.TLSDomains, d)
			}
		}
	}
	if v := os.Getenv("ACME_STAGING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ACME_STAGING: %w", err)
		}
		c.ACMEStaging = b
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port must be set")
	}
	if c.ModelPath == "" || c.TFIDFPath == "" || c.LabelsPath == "" {
		return errors.New("model, tfidf and labels paths must all be set")
	}
	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit must be positive (per_minute=%d burst=%d)", c.RateLimitPerMinute, c.RateLimitBurst)
	}
	if c.BatchMaxURLs <= 0 || c.BatchConcurrency <= 0 {
		return fmt.Errorf("batch limits must be positive (max_urls=%d concurrency=%d)", c.BatchMaxURLs, c.BatchConcurrency)
	}
	return nil
}

// TLSEnabled reports whether HTTPS should be served via ACME.
func (c Config) TLSEnabled() bool {
	return len(c.TLSDomains) > 0
}
