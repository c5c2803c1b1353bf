// Package config loads router settings from an optional YAML file followed by
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ksasa/router/internal/adapter"
	"github.com/ksasa/router/internal/codec"
	"github.com/ksasa/router/internal/evidence"
	"github.com/ksasa/router/internal/gate"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// #region config
// Config is the full router configuration.
type Config struct {
	Addr      string `yaml:"addr"`
	AuditDir  string `yaml:"audit_dir"`
	SeedDir   string `yaml:"seed_dir"`
	StaticDir string `yaml:"static_dir"`
	DBPath    string `yaml:"db"`

	// CodecAddr is the generation/embedding backend. Empty runs template-only
	// lesson plans and lexical retrieval.
	CodecAddr string       `yaml:"codec_addr"`
	Codec     codec.Config `yaml:"codec"`

	Evidence   evidence.Config          `yaml:"evidence"`
	Confidence adapter.ConfidencePolicy `yaml:"confidence"`
	Gate       gate.Config              `yaml:"gate"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Addr:       ":8080",
		AuditDir:   "audit",
		SeedDir:    "seed_data",
		StaticDir:  "static",
		DBPath:     "ksasa.db",
		Codec:      codec.DefaultConfig(),
		Evidence:   evidence.DefaultConfig(),
		Confidence: adapter.DefaultPolicy(),
		Gate:       gate.DefaultConfig(),
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// #endregion config

// #region load
// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
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

func (c *Config) applyEnv() error {
	c.Addr = envOr("K_SASA_ADDR", c.Addr)
	c.AuditDir = envOr("K_SASA_AUDIT_DIR", c.AuditDir)
	c.SeedDir = envOr("K_SASA_SEED_DIR", c.SeedDir)
	c.StaticDir = envOr("K_SASA_STATIC_DIR", c.StaticDir)
	c.DBPath = envOr("K_SASA_DB", c.DBPath)
	c.CodecAddr = envOr("CODEC_ADDR", c.CodecAddr)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)

	if v := os.Getenv("CODEC_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: CODEC_TIMEOUT %q: %v", ErrInvalid, v, err)
		}
		c.Codec.Timeout = d
	}
	if v := os.Getenv("K_SASA_TOP_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: K_SASA_TOP_K %q: %v", ErrInvalid, v, err)
		}
		c.Evidence.TopK = n
	}
	return nil
}

// #endregion load

// #region validate
// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr is empty", ErrInvalid)
	case c.AuditDir == "":
		return fmt.Errorf("%w: audit_dir is empty", ErrInvalid)
	case c.DBPath == "":
		return fmt.Errorf("%w: db is empty", ErrInvalid)
	case c.Evidence.SegmentSize <= 0:
		return fmt.Errorf("%w: evidence.segment_size must be positive", ErrInvalid)
	case c.Evidence.TopK <= 0:
		return fmt.Errorf("%w: evidence.top_k must be positive", ErrInvalid)
	case c.Confidence.Floor < 0 || c.Confidence.Ceiling > 1 || c.Confidence.Floor > c.Confidence.Ceiling:
		return fmt.Errorf("%w: confidence bounds [%v, %v] must satisfy 0 <= floor <= ceiling <= 1",
			ErrInvalid, c.Confidence.Floor, c.Confidence.Ceiling)
	case c.Codec.Timeout < 0:
		return fmt.Errorf("%w: codec.timeout is negative", ErrInvalid)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format %q (want text or json)", ErrInvalid, c.LogFormat)
	}
	return nil
}

// #endregion validate

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
