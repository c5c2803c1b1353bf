package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksasa/router/internal/gate"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"K_SASA_ADDR", "K_SASA_AUDIT_DIR", "K_SASA_SEED_DIR", "K_SASA_STATIC_DIR",
		"K_SASA_DB", "CODEC_ADDR", "CODEC_TIMEOUT", "K_SASA_TOP_K", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 0.5, cfg.Confidence.Floor)
	assert.Equal(t, 0.9, cfg.Confidence.Ceiling)
	assert.Empty(t, cfg.CodecAddr)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "ksasa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
audit_dir: /var/log/ksasa
codec_addr: localhost:50051
codec:
  timeout: 5s
  rps: 2
evidence:
  top_k: 6
confidence:
  floor: 0.4
  ceiling: 0.8
gate:
  review: [submit_form_confirm, send_sms]
`), 0o644))

	t.Setenv("K_SASA_AUDIT_DIR", "/tmp/audit")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "/tmp/audit", cfg.AuditDir, "env overrides file")
	assert.Equal(t, "localhost:50051", cfg.CodecAddr)
	assert.Equal(t, 5*time.Second, cfg.Codec.Timeout)
	assert.Equal(t, 2.0, cfg.Codec.RPS)
	assert.Equal(t, 6, cfg.Evidence.TopK)
	assert.Equal(t, 400, cfg.Evidence.SegmentSize, "unset nested fields keep defaults")
	assert.Equal(t, 0.4, cfg.Confidence.Floor)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"submit_form_confirm", "send_sms"}, cfg.Gate.Review)
	assert.Equal(t, []string{gate.ActionFormPreview}, cfg.Gate.Preview)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CODEC_TIMEOUT", "soon")
	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalid)

	t.Setenv("CODEC_TIMEOUT", "")
	t.Setenv("K_SASA_TOP_K", "four")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty addr":        func(c *Config) { c.Addr = "" },
		"empty audit dir":   func(c *Config) { c.AuditDir = "" },
		"empty db":          func(c *Config) { c.DBPath = "" },
		"zero segment size": func(c *Config) { c.Evidence.SegmentSize = 0 },
		"zero top k":        func(c *Config) { c.Evidence.TopK = 0 },
		"floor above ceil":  func(c *Config) { c.Confidence.Floor = 0.95 },
		"ceiling above one": func(c *Config) { c.Confidence.Ceiling = 1.5 },
		"negative timeout":  func(c *Config) { c.Codec.Timeout = -time.Second },
		"unknown format":    func(c *Config) { c.LogFormat = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
	assert.NoError(t, Default().Validate())
}
