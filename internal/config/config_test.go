package config_test

import (
	"crypto"
	"crypto/elliptic"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/config"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "V2X-Root-CA", cfg.CA.Name)
	assert.Equal(t, "V2X-CP", cfg.CA.Organization)
	assert.Equal(t, 10*time.Minute, cfg.CA.Validity.Std())
	assert.Equal(t, 100, cfg.Credentials.PoolSize)
	assert.Equal(t, 10, cfg.Credentials.RotationPeriod)
	assert.Equal(t, 15.0, cfg.Channels.BSMDistance)
	assert.Equal(t, 5.0, cfg.Channels.PSMDistance)
	assert.Equal(t, 150.0, cfg.Channels.V2IRange)
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v2x.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ca:
  name: Test-Root
  validity: 30m
  curve: P-384
  hash: SHA-384
credentials:
  pool_size: 25
  rotation_period: 5
storage:
  path: /tmp/from-file.db
`), 0600))

	t.Setenv(config.EnvStoragePath, "/tmp/from-env.db")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Test-Root", cfg.CA.Name)
	assert.Equal(t, 30*time.Minute, cfg.CA.Validity.Std())
	assert.Equal(t, 25, cfg.Credentials.PoolSize)
	assert.Equal(t, "/tmp/from-env.db", cfg.Storage.Path, "environment wins over file")
	// Untouched sections keep defaults.
	assert.Equal(t, 15.0, cfg.Channels.BSMDistance)
}

func TestValidateRejectsDegenerateValues(t *testing.T) {
	for name, mutate := range map[string]func(*config.Config){
		"zero validity":     func(c *config.Config) { c.CA.Validity = 0 },
		"negative validity": func(c *config.Config) { c.CA.Validity = config.Duration(-time.Minute) },
		"unknown curve":     func(c *config.Config) { c.CA.Curve = "P-123" },
		"unknown hash":      func(c *config.Config) { c.CA.Hash = "MD5" },
		"empty name":        func(c *config.Config) { c.CA.Name = "" },
		"zero pool":         func(c *config.Config) { c.Credentials.PoolSize = 0 },
		"rotation below 2":  func(c *config.Config) { c.Credentials.RotationPeriod = 1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseCurveAndHash(t *testing.T) {
	curve, err := config.ParseCurve("P-521")
	require.NoError(t, err)
	assert.Equal(t, elliptic.P521(), curve)

	h, err := config.ParseHash("sha-512")
	require.NoError(t, err)
	assert.Equal(t, crypto.SHA512, h)

	_, err = config.ParseCurve("ed25519")
	assert.Error(t, err)
}

func TestPassphraseResolution(t *testing.T) {
	ca := config.Default().CA

	t.Setenv(config.DefaultPassphraseEnv, "")
	_, err := ca.Passphrase()
	assert.Error(t, err)

	t.Setenv(config.DefaultPassphraseEnv, "v2x_ca_pvt_key")
	pass, err := ca.Passphrase()
	require.NoError(t, err)
	assert.Equal(t, "v2x_ca_pvt_key", pass)
}
