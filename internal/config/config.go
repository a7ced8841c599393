// Package config loads the simulator's runtime configuration from a YAML
// file with V2X_* environment variable overrides. All validation that can
// fail the process happens here, before any trust component is built.
package config

import (
	"crypto"
	"crypto/elliptic"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables recognised as overrides.
const (
	EnvCAPrivateKeyPath = "V2X_CA_PRIVATE_KEY"
	EnvCAPublicKeyPath  = "V2X_CA_PUBLIC_KEY"
	EnvStoragePath      = "V2X_STORAGE_PATH"
	EnvLogLevel         = "V2X_LOG_LEVEL"
	EnvLogFile          = "V2X_LOG_FILE"
	EnvMetricsAddr      = "V2X_METRICS_ADDR"
)

// DefaultPassphraseEnv is the environment variable consulted for the root
// key passphrase when the config file does not name another one.
const DefaultPassphraseEnv = "V2X_CA_PASSPHRASE"

// Duration wraps time.Duration so YAML values can be written as "10m".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// CA configures the certifying authority.
type CA struct {
	Name           string   `yaml:"name"`         // issuer common name
	Organization   string   `yaml:"organization"` // subject organization
	Validity       Duration `yaml:"validity"`
	Curve          string   `yaml:"curve"` // P-256, P-384 or P-521
	Hash           string   `yaml:"hash"`  // SHA-256, SHA-384 or SHA-512
	PrivateKeyPath string   `yaml:"private_key_path"`
	PublicKeyPath  string   `yaml:"public_key_path"`
	PassphraseEnv  string   `yaml:"passphrase_env"`
}

// Credentials configures per-vehicle credential pools.
type Credentials struct {
	PoolSize       int `yaml:"pool_size"`       // certificates per batch
	RotationPeriod int `yaml:"rotation_period"` // messages per credential
}

// Channels holds the proximity thresholds consumed from the geometry layer.
// They are configuration passthrough only; no distance math happens here.
type Channels struct {
	BSMDistance float64 `yaml:"bsm_distance"`
	PSMDistance float64 `yaml:"psm_distance"`
	V2IRange    float64 `yaml:"v2i_range"`
	SafeTTC     float64 `yaml:"safe_ttc"`
}

// Storage configures audit persistence. An empty path selects the
// in-memory store.
type Storage struct {
	Path string `yaml:"path"`
}

// Log configures the zap logger.
type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // empty logs to stderr
}

// Metrics configures the optional Prometheus listener.
type Metrics struct {
	Addr string `yaml:"addr"` // empty disables the listener
}

// Config is the full runtime configuration.
type Config struct {
	CA          CA          `yaml:"ca"`
	Credentials Credentials `yaml:"credentials"`
	Channels    Channels    `yaml:"channels"`
	Storage     Storage     `yaml:"storage"`
	Log         Log         `yaml:"log"`
	Metrics     Metrics     `yaml:"metrics"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		CA: CA{
			Name:           "V2X-Root-CA",
			Organization:   "V2X-CP",
			Validity:       Duration(10 * time.Minute),
			Curve:          "P-256",
			Hash:           "SHA-256",
			PrivateKeyPath: "keys/ca_pvt_key.pem",
			PublicKeyPath:  "keys/ca_pub_key.pem",
			PassphraseEnv:  DefaultPassphraseEnv,
		},
		Credentials: Credentials{
			PoolSize:       100,
			RotationPeriod: 10,
		},
		Channels: Channels{
			BSMDistance: 15,
			PSMDistance: 5,
			V2IRange:    150,
			SafeTTC:     3,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path (optional), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvCAPrivateKeyPath)); v != "" {
		cfg.CA.PrivateKeyPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCAPublicKeyPath)); v != "" {
		cfg.CA.PublicKeyPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoragePath)); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Log.File = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMetricsAddr)); v != "" {
		cfg.Metrics.Addr = v
	}
}

// Validate rejects configurations that must fail at startup rather than
// at first use: degenerate validity windows, unknown algorithm names and
// rotation parameters the state machine cannot honour.
func (c *Config) Validate() error {
	if c.CA.Validity.Std() <= 0 {
		return fmt.Errorf("ca.validity must be positive, got %s", c.CA.Validity.Std())
	}
	if _, err := ParseCurve(c.CA.Curve); err != nil {
		return err
	}
	if _, err := ParseHash(c.CA.Hash); err != nil {
		return err
	}
	if c.CA.Name == "" {
		return fmt.Errorf("ca.name must not be empty")
	}
	if c.Credentials.PoolSize < 1 {
		return fmt.Errorf("credentials.pool_size must be at least 1, got %d", c.Credentials.PoolSize)
	}
	if c.Credentials.RotationPeriod < 2 {
		return fmt.Errorf("credentials.rotation_period must be at least 2, got %d", c.Credentials.RotationPeriod)
	}
	if c.CA.PassphraseEnv == "" {
		c.CA.PassphraseEnv = DefaultPassphraseEnv
	}
	return nil
}

// Passphrase resolves the root key passphrase from the configured
// environment variable.
func (c *CA) Passphrase() (string, error) {
	pass := os.Getenv(c.PassphraseEnv)
	if pass == "" {
		return "", fmt.Errorf("root key passphrase not set: %s is empty", c.PassphraseEnv)
	}
	return pass, nil
}

// ParseCurve maps a curve name to its elliptic.Curve.
func ParseCurve(name string) (elliptic.Curve, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "P-256", "P256":
		return elliptic.P256(), nil
	case "P-384", "P384":
		return elliptic.P384(), nil
	case "P-521", "P521":
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("unsupported curve: %s", name)
	}
}

// ParseHash maps a hash name to its crypto.Hash.
func ParseHash(name string) (crypto.Hash, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "SHA-256", "SHA256":
		return crypto.SHA256, nil
	case "SHA-384", "SHA384":
		return crypto.SHA384, nil
	case "SHA-512", "SHA512":
		return crypto.SHA512, nil
	default:
		return crypto.Hash(0), fmt.Errorf("unsupported hash: %s", name)
	}
}

// SignatureAlgorithm returns the X.509 signature algorithm for an ECDSA
// signature over the given hash.
func SignatureAlgorithm(h crypto.Hash) x509.SignatureAlgorithm {
	switch h {
	case crypto.SHA384:
		return x509.ECDSAWithSHA384
	case crypto.SHA512:
		return x509.ECDSAWithSHA512
	default:
		return x509.ECDSAWithSHA256
	}
}
