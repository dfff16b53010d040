// Package config loads the skhoolar configuration file.
//
// The file is JSON5 (default ~/.skhoolar/config.json5) or YAML when the
// path ends in .yaml/.yml. A missing file yields Default(). SKHOOLAR_*
// environment variables override file values.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither --config nor SKHOOLAR_CONFIG is set.
const DefaultPath = "~/.skhoolar/config.json5"

// Config is the root configuration.
type Config struct {
	Gateway     GatewayConfig     `json:"gateway" yaml:"gateway"`
	Providers   ProvidersConfig   `json:"providers" yaml:"providers"`
	Vault       VaultConfig       `json:"vault" yaml:"vault"`
	ModelsCache ModelsCacheConfig `json:"models_cache" yaml:"models_cache"`
	Log         LogConfig         `json:"log" yaml:"log"`
	Telemetry   TelemetryConfig   `json:"telemetry" yaml:"telemetry"`
	Tailscale   TailscaleConfig   `json:"tailscale" yaml:"tailscale"`
}

// GatewayConfig configures `skhoolar serve`.
type GatewayConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`

	// Token, when set, must be presented as "Authorization: Bearer <token>".
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	// RateLimitRPM is requests per minute per client. 0 disables limiting.
	RateLimitRPM int `json:"rate_limit_rpm" yaml:"rate_limit_rpm"`
	Burst        int `json:"burst" yaml:"burst"`

	// AllowedOrigins restricts WebSocket and CORS origins. Empty allows any.
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// ProvidersConfig holds operator-level provider settings. Credentials are
// never read from here; they come from requests or the vault.
type ProvidersConfig struct {
	TimeoutSec  int               `json:"timeout_sec" yaml:"timeout_sec"`
	MaxTokens   int               `json:"max_tokens" yaml:"max_tokens"`
	Temperature float64           `json:"temperature" yaml:"temperature"`
	BaseURLs    map[string]string `json:"base_urls,omitempty" yaml:"base_urls,omitempty"`
	Models      map[string]string `json:"default_models,omitempty" yaml:"default_models,omitempty"`
}

// VaultConfig places the key store and the blob store.
type VaultConfig struct {
	DataDir   string      `json:"data_dir" yaml:"data_dir"`
	KeyStore  StoreConfig `json:"key_store" yaml:"key_store"`
	BlobStore StoreConfig `json:"blob_store" yaml:"blob_store"`
}

// StoreConfig selects and addresses one durable store.
type StoreConfig struct {
	Backend  string `json:"backend" yaml:"backend"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	DSN      string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Service  string `json:"service,omitempty" yaml:"service,omitempty"`

	// S3-compatible object storage.
	Bucket    string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
}

type ModelsCacheConfig struct {
	Size   int `json:"size" yaml:"size"`
	TTLSec int `json:"ttl_sec" yaml:"ttl_sec"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text, json
}

// TelemetryConfig enables OTLP trace export (binaries built with -tags otel).
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty" yaml:"protocol,omitempty"` // grpc, http
	Insecure    bool              `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// TailscaleConfig adds a tailnet listener (binaries built with -tags tsnet).
type TailscaleConfig struct {
	Hostname  string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	AuthKey   string `json:"auth_key,omitempty" yaml:"auth_key,omitempty"`
	StateDir  string `json:"state_dir,omitempty" yaml:"state_dir,omitempty"`
	Ephemeral bool   `json:"ephemeral,omitempty" yaml:"ephemeral,omitempty"`
	EnableTLS bool   `json:"enable_tls,omitempty" yaml:"enable_tls,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:         "127.0.0.1",
			Port:         8787,
			RateLimitRPM: 60,
			Burst:        10,
		},
		Providers: ProvidersConfig{
			TimeoutSec:  30,
			MaxTokens:   500,
			Temperature: 0.7,
		},
		Vault: VaultConfig{
			DataDir:   "~/.skhoolar",
			KeyStore:  StoreConfig{Backend: DefaultKeyBackend()},
			BlobStore: StoreConfig{Backend: "sqlite"},
		},
		ModelsCache: ModelsCacheConfig{Size: 128, TTLSec: 600},
		Log:         LogConfig{Level: "info", Format: "text"},
		Telemetry:   TelemetryConfig{Protocol: "grpc", ServiceName: "skhoolar"},
	}
}

// DefaultKeyBackend is the OS keychain where one is always available, and
// an embedded SQLite database elsewhere (headless Linux often has no
// Secret Service running).
func DefaultKeyBackend() string {
	switch runtime.GOOS {
	case "darwin", "windows":
		return "keyring"
	}
	return "sqlite"
}

// Load reads path over Default(), applies environment overrides, fills in
// derived paths and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ExpandHome(path))
	switch {
	case err == nil:
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.ResolvePaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json5.Unmarshal(data, cfg)
	}
}

// ResolvePaths normalizes backend names and derives store paths under DataDir.
func (c *Config) ResolvePaths() {
	c.Vault.DataDir = ExpandHome(c.Vault.DataDir)
	resolve := func(sc *StoreConfig, sqliteName, dirName string) {
		sc.Backend = NormalizeBackend(sc.Backend)
		switch sc.Backend {
		case "sqlite":
			if sc.Path == "" {
				sc.Path = filepath.Join(c.Vault.DataDir, sqliteName)
			}
		case "file":
			if sc.Path == "" {
				sc.Path = filepath.Join(c.Vault.DataDir, dirName)
			}
		}
		sc.Path = ExpandHome(sc.Path)
	}
	resolve(&c.Vault.KeyStore, "keys.db", "keys")
	resolve(&c.Vault.BlobStore, "credentials.db", "credentials")
	c.Tailscale.StateDir = ExpandHome(c.Tailscale.StateDir)
}

// Hash identifies the effective configuration, for change detection.
func (c *Config) Hash() string {
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
