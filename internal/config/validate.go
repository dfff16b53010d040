package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/skhoolar/skhoolar/internal/providers"
)

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		add("gateway.port %d out of range", c.Gateway.Port)
	}
	if c.Gateway.RateLimitRPM < 0 {
		add("gateway.rate_limit_rpm must not be negative")
	}

	if c.Providers.TimeoutSec <= 0 {
		add("providers.timeout_sec must be positive")
	}
	if c.Providers.MaxTokens < 0 {
		add("providers.max_tokens must not be negative")
	}
	if c.Providers.Temperature < 0 || c.Providers.Temperature > 2 {
		add("providers.temperature %.2f outside [0, 2]", c.Providers.Temperature)
	}
	for name, base := range c.Providers.BaseURLs {
		if _, err := providers.Parse(name); err != nil {
			add("providers.base_urls: %v", err)
		}
		if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
			add("providers.base_urls.%s: %q is not an absolute URL", name, base)
		}
	}
	for name := range c.Providers.Models {
		if _, err := providers.Parse(name); err != nil {
			add("providers.default_models: %v", err)
		}
	}

	errs = append(errs, validateStore("vault.key_store", c.Vault.KeyStore)...)
	errs = append(errs, validateStore("vault.blob_store", c.Vault.BlobStore)...)

	switch NormalizeLevel(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level %q must be debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		add("log.format %q must be text or json", c.Log.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			add("telemetry.endpoint is required when telemetry is enabled")
		}
		switch c.Telemetry.Protocol {
		case "", "grpc", "http":
		default:
			add("telemetry.protocol %q must be grpc or http", c.Telemetry.Protocol)
		}
	}

	return errors.Join(errs...)
}

func validateStore(field string, sc StoreConfig) []error {
	var errs []error
	switch NormalizeBackend(sc.Backend) {
	case "keyring":
	case "sqlite", "file":
		if sc.Path == "" {
			errs = append(errs, fmt.Errorf("%s.path is required for the %s backend", field, sc.Backend))
		}
	case "postgres":
		if sc.DSN == "" {
			errs = append(errs, fmt.Errorf("%s.dsn is required for the postgres backend", field))
		}
	case "redis":
		if sc.Addr == "" {
			errs = append(errs, fmt.Errorf("%s.addr is required for the redis backend", field))
		}
	case "s3":
		if sc.Bucket == "" {
			errs = append(errs, fmt.Errorf("%s.bucket is required for the s3 backend", field))
		}
		if sc.AccessKey != "" && sc.SecretKey == "" {
			errs = append(errs, fmt.Errorf("%s.secret_key is required with access_key", field))
		}
	case "":
		errs = append(errs, fmt.Errorf("%s.backend is required", field))
	default:
		errs = append(errs, fmt.Errorf("%s.backend %q must be one of keyring, sqlite, file, postgres, redis, s3", field, sc.Backend))
	}
	return errs
}
