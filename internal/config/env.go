package config

import (
	"log/slog"
	"strconv"
	"strings"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides file values with SKHOOLAR_* variables.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				slog.Warn("ignoring non-numeric environment override", "var", key)
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				slog.Warn("ignoring non-boolean environment override", "var", key)
				return
			}
			*dst = b
		}
	}

	str("SKHOOLAR_HOST", &c.Gateway.Host)
	num("SKHOOLAR_PORT", &c.Gateway.Port)
	str("SKHOOLAR_GATEWAY_TOKEN", &c.Gateway.Token)
	num("SKHOOLAR_RATE_LIMIT_RPM", &c.Gateway.RateLimitRPM)
	if v, ok := lookup("SKHOOLAR_ALLOWED_ORIGINS"); ok && v != "" {
		c.Gateway.AllowedOrigins = splitList(v)
	}

	num("SKHOOLAR_PROVIDER_TIMEOUT_SEC", &c.Providers.TimeoutSec)

	str("SKHOOLAR_DATA_DIR", &c.Vault.DataDir)
	str("SKHOOLAR_KEY_STORE", &c.Vault.KeyStore.Backend)
	str("SKHOOLAR_BLOB_STORE", &c.Vault.BlobStore.Backend)
	// One DSN / Redis address serves whichever stores select that backend.
	if v, ok := lookup("SKHOOLAR_POSTGRES_DSN"); ok && v != "" {
		c.Vault.KeyStore.DSN, c.Vault.BlobStore.DSN = v, v
	}
	if v, ok := lookup("SKHOOLAR_REDIS_ADDR"); ok && v != "" {
		c.Vault.KeyStore.Addr, c.Vault.BlobStore.Addr = v, v
	}
	if v, ok := lookup("SKHOOLAR_REDIS_PASSWORD"); ok && v != "" {
		c.Vault.KeyStore.Password, c.Vault.BlobStore.Password = v, v
	}
	if v, ok := lookup("SKHOOLAR_S3_BUCKET"); ok && v != "" {
		c.Vault.KeyStore.Bucket, c.Vault.BlobStore.Bucket = v, v
	}

	str("SKHOOLAR_LOG_LEVEL", &c.Log.Level)
	str("SKHOOLAR_LOG_FORMAT", &c.Log.Format)

	flag("SKHOOLAR_OTEL_ENABLED", &c.Telemetry.Enabled)
	str("SKHOOLAR_OTEL_ENDPOINT", &c.Telemetry.Endpoint)
	str("SKHOOLAR_OTEL_PROTOCOL", &c.Telemetry.Protocol)

	str("SKHOOLAR_TSNET_HOSTNAME", &c.Tailscale.Hostname)
	str("SKHOOLAR_TSNET_AUTH_KEY", &c.Tailscale.AuthKey)
	str("SKHOOLAR_TSNET_DIR", &c.Tailscale.StateDir)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
