package config

import (
	"net/url"

	"github.com/skhoolar/skhoolar/internal/redact"
)

// MaskedCopy returns a copy safe to print: tokens, passwords, S3 secret
// keys and DSN passwords are masked.
func (c *Config) MaskedCopy() *Config {
	cp := *c
	cp.Gateway.Token = redact.Secret(c.Gateway.Token)
	cp.Tailscale.AuthKey = redact.Secret(c.Tailscale.AuthKey)
	cp.Vault.KeyStore = maskStore(c.Vault.KeyStore)
	cp.Vault.BlobStore = maskStore(c.Vault.BlobStore)
	if len(c.Telemetry.Headers) > 0 {
		cp.Telemetry.Headers = make(map[string]string, len(c.Telemetry.Headers))
		for k, v := range c.Telemetry.Headers {
			cp.Telemetry.Headers[k] = redact.Secret(v)
		}
	}
	return &cp
}

func maskStore(sc StoreConfig) StoreConfig {
	sc.Password = redact.Secret(sc.Password)
	sc.SecretKey = redact.Secret(sc.SecretKey)
	sc.DSN = maskDSN(sc.DSN)
	return sc
}

func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return redact.Credentials(dsn)
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
