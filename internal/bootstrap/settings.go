package bootstrap

import (
	"log/slog"
	"time"

	"github.com/skhoolar/skhoolar/internal/config"
	"github.com/skhoolar/skhoolar/internal/providers"
)

// ProviderSettings converts the providers section into client settings.
// Unknown provider names were already rejected by config.Validate; any
// that slip through are skipped.
func ProviderSettings(cfg config.ProvidersConfig) providers.Settings {
	s := providers.Settings{
		Timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
	if len(cfg.BaseURLs) > 0 {
		s.BaseURLs = make(map[providers.Provider]string, len(cfg.BaseURLs))
		for name, u := range cfg.BaseURLs {
			p, err := providers.Parse(name)
			if err != nil {
				slog.Warn("ignoring base URL for unknown provider", "provider", name)
				continue
			}
			s.BaseURLs[p] = u
		}
	}
	if len(cfg.Models) > 0 {
		s.Models = make(map[providers.Provider]string, len(cfg.Models))
		for name, m := range cfg.Models {
			p, err := providers.Parse(name)
			if err != nil {
				slog.Warn("ignoring default model for unknown provider", "provider", name)
				continue
			}
			s.Models[p] = m
		}
	}
	return s
}

// ModelsCache builds the model-list cache from the models_cache section.
func ModelsCache(cfg config.ModelsCacheConfig) *providers.CachedLister {
	return providers.NewCachedLister(cfg.Size, time.Duration(cfg.TTLSec)*time.Second)
}
