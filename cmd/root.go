// Package cmd implements the skhoolar command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/skhoolar/skhoolar/internal/config"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "skhoolar",
		Short: "Science Safari companion: encrypted key vault and LLM gateway",
		Long: `skhoolar keeps one LLM provider credential encrypted on this machine and
serves the chat, key validation and model listing endpoints used by the
knowledge galaxy.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $SKHOOLAR_CONFIG or "+config.DefaultPath+")")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(serveCmd())
	root.AddCommand(keyCmd())
	root.AddCommand(modelsCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	return root
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// resolveConfigPath returns --config, then $SKHOOLAR_CONFIG, then the default.
func resolveConfigPath() string {
	if cfgFile != "" {
		return config.ExpandHome(cfgFile)
	}
	if v := os.Getenv("SKHOOLAR_CONFIG"); v != "" {
		return config.ExpandHome(v)
	}
	return config.ExpandHome(config.DefaultPath)
}

// loadConfig loads the config and installs the logger it describes.
func loadConfig() (*config.Config, *slog.LevelVar, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	level := setupLogging(os.Stderr, cfg.Log)
	return cfg, level, nil
}

// setupLogging installs the default slog logger. The returned LevelVar lets
// config reloads change the level in place.
// loadCLIConfig is loadConfig for one-shot commands: info logs are hidden
// unless --verbose.
func loadCLIConfig() (*config.Config, error) {
	cfg, level, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !verbose && level.Level() < slog.LevelWarn {
		level.Set(slog.LevelWarn)
	}
	return cfg, nil
}

func setupLogging(w io.Writer, lc config.LogConfig) *slog.LevelVar {
	level := new(slog.LevelVar)
	level.Set(parseLevel(lc.Level))

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if lc.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
	return level
}

func parseLevel(s string) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch config.NormalizeLevel(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
