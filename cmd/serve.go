package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skhoolar/skhoolar/internal/bootstrap"
	"github.com/skhoolar/skhoolar/internal/chat"
	"github.com/skhoolar/skhoolar/internal/config"
	skhttp "github.com/skhoolar/skhoolar/internal/http"
)

func serveCmd() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket gateway",
		Long: `Serve /api/chat, /api/validate-key, /api/test-models and /ws/chat.

The gateway is stateless: provider keys arrive with each request and are
never written to the vault. Rate limit, provider timeout and log level are
reloaded when the config file changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), host, port)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides gateway.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides gateway.port)")
	return cmd
}

func runServe(ctx context.Context, host string, port int) error {
	cfgPath := resolveConfigPath()
	cfg, level, err := loadConfig()
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Gateway.Host = host
	}
	if port != 0 {
		cfg.Gateway.Port = port
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if shutdownOTel := initOTelExporter(ctx, cfg); shutdownOTel != nil {
		defer shutdownOTel()
	}

	svc := chat.NewService(bootstrap.ProviderSettings(cfg.Providers))
	srv := skhttp.NewServer(skhttp.Options{
		Chat:           svc,
		Models:         bootstrap.ModelsCache(cfg.ModelsCache),
		Token:          cfg.Gateway.Token,
		RateLimitRPM:   cfg.Gateway.RateLimitRPM,
		Burst:          cfg.Gateway.Burst,
		AllowedOrigins: cfg.Gateway.AllowedOrigins,
		Version:        Version,
	})
	defer srv.Close()
	handler := srv.Handler()

	if watcher, err := config.NewWatcher(cfgPath, cfg); err != nil {
		slog.Warn("config hot reload disabled", "error", err)
	} else {
		watcher.OnChange(func(next *config.Config) {
			applyReload(cfg, next, srv, svc, level)
		})
		if err := watcher.Start(); err != nil {
			slog.Warn("config hot reload disabled", "error", err)
		}
		defer watcher.Stop()
	}

	if stopTS := initTailscale(ctx, cfg, handler); stopTS != nil {
		defer stopTS()
	}

	addr := net.JoinHostPort(cfg.Gateway.Host, strconv.Itoa(cfg.Gateway.Port))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway listening",
			"addr", addr,
			"auth", cfg.Gateway.Token != "",
			"rate_limit_rpm", cfg.Gateway.RateLimitRPM,
			"version", Version,
		)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("gateway shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// applyReload pushes the hot-reloadable parts of next into the running
// gateway. Listener, token, origin and vault changes need a restart.
func applyReload(running, next *config.Config, srv *skhttp.Server, svc *chat.Service, level *slog.LevelVar) {
	srv.SetRateLimit(next.Gateway.RateLimitRPM, next.Gateway.Burst)
	svc.SetSettings(bootstrap.ProviderSettings(next.Providers))
	level.Set(parseLevel(next.Log.Level))

	if next.Gateway.Host != running.Gateway.Host ||
		next.Gateway.Port != running.Gateway.Port ||
		next.Gateway.Token != running.Gateway.Token ||
		fmt.Sprint(next.Gateway.AllowedOrigins) != fmt.Sprint(running.Gateway.AllowedOrigins) {
		slog.Warn("gateway listener, token or origin changes take effect after restart")
	}
	slog.Info("gateway settings reloaded",
		"rate_limit_rpm", next.Gateway.RateLimitRPM,
		"provider_timeout_sec", next.Providers.TimeoutSec,
		"log_level", next.Log.Level,
	)
}
