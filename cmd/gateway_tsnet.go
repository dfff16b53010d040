//go:build tsnet

package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"tailscale.com/tsnet"

	"github.com/skhoolar/skhoolar/internal/config"
)

// initTailscale serves the gateway handler on the tailnet as well as on the
// local listener. Only compiled with -tags tsnet. Node state lives under the
// vault data dir unless tailscale.state_dir says otherwise.
func initTailscale(_ context.Context, cfg *config.Config, handler http.Handler) func() {
	tc := cfg.Tailscale
	if tc.Hostname == "" {
		slog.Debug("Tailscale available but not configured (set SKHOOLAR_TSNET_HOSTNAME to enable)")
		return nil
	}
	if cfg.Gateway.Token == "" {
		slog.Warn("tailnet listener has no gateway token; any tailnet peer can use the gateway")
	}

	stateDir := tc.StateDir
	if stateDir == "" {
		stateDir = filepath.Join(cfg.Vault.DataDir, "tsnet")
	}
	srv := &tsnet.Server{
		Hostname:  tc.Hostname,
		AuthKey:   tc.AuthKey,
		Ephemeral: tc.Ephemeral,
		Dir:       stateDir,
		Logf:      func(string, ...any) {},
	}

	var (
		ln   net.Listener
		err  error
		addr = ":80"
	)
	if tc.EnableTLS {
		addr = ":443"
		ln, err = srv.ListenTLS("tcp", addr)
	} else {
		ln, err = srv.Listen("tcp", addr)
	}
	if err != nil {
		slog.Warn("Tailscale listener failed to start", "error", err)
		srv.Close()
		return nil
	}

	slog.Info("Tailscale listener started",
		"hostname", tc.Hostname,
		"addr", addr,
		"tls", tc.EnableTLS,
		"state_dir", stateDir,
	)

	httpSrv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("Tailscale HTTP server error", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
		srv.Close()
		slog.Info("Tailscale listener stopped")
	}
}
