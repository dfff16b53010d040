package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/skhoolar/skhoolar/internal/bootstrap"
	"github.com/skhoolar/skhoolar/internal/config"
	"github.com/skhoolar/skhoolar/internal/credentials"
	"github.com/skhoolar/skhoolar/internal/store/keyring"
)

func doctorCmd() *cobra.Command {
	var online bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, vault stores and the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			runDoctor(cmd.Context(), cmd.OutOrStdout(), online)
			return nil
		},
	}
	cmd.Flags().BoolVar(&online, "online", false, "also validate the stored key with its provider")
	return cmd
}

func runDoctor(ctx context.Context, out io.Writer, online bool) {
	fmt.Fprintln(out, titleStyle.Render("skhoolar doctor"))
	printField(out, "Version", Version)
	printField(out, "OS", runtime.GOOS+"/"+runtime.GOARCH)
	printField(out, "Go", runtime.Version())
	fmt.Fprintln(out)

	// Config
	cfgPath := resolveConfigPath()
	if _, err := os.Stat(cfgPath); err != nil {
		printField(out, "Config", cfgPath+" "+warnStyle.Render("(not found, using defaults)"))
	} else {
		printField(out, "Config", cfgPath+" "+okStyle.Render("(OK)"))
	}

	cfg, err := loadCLIConfig()
	if err != nil {
		printField(out, "Config", errStyle.Render(err.Error()))
		return
	}
	printField(out, "Data dir", cfg.Vault.DataDir)
	printField(out, "Gateway", fmt.Sprintf("%s:%d (auth %s)", cfg.Gateway.Host, cfg.Gateway.Port, onOff(cfg.Gateway.Token != "")))
	fmt.Fprintln(out)

	// Stores
	masked := cfg.MaskedCopy()
	printField(out, "Key store", describeStore(masked.Vault.KeyStore))
	printField(out, "Blob store", describeStore(masked.Vault.BlobStore))
	if cfg.Vault.KeyStore == cfg.Vault.BlobStore {
		printField(out, "Warning", warnStyle.Render("key and blob stores point at the same location"))
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	v, err := bootstrap.OpenVault(cfg.Vault)
	if err != nil {
		printField(out, "Vault", errStyle.Render(err.Error()))
		return
	}
	defer v.Close()

	state, err := v.Credentials.State(ctx)
	if err != nil {
		printField(out, "Vault", errStyle.Render(err.Error()))
		return
	}
	printField(out, "State", stateStyle(state).Render(state.String()))

	if fp, err := v.Vault.Fingerprint(ctx); err == nil && fp != "" {
		printField(out, "Key", fp)
	}
	if state != credentials.Configured {
		return
	}

	rec, err := v.Credentials.Load(ctx)
	if err != nil {
		printField(out, "Credential", errStyle.Render(err.Error()))
		return
	}
	printField(out, "Credential", rec.String())

	if online {
		if err := validateRecord(ctx, cfg, *rec); err != nil {
			printField(out, "Provider", errStyle.Render(err.Error()))
		} else {
			printField(out, "Provider", okStyle.Render("key accepted"))
		}
	}
}

func describeStore(sc config.StoreConfig) string {
	switch sc.Backend {
	case "sqlite", "file":
		return sc.Backend + " " + sc.Path
	case "postgres":
		return sc.Backend + " " + sc.DSN
	case "redis":
		return fmt.Sprintf("%s %s/%d", sc.Backend, sc.Addr, sc.DB)
	case "s3":
		if sc.Endpoint != "" {
			return fmt.Sprintf("%s %s/%s (%s)", sc.Backend, sc.Bucket, sc.Prefix, sc.Endpoint)
		}
		return fmt.Sprintf("%s %s/%s", sc.Backend, sc.Bucket, sc.Prefix)
	case "keyring":
		service := sc.Service
		if service == "" {
			service = keyring.DefaultService
		}
		return sc.Backend + " service=" + service + "-*"
	}
	return sc.Backend
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
