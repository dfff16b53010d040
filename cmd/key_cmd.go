package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/skhoolar/skhoolar/internal/bootstrap"
	"github.com/skhoolar/skhoolar/internal/config"
	"github.com/skhoolar/skhoolar/internal/credentials"
	"github.com/skhoolar/skhoolar/internal/providers"
)

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the encrypted provider credential",
	}
	cmd.AddCommand(keySetCmd())
	cmd.AddCommand(keyShowCmd())
	cmd.AddCommand(keyStatusCmd())
	cmd.AddCommand(keyRemoveCmd())
	return cmd
}

// withVault loads config, opens the vault stores and closes them after fn.
func withVault(fn func(cfg *config.Config, v *bootstrap.Vault) error) error {
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}
	v, err := bootstrap.OpenVault(cfg.Vault)
	if err != nil {
		return err
	}
	defer v.Close()
	return fn(cfg, v)
}

type keySetOptions struct {
	provider     string
	apiKey       string
	endpoint     string
	model        string
	skipValidate bool
	yes          bool
}

func keySetCmd() *cobra.Command {
	var opts keySetOptions
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Validate a provider API key and store it encrypted",
		Long: `Validate a provider API key with the provider, then store it encrypted.

Missing values are prompted for interactively. Use --api-key - to read the
key from stdin instead of the command line.

Examples:
  skhoolar key set
  skhoolar key set --provider anthropic --api-key - < key.txt
  skhoolar key set --provider custom --endpoint http://localhost:11434/v1 --api-key sk-local`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeySet(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.provider, "provider", "", "provider: openai, anthropic, gemini or custom")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", `API key ("-" reads stdin)`)
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "OpenAI-compatible base URL (custom provider only)")
	cmd.Flags().StringVar(&opts.model, "model", "", "default model for this credential")
	cmd.Flags().BoolVar(&opts.skipValidate, "skip-validate", false, "store without checking the key with the provider")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "replace an existing credential without asking")
	return cmd
}

func interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

func runKeySet(ctx context.Context, in io.Reader, out io.Writer, opts keySetOptions) error {
	if err := completeKeySet(in, &opts); err != nil {
		return err
	}

	p, err := providers.Parse(opts.provider)
	if err != nil {
		return err
	}
	rec := credentials.Record{Provider: p, Secret: opts.apiKey, Endpoint: opts.endpoint, Model: opts.model}
	if err := rec.Validate(); err != nil {
		return err
	}

	return withVault(func(cfg *config.Config, v *bootstrap.Vault) error {
		if interactive() && !opts.yes {
			if existing, err := v.Credentials.Load(ctx); err == nil {
				ok, err := promptConfirm(fmt.Sprintf("Replace the stored %s credential (%s)?", existing.Provider.DisplayName(), existing.MaskedSecret()), true)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Kept the existing credential.")
					return nil
				}
			}
		}
		if !opts.skipValidate {
			fmt.Fprintf(out, "Validating %s key...\n", p.DisplayName())
			if err := validateRecord(ctx, cfg, rec); err != nil {
				return err
			}
		}
		if err := v.Credentials.Save(ctx, rec); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s credential saved (%s)\n", okStyle.Render("✓"), p.DisplayName(), rec.MaskedSecret())
		return nil
	})
}

// completeKeySet fills missing options from stdin or interactive prompts.
func completeKeySet(in io.Reader, opts *keySetOptions) error {
	if opts.apiKey == "-" {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read API key: %w", err)
		}
		opts.apiKey = strings.TrimSpace(line)
	}

	needPrompt := opts.provider == "" || opts.apiKey == ""
	if !needPrompt {
		return nil
	}
	if !interactive() {
		return errors.New("--provider and --api-key are required when stdin is not a terminal")
	}

	if opts.provider == "" {
		p, err := promptProvider()
		if err != nil {
			return err
		}
		opts.provider = string(p)
	}
	p, err := providers.Parse(opts.provider)
	if err != nil {
		return err
	}
	if p.RequiresEndpoint() && opts.endpoint == "" {
		if opts.endpoint, err = promptEndpoint(); err != nil {
			return err
		}
	}
	if opts.apiKey == "" {
		if opts.apiKey, err = promptAPIKey(p); err != nil {
			return err
		}
	}
	return nil
}

// validateRecord checks the credential with its provider.
func validateRecord(ctx context.Context, cfg *config.Config, rec credentials.Record) error {
	client, err := providers.New(rec.Credential(), bootstrap.ProviderSettings(cfg.Providers))
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Providers.TimeoutSec)*time.Second)
	defer cancel()

	err = client.Validate(ctx)
	var ue *providers.UpstreamError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ue):
		msg := ue.Message
		if msg == "" {
			msg = "Invalid API key"
		}
		return fmt.Errorf("%s rejected the key (status %d): %s", rec.Provider.DisplayName(), ue.Status, msg)
	default:
		return fmt.Errorf("could not validate the key: %s (use --skip-validate to store it anyway)", providers.SafeMessage(err))
	}
}

func keyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored credential with the key masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(func(_ *config.Config, v *bootstrap.Vault) error {
				rec, err := v.Credentials.Load(cmd.Context())
				if errors.Is(err, credentials.ErrNotConfigured) {
					fmt.Fprintln(cmd.OutOrStdout(), "No credential configured. Run: skhoolar key set")
					return nil
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printField(out, "Provider", rec.Provider.DisplayName())
				printField(out, "API key", rec.MaskedSecret())
				if rec.Endpoint != "" {
					printField(out, "Endpoint", rec.Endpoint)
				}
				if rec.Model != "" {
					printField(out, "Model", rec.Model)
				}
				return nil
			})
		},
	}
}

func keyStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the vault state and key fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(func(cfg *config.Config, v *bootstrap.Vault) error {
				ctx := cmd.Context()
				state, err := v.Credentials.State(ctx)
				if err != nil {
					return err
				}
				fp, err := v.Vault.Fingerprint(ctx)
				if err != nil {
					return err
				}
				if fp == "" {
					fp = "(none)"
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, titleStyle.Render("skhoolar vault"))
				printField(out, "State", stateStyle(state).Render(state.String()))
				printField(out, "Key", fp)
				printField(out, "Key store", cfg.Vault.KeyStore.Backend)
				printField(out, "Blob store", cfg.Vault.BlobStore.Backend)
				if state == credentials.Corrupted {
					fmt.Fprintln(out, warnStyle.Render("  The stored credential cannot be decrypted. Run: skhoolar key remove && skhoolar key set"))
				}
				return nil
			})
		},
	}
}

func keyRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove",
		Aliases: []string{"rm", "clear"},
		Short:   "Delete the stored credential (the vault key is kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(func(_ *config.Config, v *bootstrap.Vault) error {
				if err := v.Credentials.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Credential removed.")
				return nil
			})
		},
	}
}
