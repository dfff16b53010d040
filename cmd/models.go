package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/skhoolar/skhoolar/internal/bootstrap"
	"github.com/skhoolar/skhoolar/internal/config"
	"github.com/skhoolar/skhoolar/internal/credentials"
	"github.com/skhoolar/skhoolar/internal/providers"
	"github.com/skhoolar/skhoolar/pkg/protocol"
)

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models available to the stored credential",
	}
	cmd.AddCommand(modelsListCmd())
	return cmd
}

func modelsListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List models the stored credential can use",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(func(cfg *config.Config, v *bootstrap.Vault) error {
				rec, err := v.Credentials.Load(cmd.Context())
				if errors.Is(err, credentials.ErrNotConfigured) {
					return errors.New("no credential configured; run: skhoolar key set")
				}
				if err != nil {
					return err
				}

				models, err := listModels(cmd.Context(), cfg, *rec)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					data, _ := json.MarshalIndent(protocol.ModelsResponse{Success: true, Models: models, Count: len(models)}, "", "  ")
					fmt.Fprintln(out, string(data))
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "MODEL\tNAME\tOWNER\n")
				for _, m := range models {
					name := runewidth.Truncate(m.DisplayName, 40, "…")
					fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, name, m.OwnedBy)
				}
				tw.Flush()
				fmt.Fprintf(out, "\n%d models from %s\n", len(models), rec.Provider.DisplayName())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func listModels(ctx context.Context, cfg *config.Config, rec credentials.Record) ([]protocol.Model, error) {
	client, err := providers.New(rec.Credential(), bootstrap.ProviderSettings(cfg.Providers))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Providers.TimeoutSec)*time.Second)
	defer cancel()

	models, err := client.ListModels(ctx)
	if err != nil {
		var ue *providers.UpstreamError
		if errors.As(err, &ue) && ue.Message != "" {
			return nil, fmt.Errorf("%s: %s", rec.Provider.DisplayName(), ue.Message)
		}
		return nil, errors.New(providers.SafeMessage(err))
	}
	return models, nil
}
