package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/skhoolar/skhoolar/internal/bootstrap"
	"github.com/skhoolar/skhoolar/internal/chat"
	"github.com/skhoolar/skhoolar/internal/config"
	"github.com/skhoolar/skhoolar/internal/credentials"
	"github.com/skhoolar/skhoolar/internal/providers"
)

func chatCmd() *cobra.Command {
	var node string
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the guide a question using the stored credential",
		Long: `Ask the guide a question. With no stored credential the built-in guide
replies are used.

Without a message an interactive session starts. In it, /node TITLE selects
a topic, /nodes lists them, /reset clears the conversation and /quit exits.

Examples:
  skhoolar chat "Who was Rosalind Franklin?" --node "Structure of DNA"
  skhoolar chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withVault(func(cfg *config.Config, v *bootstrap.Vault) error {
				cred, err := storedCredential(cmd.Context(), v)
				if err != nil {
					return err
				}

				sess := chat.NewSession()
				if node != "" {
					n, ok := chat.FindNode(node)
					if !ok {
						return fmt.Errorf("unknown node %q (see /nodes in interactive mode)", node)
					}
					sess.Select(n)
				}

				svc := chat.NewService(bootstrap.ProviderSettings(cfg.Providers))
				out := cmd.OutOrStdout()
				if len(args) > 0 {
					reply, err := sess.Ask(cmd.Context(), svc, cred, strings.Join(args, " "))
					if reply != "" {
						fmt.Fprintln(out, reply)
					}
					return chatError(err)
				}
				return chatREPL(cmd.Context(), cmd.InOrStdin(), out, svc, sess, cred)
			})
		},
	}
	cmd.Flags().StringVarP(&node, "node", "n", "", "topic to ask about (ID or title)")
	return cmd
}

// storedCredential loads the vault credential. No credential is not an error;
// the guide's canned replies are used instead.
func storedCredential(ctx context.Context, v *bootstrap.Vault) (*providers.Credential, error) {
	rec, err := v.Credentials.Load(ctx)
	switch {
	case errors.Is(err, credentials.ErrNotConfigured):
		return nil, nil
	case err != nil:
		return nil, err
	}
	cred := rec.Credential()
	return &cred, nil
}

// chatError keeps provider failures, already shown as the reply, from
// printing twice.
func chatError(err error) error {
	var ue *providers.UpstreamError
	if err == nil || errors.As(err, &ue) {
		return nil
	}
	if errors.Is(err, providers.ErrTransport) {
		return nil
	}
	return err
}

func chatREPL(ctx context.Context, in io.Reader, out io.Writer, svc *chat.Service, sess *chat.Session, cred *providers.Credential) error {
	if cred == nil {
		fmt.Fprintln(out, warnStyle.Render("No credential configured; using built-in guide replies."))
	} else {
		fmt.Fprintf(out, "Chatting with %s. /quit to exit.\n", cred.Provider.DisplayName())
	}

	scanner := bufio.NewScanner(in)
	for {
		prompt := "> "
		if n := sess.Node(); n != nil {
			prompt = n.Title + " > "
		}
		fmt.Fprint(out, titleStyle.Render(prompt))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/reset":
			sess.Reset()
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		case line == "/nodes":
			for _, n := range chat.Catalog() {
				fmt.Fprintf(out, "  %-22s %s, %s\n", n.Title, n.Category, n.Era)
			}
			continue
		case line == "/node" || strings.HasPrefix(line, "/node "):
			words, err := shellwords.Parse(line)
			if err != nil {
				fmt.Fprintf(out, "Cannot parse %q: %v\n", line, err)
				continue
			}
			ref := strings.Join(words[1:], " ")
			if ref == "" {
				sess.Select(nil)
				fmt.Fprintln(out, "No topic selected.")
				continue
			}
			n, ok := chat.FindNode(ref)
			if !ok {
				fmt.Fprintf(out, "Unknown topic %q. /nodes lists them.\n", ref)
				continue
			}
			sess.Select(n)
			continue
		}

		reply, err := sess.Ask(ctx, svc, cred, line)
		if err := chatError(err); err != nil {
			return err
		}
		fmt.Fprintln(out, reply)
	}
}
