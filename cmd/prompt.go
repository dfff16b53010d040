package cmd

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/skhoolar/skhoolar/internal/providers"
)

// runForm runs fields as one huh form with the key hints shown.
func runForm(fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(true).Run()
}

// promptProvider asks which provider the credential belongs to.
func promptProvider() (providers.Provider, error) {
	all := providers.All()
	opts := make([]huh.Option[providers.Provider], len(all))
	for i, p := range all {
		opts[i] = huh.NewOption(p.DisplayName(), p)
	}
	opts[0] = opts[0].Selected(true)

	var p providers.Provider
	err := runForm(huh.NewSelect[providers.Provider]().
		Title("AI provider").
		Options(opts...).
		Value(&p))
	return p, err
}

// promptEndpoint asks for the base URL of an OpenAI-compatible server.
func promptEndpoint() (string, error) {
	var endpoint string
	err := runForm(huh.NewInput().
		Title("Endpoint").
		Description("OpenAI-compatible base URL, including the version path").
		Placeholder("http://localhost:11434/v1").
		Validate(func(s string) error { return providers.ValidateEndpoint(strings.TrimSpace(s)) }).
		Value(&endpoint))
	return strings.TrimSpace(endpoint), err
}

// promptAPIKey reads the key with echo off.
func promptAPIKey(p providers.Provider) (string, error) {
	var key string
	err := runForm(huh.NewInput().
		Title(p.DisplayName() + " API key").
		Description("Stored encrypted on this machine only").
		EchoMode(huh.EchoModePassword).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("API key is required")
			}
			return nil
		}).
		Value(&key))
	return strings.TrimSpace(key), err
}

// promptConfirm asks a yes/no question.
func promptConfirm(title string, defaultYes bool) (bool, error) {
	value := defaultYes
	err := runForm(huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&value))
	return value, err
}
