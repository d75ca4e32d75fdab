package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskscope/taskscope/internal/providerurl"
)

type ProviderURLCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	providerType string
	baseURL      string
}

// NewProviderURLCommand returns the provider-url command.
func NewProviderURLCommand(rootCmd *RootCommand, app *kingpin.Application) *ProviderURLCommand {
	c := &ProviderURLCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("provider-url", "Resolve the base URL used for a model provider.")
	c.Cmd.Arg("provider-type", "Provider type (openai, openai-responses, anthropic, gemini, cohere, jina...).").Required().StringVar(&c.providerType)
	c.Cmd.Arg("base-url", "Configured base URL, a trailing '#' disables the /v1 suffix.").StringVar(&c.baseURL)

	return c
}

func (c ProviderURLCommand) Name() string { return c.Cmd.FullCommand() }

func (c ProviderURLCommand) Run(ctx context.Context) error {
	u, ok := providerurl.ResolvedForDisplay(c.providerType, c.baseURL)
	if !ok {
		return fmt.Errorf("no base URL for provider %q", c.providerType)
	}

	return c.rootCmd.Printer(formatTable).PrintMessage(u)
}
