package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	appsanitize "github.com/taskscope/taskscope/internal/app/sanitize"
)

type SanitizeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file string
}

// NewSanitizeCommand returns the sanitize command.
func NewSanitizeCommand(rootCmd *RootCommand, app *kingpin.Application) *SanitizeCommand {
	c := &SanitizeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("sanitize", "Mask the sensitive data of a JSON or YAML debug payload.")
	c.Cmd.Arg("file", "Payload file, stdin if missing or '-'.").StringVar(&c.file)

	return c
}

func (c SanitizeCommand) Name() string { return c.Cmd.FullCommand() }

func (c SanitizeCommand) Run(ctx context.Context) error {
	data, err := c.rootCmd.ReadInput(c.file)
	if err != nil {
		return fmt.Errorf("could not read payload: %w", err)
	}

	sanitizer, err := c.rootCmd.Sanitizer(ctx)
	if err != nil {
		return err
	}

	svc, err := appsanitize.NewService(appsanitize.ServiceConfig{
		Sanitizer: sanitizer,
		Logger:    c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	res, err := svc.Run(ctx, appsanitize.Request{Data: data})
	if err != nil {
		return fmt.Errorf("could not sanitize payload: %w", err)
	}

	return c.rootCmd.Printer(formatTable).PrintMessage(res.Pretty)
}
