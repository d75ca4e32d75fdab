package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskscope/taskscope/internal/app/display"
)

type DisplayCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID string
	format string
}

// NewDisplayCommand returns the display command.
func NewDisplayCommand(rootCmd *RootCommand, app *kingpin.Application) *DisplayCommand {
	c := &DisplayCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("display", "Show the display phase of the latest status of a task.")
	c.Cmd.Arg("task-id", "Task ID.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c DisplayCommand) Name() string { return c.Cmd.FullCommand() }

func (c DisplayCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.OpenRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := display.NewService(display.ServiceConfig{
		Repository: repo,
		Deriver:    c.rootCmd.Deriver(),
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	res, err := svc.Run(ctx, display.Request{TaskID: c.taskID})
	if err != nil {
		return fmt.Errorf("could not get task display: %w", err)
	}

	if err := c.rootCmd.Printer(c.format).PrintDisplay(res.Snapshot, res.Display); err != nil {
		return fmt.Errorf("could not print display: %w", err)
	}

	return nil
}
