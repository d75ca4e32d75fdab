package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskscope/taskscope/internal/app/timeline"
)

type TimelineCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID string
	limit  int
	format string
}

// NewTimelineCommand returns the timeline command.
func NewTimelineCommand(rootCmd *RootCommand, app *kingpin.Application) *TimelineCommand {
	c := &TimelineCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("timeline", "Show the phase timeline of a task from its recorded snapshots.")
	c.Cmd.Arg("task-id", "Task ID.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("limit", "Number of most recent stages to show, negative shows all.").Default("8").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c TimelineCommand) Name() string { return c.Cmd.FullCommand() }

func (c TimelineCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.OpenRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc, err := timeline.NewService(timeline.ServiceConfig{
		Repository: repo,
		Deriver:    c.rootCmd.Deriver(),
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	res, err := svc.Run(ctx, timeline.Request{TaskID: c.taskID, Limit: c.limit})
	if err != nil {
		return fmt.Errorf("could not get task timeline: %w", err)
	}

	if err := c.rootCmd.Printer(c.format).PrintTimeline(res.State, res.Entries); err != nil {
		return fmt.Errorf("could not print timeline: %w", err)
	}

	return nil
}
