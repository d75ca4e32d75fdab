package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskscope/taskscope/internal/app/watch"
	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/printer"
	"github.com/taskscope/taskscope/internal/source/docker"
	"github.com/taskscope/taskscope/internal/timeline"
)

const (
	sourceStore  = "store"
	sourceDocker = "docker"
)

type WatchCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID      string
	source      string
	containerID string
	interval    time.Duration
	format      string
}

// NewWatchCommand returns the watch command.
func NewWatchCommand(rootCmd *RootCommand, app *kingpin.Application) *WatchCommand {
	c := &WatchCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("watch", "Follow a task until it finishes, showing its phase changes.")
	c.Cmd.Arg("task-id", "Task ID.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("source", "Status source (store, docker).").Default(sourceStore).EnumVar(&c.source, sourceStore, sourceDocker)
	c.Cmd.Flag("container", "Executor container name or ID (docker source).").StringVar(&c.containerID)
	c.Cmd.Flag("interval", "Poll interval.").Default("2s").DurationVar(&c.interval)
	c.Cmd.Flag("format", "Output format of the final timeline (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c WatchCommand) Name() string { return c.Cmd.FullCommand() }

func (c WatchCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	var poller watch.Poller
	switch c.source {
	case sourceDocker:
		if c.containerID == "" {
			return fmt.Errorf("--container is required with the docker source")
		}
		src, err := docker.NewSource(docker.SourceConfig{Logger: logger})
		if err != nil {
			return fmt.Errorf("could not create docker source: %w", err)
		}
		poller = watch.NewContainerPoller(src, c.taskID, c.containerID)
	default:
		repo, err := c.rootCmd.OpenRepository(ctx)
		if err != nil {
			return err
		}
		defer repo.Close()
		poller = watch.NewRepositoryPoller(repo, c.taskID)
	}

	svc, err := watch.NewService(watch.ServiceConfig{
		Deriver:      c.rootCmd.Deriver(),
		PollInterval: c.interval,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	p := c.rootCmd.Printer(formatTable)
	var (
		lastStatus model.TaskStatus
		lastStages int
	)
	onUpdate := func(u watch.Update) {
		n := len(u.State.Timeline)
		if u.Snapshot.Status == lastStatus && n == lastStages {
			return
		}
		lastStatus, lastStages = u.Snapshot.Status, n

		stage := ""
		if n > 0 {
			stage = u.State.Timeline[n-1].Label
		}
		_ = p.PrintMessage(fmt.Sprintf("%s  %-10s %-16s %s",
			printer.FormatTimestamp(u.State.Now), u.Snapshot.Status, u.Display.Phase, stage))
	}

	final, err := svc.Run(ctx, watch.Request{
		TaskID:   c.taskID,
		Poller:   poller,
		OnUpdate: onUpdate,
	})
	if err != nil && !watch.IsStopped(err) {
		return fmt.Errorf("could not watch task: %w", err)
	}

	if final != nil {
		if err := c.rootCmd.Printer(c.format).PrintTimeline(final.State, final.State.Recent(timeline.DefaultRecentEntries)); err != nil {
			return fmt.Errorf("could not print timeline: %w", err)
		}
	}

	return nil
}
