package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/taskscope/taskscope/internal/app/record"
	"github.com/taskscope/taskscope/internal/model"
	storageio "github.com/taskscope/taskscope/internal/storage/io"
)

type RecordCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file string
}

// NewRecordCommand returns the record command.
func NewRecordCommand(rootCmd *RootCommand, app *kingpin.Application) *RecordCommand {
	c := &RecordCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("record", "Record task status snapshots from a YAML or JSON stream.")
	c.Cmd.Arg("file", "Snapshots file, stdin if missing or '-'.").StringVar(&c.file)

	return c
}

func (c RecordCommand) Name() string { return c.Cmd.FullCommand() }

func (c RecordCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	loader := storageio.NewSnapshotYAMLLoader(os.DirFS("/"), logger)
	var (
		snaps []model.StatusSnapshot
		err   error
	)
	if c.file == "" || c.file == "-" {
		snaps, err = loader.Load(ctx, c.rootCmd.Stdin)
	} else {
		path, perr := rootFSPath(c.file)
		if perr != nil {
			return perr
		}
		snaps, err = loader.LoadFile(ctx, path)
	}
	if err != nil {
		return fmt.Errorf("could not load snapshots: %w", err)
	}

	repo, err := c.rootCmd.OpenRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	sanitizer, err := c.rootCmd.Sanitizer(ctx)
	if err != nil {
		return err
	}

	svc, err := record.NewService(record.ServiceConfig{
		Repository: repo,
		Sanitizer:  sanitizer,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	recorded, err := svc.Run(ctx, record.Request{Snapshots: snaps})
	if err != nil {
		return fmt.Errorf("could not record snapshots (%d recorded): %w", len(recorded), err)
	}

	return c.rootCmd.Printer(formatTable).PrintMessage(fmt.Sprintf("Recorded %d snapshots", len(recorded)))
}
