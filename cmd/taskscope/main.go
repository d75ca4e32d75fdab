package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/taskscope/taskscope/cmd/taskscope/commands"
	"github.com/taskscope/taskscope/internal/conventions"
	"github.com/taskscope/taskscope/internal/log"
	loglogrus "github.com/taskscope/taskscope/internal/log/logrus"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	// Env vars from the dotenv file are used as flag defaults, real env vars win.
	if err := godotenv.Load(conventions.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not load %s file: %w", conventions.EnvFile, err)
	}

	app := kingpin.New("taskscope", "AI agent task status observer.")
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	// Setup commands (registers flags).
	recordCmd := commands.NewRecordCommand(rootCmd, app)
	displayCmd := commands.NewDisplayCommand(rootCmd, app)
	timelineCmd := commands.NewTimelineCommand(rootCmd, app)
	watchCmd := commands.NewWatchCommand(rootCmd, app)
	tasksCmd := commands.NewTasksCommand(rootCmd, app)
	deleteCmd := commands.NewDeleteCommand(rootCmd, app)
	sanitizeCmd := commands.NewSanitizeCommand(rootCmd, app)
	providerURLCmd := commands.NewProviderURLCommand(rootCmd, app)
	serveCmd := commands.NewServeCommand(rootCmd, app)

	cmds := map[string]commands.Command{
		recordCmd.Name():      recordCmd,
		displayCmd.Name():     displayCmd,
		timelineCmd.Name():    timelineCmd,
		watchCmd.Name():       watchCmd,
		tasksCmd.Name():       tasksCmd,
		deleteCmd.Name():      deleteCmd,
		sanitizeCmd.Name():    sanitizeCmd,
		providerURLCmd.Name(): providerURLCmd,
		serveCmd.Name():       serveCmd,
	}

	// Parse command.
	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// Set standard input/output.
	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	// Commands printing structured output don't log unless debugging.
	printerCommands := map[string]bool{
		"display":      true,
		"timeline":     true,
		"tasks":        true,
		"sanitize":     true,
		"provider-url": true,
	}
	if printerCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}

	// Set logger.
	rootCmd.Logger = getLogger(*rootCmd)

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				rootCmd.Logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				err := cmds[cmdName].Run(ctx)
				if err != nil {
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// getLogger returns the application logger.
func getLogger(config commands.RootCommand) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	logrusLog := logrus.New()
	logrusLog.Out = config.Stderr // Keep stdout for the printers.
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if config.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	switch config.LoggerType {
	case commands.LoggerTypeDefault:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !config.NoColor,
			DisableColors: config.NoColor,
		})
	case commands.LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled")

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
