package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/taskscope/taskscope/internal/conventions"
	"github.com/taskscope/taskscope/internal/log"
	"github.com/taskscope/taskscope/internal/phase"
	"github.com/taskscope/taskscope/internal/printer"
	"github.com/taskscope/taskscope/internal/sanitize"
	storageio "github.com/taskscope/taskscope/internal/storage/io"
	"github.com/taskscope/taskscope/internal/storage/sqlite"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	formatTable = "table"
	formatJSON  = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug          bool
	NoLog          bool
	NoColor        bool
	LoggerType     string
	DBPath         string
	SanitizeConfig string
	LegacyProgress bool

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	home := homedir.HomeDir()
	app.Flag("db-path", "Path to the SQLite database file.").Default(conventions.DBPath(home)).StringVar(&c.DBPath)
	app.Flag("sanitize-config", "Path to a YAML file with extra sanitizer rules.").Default(conventions.SanitizeConfigPath(home)).StringVar(&c.SanitizeConfig)
	app.Flag("legacy-progress", "Infer running sub-phases from the progress percentage.").BoolVar(&c.LegacyProgress)

	return c
}

// Deriver returns the phase deriver configured by the global flags.
func (r *RootCommand) Deriver() phase.Deriver {
	return phase.NewDeriver(phase.DeriverConfig{LegacyProgressInference: r.LegacyProgress})
}

// OpenRepository opens the SQLite repository at the configured path.
func (r *RootCommand) OpenRepository(ctx context.Context) (*sqlite.Repository, error) {
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: r.DBPath,
		Logger: r.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}
	return repo, nil
}

// Sanitizer returns the sanitizer with the rules of the sanitize config file. A missing
// file uses the default rules.
func (r *RootCommand) Sanitizer(ctx context.Context) (*sanitize.Sanitizer, error) {
	if r.SanitizeConfig == "" {
		return sanitize.Default, nil
	}

	path, err := rootFSPath(r.SanitizeConfig)
	if err != nil {
		return nil, err
	}

	opts, err := storageio.NewSanitizeConfigYAMLRepository(os.DirFS("/")).GetOptions(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.Logger.Debugf("Sanitize config %s missing, using default rules", r.SanitizeConfig)
			return sanitize.Default, nil
		}
		return nil, fmt.Errorf("could not load sanitize config: %w", err)
	}

	return sanitize.New(opts), nil
}

// ReadInput reads the file at path, or stdin when path is empty or "-".
func (r *RootCommand) ReadInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(r.Stdin)
	}

	p, err := rootFSPath(path)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(os.DirFS("/"), p)
}

// Printer returns the printer of an output format.
func (r *RootCommand) Printer(format string) printer.Printer {
	if format == formatJSON {
		return printer.NewJSONPrinter(r.Stdout)
	}
	return printer.NewTablePrinter(r.Stdout)
}

// rootFSPath returns path relative to the filesystem root, as required by os.DirFS("/").
func rootFSPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("could not resolve path %q: %w", path, err)
	}
	return filepath.ToSlash(abs)[1:], nil
}
