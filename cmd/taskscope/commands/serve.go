package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/taskscope/taskscope/internal/api"
	"github.com/taskscope/taskscope/internal/metrics"
	"github.com/taskscope/taskscope/internal/storage"
	"github.com/taskscope/taskscope/internal/storage/memory"
)

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	listenAddr   string
	authToken    string
	memory       bool
	metrics      bool
	pollInterval time.Duration
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Serve the HTTP API.")
	c.Cmd.Flag("listen", "Listen address.").Default("127.0.0.1:8080").StringVar(&c.listenAddr)
	c.Cmd.Flag("auth-token", "Bearer token required by the API, empty disables auth.").StringVar(&c.authToken)
	c.Cmd.Flag("memory", "Keep the snapshots in memory instead of the database.").BoolVar(&c.memory)
	c.Cmd.Flag("metrics", "Expose prometheus metrics on /metrics.").Default("true").BoolVar(&c.metrics)
	c.Cmd.Flag("stream-poll-interval", "Poll interval of the timeline streams.").Default("1s").DurationVar(&c.pollInterval)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	var repo storage.Repository
	if c.memory {
		mrepo, err := memory.NewRepository(memory.RepositoryConfig{Logger: logger})
		if err != nil {
			return fmt.Errorf("could not create repository: %w", err)
		}
		repo = mrepo
	} else {
		srepo, err := c.rootCmd.OpenRepository(ctx)
		if err != nil {
			return err
		}
		defer srepo.Close()
		repo = srepo
	}

	sanitizer, err := c.rootCmd.Sanitizer(ctx)
	if err != nil {
		return err
	}

	var (
		rec            metrics.Recorder = metrics.Noop
		metricsHandler http.Handler
	)
	if c.metrics {
		prom := metrics.NewPrometheus()
		rec = prom
		metricsHandler = prom.Handler()
	}

	srv, err := api.NewServer(api.ServerConfig{
		Addr:           c.listenAddr,
		AuthToken:      c.authToken,
		Repository:     repo,
		Deriver:        c.rootCmd.Deriver(),
		Sanitizer:      sanitizer,
		Metrics:        rec,
		MetricsHandler: metricsHandler,
		PollInterval:   c.pollInterval,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}

	var g run.Group

	// HTTP server.
	g.Add(
		func() error {
			return srv.Start()
		},
		func(_ error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Errorf("Could not shut down HTTP server: %s", err)
			}
		},
	)

	// Context cancellation.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				<-ctx.Done()
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}
