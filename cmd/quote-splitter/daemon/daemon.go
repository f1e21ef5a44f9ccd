// Package daemon provides the quote-splitter command line application.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/sbtplatform/quote-splitter/internal/blobstore"
	"github.com/sbtplatform/quote-splitter/internal/cli"
	"github.com/sbtplatform/quote-splitter/internal/config"
	"github.com/sbtplatform/quote-splitter/internal/constants"
	"github.com/sbtplatform/quote-splitter/internal/events"
	"github.com/sbtplatform/quote-splitter/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	ctx    context.Context
	cancel context.CancelFunc

	ready     chan struct{}
	readyOnce sync.Once
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int
	JSONLogs  bool

	SourceDir   string
	SplitConfig string
	Workers     int
	Interval    time.Duration

	DBconfig      events.Config
	MigrationsDir string
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{ready: make(chan struct{})}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.cmd = &cobra.Command{
		Use:   constants.CmdName,
		Short: "Quote splitting service",
		Long: "Quote splitting service reads quote documents from the source prefix, extracts configured " +
			"sub-objects into standalone files and archives the originals.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetVerbosity(a.config.Verbosity) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to strictly decode configuration into struct: %w", err)
			}
			slog.Info("got app config", "config", a.config)

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cmd.SilenceUsage = true

			return a.run()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	a.installVersion()
	installMigrateCmd(&a)

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "emit logs as JSON")

	cmd.PersistentFlags().StringVar(&app.config.SourceDir, "source-dir", constants.DefaultSourceDir, "Directory quotes are read from")
	cmd.PersistentFlags().StringVar(&app.config.SplitConfig, "split-config", constants.DefaultSplitConfigPath, "Path to the split rules file")
	cmd.PersistentFlags().IntVarP(&app.config.Workers, "workers", "w", constants.DefaultWorkerCount, "Number of concurrent workers")
	cmd.PersistentFlags().DurationVarP(&app.config.Interval, "interval", "i", 0, "Run repeatedly at this interval instead of once")

	// Event ledger flags; recording to PostgreSQL is enabled when db-host is set
	cmd.PersistentFlags().StringVar(&app.config.DBconfig.Host, "db-host", "", "Database host")
	cmd.PersistentFlags().IntVarP(&app.config.DBconfig.Port, "db-port", "p", 5432, "Database port")
	cmd.PersistentFlags().StringVarP(&app.config.DBconfig.User, "db-user", "u", "", "Database user")
	cmd.PersistentFlags().StringVarP(&app.config.DBconfig.Password, "db-password", "P", "", "Database password")
	cmd.PersistentFlags().StringVarP(&app.config.DBconfig.DBName, "db-name", "n", "", "Database name")
	cmd.PersistentFlags().StringVarP(&app.config.DBconfig.SSLMode, "db-sslmode", "s", "", "Database SSL mode")

	if err := cmd.MarkPersistentFlagDirname("source-dir"); err != nil {
		panic(fmt.Sprintf("failed to mark source-dir flag as directory: %v", err))
	}

	if err := cmd.MarkPersistentFlagFilename("split-config"); err != nil {
		panic(fmt.Sprintf("failed to mark split-config flag as filename: %v", err))
	}
}

// Run executes the command and associated process, returning an error if any.
func (a *App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a *App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a *App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	fmt.Printf("%s", buf)
	return false
}

// Quit gracefully shuts down the running pipeline.
func (a *App) Quit() {
	a.WaitReady()
	a.cancel()
}

// WaitReady waits for the pipeline to be constructed.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns the root command.
func (a *App) RootCmd() cobra.Command {
	return *a.cmd
}

func (a *App) run() (err error) {
	// Unblock Quit even when construction fails early.
	defer a.markReady()

	a.config.SplitConfig, err = filepath.Abs(a.config.SplitConfig)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for split rules file: %v", err)
	}

	sink, cleanup, err := a.buildSink()
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := blobstore.NewDirStore(a.config.SourceDir)
	if err != nil {
		sink.Emit(a.ctx, events.GeneralError, map[string]string{
			"unit":      "blobstore",
			"error_msg": err.Error(),
		})
		return fmt.Errorf("failed to open source directory: %v", err)
	}

	cm := config.New(a.config.SplitConfig)
	runner, err := pipeline.New(store, sink, cm, pipeline.WithWorkers(a.config.Workers))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %v", err)
	}

	if a.config.Interval > 0 {
		service, err := pipeline.NewService(runner, cm, a.config.Interval)
		if err != nil {
			return fmt.Errorf("failed to create service: %v", err)
		}
		a.markReady()
		return service.Run(a.ctx)
	}

	if err := cm.Load(); err != nil {
		sink.Emit(a.ctx, events.GeneralError, map[string]string{
			"unit":      "config",
			"error_msg": err.Error(),
		})
		return err
	}
	a.markReady()
	return runner.Run(a.ctx)
}

func (a *App) markReady() {
	a.readyOnce.Do(func() { close(a.ready) })
}

// buildSink assembles the event sink: slog always, PostgreSQL when configured.
func (a *App) buildSink() (events.Sink, func(), error) {
	slogSink := events.NewSlogSink(nil)
	if a.config.DBconfig.Host == "" {
		return slogSink, func() {}, nil
	}

	pg, err := events.Connect(a.ctx, a.config.DBconfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to event ledger: %v", err)
	}
	cleanup := func() {
		if err := pg.Close(); err != nil {
			slog.Error("Error closing event ledger", "err", err)
		}
	}
	return events.Multi{slogSink, pg}, cleanup, nil
}
