// Package cli implements the §6.1 command surface: a single `run`
// subcommand plus global flags, dispatching into config loading, settings
// initialization, protocol discovery, and the runner — kept deliberately
// thin, the way the teacher's cmd/app/main.go is a one-line call into its
// own bootstrap package (components/consumer/cmd/app/main.go) rather than a
// cobra command tree, since this binary has exactly one real subcommand.
package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/savannahghi/idrclient/internal/config"
	"github.com/savannahghi/idrclient/internal/mlog"
	"github.com/savannahghi/idrclient/internal/mzap"
	"github.com/savannahghi/idrclient/internal/protocol"
	"github.com/savannahghi/idrclient/internal/registry"
	"github.com/savannahghi/idrclient/internal/runner"
	"github.com/savannahghi/idrclient/internal/signalbus"
)

// Exit codes per §6.1.
const (
	ExitSuccess        = 0
	ExitConfigError    = 1
	ExitPartialFailure = 2
	ExitCancelled      = 130
)

// App wires the registries a `run` invocation draws from. Driver packages
// populate App.Protocols and App.SettingsInitializers from their own
// init() functions (mirrors the teacher's bootstrap-package DI
// registration), so main only has to construct an App and call Run.
type App struct {
	Protocols            *registry.Registry
	SettingsInitializers map[string]config.SettingsInitializer
	Bus                  *signalbus.Bus
}

// New returns an App wired to the process-wide registries driver packages
// self-register into from their own init() (registry.Default,
// config.DefaultSettingsInitializers), plus a fresh signal bus.
func New() *App {
	return &App{
		Protocols:            registry.Default(),
		SettingsInitializers: config.DefaultSettingsInitializers(),
		Bus:                  signalbus.New(),
	}
}

// verboseFlag counts repeated -v occurrences (§6.1: 0=info, 1=debug,
// 2=trace).
type verboseFlag int

func (v *verboseFlag) String() string { return fmt.Sprintf("%d", int(*v)) }
func (v *verboseFlag) Set(string) error {
	*v++
	return nil
}
func (v *verboseFlag) IsBoolFlag() bool { return true }

// Run parses args (excluding the program name) and executes the requested
// subcommand, returning the process exit code per §6.1. ctx should already
// carry cooperative cancellation wiring (SIGINT/SIGTERM); Run itself never
// calls os.Exit.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) < 1 || args[0] != "run" {
		fmt.Println("usage: idrclient run [--config path] [-v...]")
		return ExitConfigError
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML configuration file")

	var verbosity verboseFlag

	fs.Var(&verbosity, "v", "increase log verbosity (repeatable)")
	fs.Var(&verbosity, "verbose", "increase log verbosity (repeatable)")

	if err := fs.Parse(args[1:]); err != nil {
		return ExitConfigError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("configuration error: %s\n", err.Error())
		return ExitConfigError
	}

	level, err := config.ResolveLevel(cfg.Logging.Level, int(verbosity))
	if err != nil {
		fmt.Printf("configuration error: %s\n", err.Error())
		return ExitConfigError
	}

	logger := newLogger(level)
	defer logger.Sync() //nolint:errcheck

	ctx = mlog.ContextWithLogger(ctx, logger)

	for _, msg := range cfg.Warnings {
		logger.Warnln(msg)
	}

	for _, id := range cfg.SettingsInitializers {
		init, ok := a.SettingsInitializers[id]
		if !ok {
			logger.Warnf("unknown settings initializer %q ignored", id)
			continue
		}

		if err := init.Initialize(cfg); err != nil {
			logger.Errorf("settings initializer %q failed: %s", id, err.Error())
			return ExitConfigError
		}
	}

	for _, f := range signalbus.DefaultListenerFactories() {
		listener, err := f()
		if err != nil {
			logger.Errorf("signal listener setup failed: %s", err.Error())
			return ExitConfigError
		}

		if listener != nil {
			a.Bus.Subscribe(listener)
		}
	}

	protocols, err := a.Protocols.Build(cfg.ETLProtocols)
	if err != nil {
		logger.Errorf("protocol discovery failed: %s", err.Error())
		return ExitConfigError
	}

	return a.runAll(ctx, cfg, logger, protocols)
}

func (a *App) runAll(ctx context.Context, cfg *config.Config, logger mlog.Logger, protocols []*protocol.ETLProtocol) int {
	r := runner.New(runner.Options{
		MaxConcurrency: cfg.Runner.MaxConcurrency,
		RetryConfig:    cfg.Retry.ToRetryConfig(),
		Bus:            a.Bus,
	})

	exitCode := ExitSuccess

	for _, p := range protocols {
		result, err := r.RunProtocol(ctx, p)

		switch {
		case result.Cancelled:
			logger.Errorf("protocol %q cancelled", p.ID)
			return ExitCancelled
		case err != nil:
			logger.Errorf("protocol %q finished with failures: %s", p.ID, err.Error())

			if exitCode < ExitPartialFailure {
				exitCode = ExitPartialFailure
			}
		default:
			logger.Infof("protocol %q completed successfully (%d workflow(s))", p.ID, result.TotalWorkflows)
		}

		if ctx.Err() != nil {
			return ExitCancelled
		}
	}

	return exitCode
}

func newLogger(level mlog.Level) mlog.Logger {
	traced, err := mzap.New(level)
	if err != nil {
		return mlog.NewStdLogger(level)
	}

	return traced
}
