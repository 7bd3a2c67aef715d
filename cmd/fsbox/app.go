package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nuln/fsbox/internal/config"
	"github.com/nuln/fsbox/internal/logging"
	"github.com/nuln/fsbox/internal/metrics"
	"github.com/nuln/fsbox/internal/state"
)

// app holds everything a command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	metrics *metrics.Collector
	stack   *config.Stack
	state   *state.State
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "fsbox",
		Short: "fsbox stores objects addressed as scheme://path",
		Long: `fsbox reads, writes and deletes objects addressed as scheme://path.
Each scheme is bound to a storage driver in fsbox.yaml. Objects written
with --managed are tracked in a record index; everything else is raw
storage.`,
		Version:            fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:       true,
		PersistentPreRunE:  a.open,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return a.close() },
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default: ./fsbox.yaml)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")
	flags.String("index-type", "", "record index (memory, sqlite, badger)")
	flags.String("index-path", "", "record index location")
	flags.String("default-scheme", "", "scheme used when no address is given")
	flags.String("state-file", "", "file remembering the last used addresses")

	root.AddCommand(
		a.writeCmd(),
		a.readCmd(),
		a.mirrorCmd(),
		a.deleteCmd(),
		a.existsCmd(),
		a.urlCmd(),
		a.listCmd(),
		a.recordsCmd(),
		a.mkdirCmd(),
		a.rmdirCmd(),
		a.dirExistsCmd(),
		a.schemesCmd(),
		a.driversCmd(),
		a.sweepCmd(),
		a.serveCmd(),
	)
	return root
}

// open loads configuration and assembles the store.
func (a *app) open(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "drivers" {
		return nil
	}

	cfg, err := config.Load(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logging.NewWithOutput(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	a.metrics = metrics.New()

	a.stack, err = config.Build(cfg, log, a.metrics)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}
	a.state, err = state.Load(cfg.StateFile)
	if err != nil {
		return err
	}
	return nil
}

func (a *app) close() error {
	if a.stack == nil {
		return nil
	}
	return a.stack.Close()
}

// fileArg returns args[0] or the remembered default file.
func (a *app) fileArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return a.state.File()
}

// dirArg returns args[0] or the remembered default directory.
func (a *app) dirArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return a.state.Directory()
}

func (a *app) rememberFile(address string) {
	if err := a.state.RememberFile(address); err != nil {
		a.log.WithError(err).Warn("Failed to remember default file")
	}
}

func (a *app) rememberDirectory(address string) {
	if err := a.state.RememberDirectory(address); err != nil {
		a.log.WithError(err).Warn("Failed to remember default directory")
	}
}
