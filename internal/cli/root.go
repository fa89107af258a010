// Package cli implements the device-side command line: create and edit
// assessments in the local store, then push/pull against the server.
package cli

import (
	"fmt"
	"time"

	"cpted-sync/internal/config"
	"cpted-sync/internal/logger"
	"cpted-sync/internal/store"
	"cpted-sync/internal/syncer"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags shared by all commands. Defaults come from
// the environment config; flags override.
type RootOptions struct {
	DBPath    string
	ServerURL string
	Timeout   time.Duration
	Verbose   bool
}

// NewRootCommand creates the root command for the cpted-sync CLI.
func NewRootCommand() *cobra.Command {
	cfg := config.Load()
	opts := &RootOptions{Timeout: cfg.Device.Timeout}

	cmd := &cobra.Command{
		Use:           "cpted-sync",
		Short:         "Offline-first CPTED assessment tool",
		Long:          "Record CPTED assessments offline and synchronize them with the canonical server when connectivity returns.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", cfg.Device.DBPath, "path to the local assessment database")
	cmd.PersistentFlags().StringVar(&opts.ServerURL, "server", cfg.Device.ServerURL, "sync server base URL")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newNewCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newShowCommand(opts))
	cmd.AddCommand(newScoreCommand(opts))
	cmd.AddCommand(newPushCommand(opts))
	cmd.AddCommand(newPullCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts))

	return cmd
}

func (o *RootOptions) newLogger() (*zap.Logger, error) {
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	return logger.New(level, "console", "cpted-sync")
}

func (o *RootOptions) openStore() (*store.Store, *zap.Logger, error) {
	log, err := o.newLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	st, err := store.Open(o.DBPath, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store at %s: %w", o.DBPath, err)
	}
	return st, log, nil
}

func (o *RootOptions) newClient(log *zap.Logger) *syncer.Client {
	return syncer.NewClient(o.ServerURL, o.Timeout, log)
}

func (o *RootOptions) newSyncer(st *store.Store, log *zap.Logger) *syncer.Syncer {
	return syncer.New(st, o.newClient(log), log)
}

func formatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
