package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/ehr/patientdata/internal/config"
	"github.com/ehr/patientdata/internal/domain/patient"
	"github.com/ehr/patientdata/internal/platform/db"
	"github.com/ehr/patientdata/internal/platform/export"
	"github.com/ehr/patientdata/internal/platform/logging"
)

func main() {
	a := newApp()
	if err := a.execute(newRootCmd(a)); err != nil {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		logger.Error().Err(err).Msg("patient-data failed")
		os.Exit(exitCode(err))
	}
}

// exitCode separates a missing configuration from every other failure.
func exitCode(err error) int {
	if errors.Is(err, config.ErrNotConfigured) {
		return 2
	}
	return 1
}

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	configPath string

	cfg       *config.Config
	logger    zerolog.Logger
	logCloser io.Closer
}

func newApp() *app {
	return &app{logger: zerolog.Nop()}
}

// execute runs root and releases the log file however the command ends.
func (a *app) execute(root *cobra.Command) error {
	err := root.Execute()
	return multierr.Append(err, a.close())
}

func (a *app) close() error {
	if a.logCloser == nil {
		return nil
	}
	err := a.logCloser.Close()
	a.logCloser = nil
	return err
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "patient-data",
		Short:         "Read patient records from the RAPPORT database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "settings file (default .env)")

	rootCmd.AddCommand(getCmd(a))
	rootCmd.AddCommand(searchCmd(a))
	rootCmd.AddCommand(rangeCmd(a))
	rootCmd.AddCommand(exportCmd(a))
	rootCmd.AddCommand(serveCmd(a))

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, closer, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Console: cfg.IsDev(),
		File:    cfg.LogFile,
		Out:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.logCloser = closer
	return nil
}

// withFetcher runs fn on a connection that is closed when fn returns.
func (a *app) withFetcher(ctx context.Context, fn func(*patient.Fetcher) error) error {
	return db.WithConnection(ctx, a.cfg.Credentials(), a.logger, func(h *db.Handle) error {
		return fn(patient.NewFetcher(h, h.Dialect(), a.logger))
	})
}

// emit prints v as JSON to stdout, or exports it when out is set.
func (a *app) emit(cmd *cobra.Command, v any, out string) error {
	if out != "" {
		return export.NewExporter(a.logger).ToFile(v, out)
	}
	return export.Encode(cmd.OutOrStdout(), v, export.FormatJSON)
}
