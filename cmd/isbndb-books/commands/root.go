package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sternrassler/isbndb-books/internal/config"
	"github.com/Sternrassler/isbndb-books/pkg/logging"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	viper  *viper.Viper
	cfg    *config.Config
	logger zerolog.Logger
}

// NewRootCommand builds the isbndb-books command tree.
func NewRootCommand() *cobra.Command {
	a := &app{viper: config.NewViper(), logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "isbndb-books",
		Short:         "isbndb-books harvests ISBNdb book search results into a local JSON file and prints them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("log-level", string(logging.LevelInfo), "Log level (debug, info, warn, error).")
	pf.Bool("log-pretty", false, "Human readable console logs instead of JSON.")
	pf.StringP("file", "f", config.DefaultStoreFile, "The JSON collection file.")

	root.AddCommand(
		newFetchCommand(a),
		newPrintCommand(a),
		newStatsCommand(a),
		newKeysCommand(a),
	)
	return root
}

// setup binds flags, reads the config and configures logging.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.BindFlags(a.viper, cmd.Flags()); err != nil {
		return err
	}
	a.cfg = config.FromViper(a.viper)

	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg, err := a.cfg.LoggingConfig()
	if err != nil {
		return err
	}
	logCfg.Output = cmd.ErrOrStderr()
	logging.Setup(logCfg)
	a.logger = logging.NewLogger(cmd.Name())
	return nil
}

// ExecuteContext runs the CLI and exits 1 on error.
func ExecuteContext(ctx context.Context) {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
