// Package commands implements the statements CLI.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-engine/cmd/api"
	"github.com/FACorreiaa/statement-engine/pkg/config"
)

// app carries the state shared by every subcommand once the root has run.
type app struct {
	envFile string
	store   string
	debug   bool

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "statements",
		Short: "Template-driven bank statement parsing",
		Long: `statements turns bank statement PDFs and CSV exports into normalized
transactions using per-bank templates.

Templates are read from the store selected by TEMPLATE_STORE (memory, bolt
or postgres) or the --store flag. Use the bolt store to keep imported
templates between runs.

Example:
  statements templates list
  statements parse --template hdfc_bank statement.pdf
  statements serve`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.envFile, "env", ".env", "environment file to load")
	rootCmd.PersistentFlags().StringVar(&a.store, "store", "", "template store (memory, bolt or postgres); overrides TEMPLATE_STORE")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newParseCommand(a))
	rootCmd.AddCommand(newTemplatesCommand(a))

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	switch store := strings.ToLower(a.store); store {
	case "":
	case config.StoreMemory, config.StoreBolt, config.StorePostgres:
		cfg.Store.Type = store
	default:
		return fmt.Errorf("unknown store %q", a.store)
	}

	level := cfg.LogLevel
	if a.debug {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(a.logger)
	a.cfg = cfg
	return nil
}

// withDependencies wires the application for the length of fn.
func (a *app) withDependencies(ctx context.Context, fn func(*api.Dependencies) error) error {
	deps, err := api.InitDependencies(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer deps.Cleanup()
	return fn(deps)
}
