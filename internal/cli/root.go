package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/grimoire/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is parsed from the environment before any subcommand runs.
	// Flags that were set explicitly override it, then it is validated.
	Config config.Config

	// Logger is configured from Verbose and Config.LogLevel.
	Logger *slog.Logger

	maxPasses int
	maxDepth  int
	db        string
	seed      int64
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the grimoire CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "grimoire",
		Short: "Grimoire - tabletop rules engine",
		Long: `Grimoire resolves tabletop RPG actions against data-driven effects.

Effects, resources and items are content templates (CUE, JSON or YAML).
Each action is a subevent offered to every entity in play until no
effect changes it further.

Settings come from the environment (GRIMOIRE_MAX_PASSES, GRIMOIRE_MAX_DEPTH,
GRIMOIRE_LOG_LEVEL, GRIMOIRE_DB, GRIMOIRE_SEED); flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			var cfg config.Config
			if err := config.ParseEnv(&cfg); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Config = applyFlags(cmd, opts, cfg)
			if err := opts.Config.Validate(); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Logger = newLogger(cmd.ErrOrStderr(), opts)
			slog.SetDefault(opts.Logger)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.IntVar(&opts.maxPasses, "max-passes", 0, "propagation pass ceiling per subevent (GRIMOIRE_MAX_PASSES)")
	flags.IntVar(&opts.maxDepth, "max-depth", 0, "nested subevent depth ceiling (GRIMOIRE_MAX_DEPTH)")
	flags.StringVar(&opts.db, "db", "", "path to SQLite trace database (GRIMOIRE_DB)")
	flags.Int64Var(&opts.seed, "seed", 0, "dice seed for scenarios without dice setup (GRIMOIRE_SEED)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// applyFlags overlays the flags the user set on cfg.
func applyFlags(cmd *cobra.Command, opts *RootOptions, cfg config.Config) config.Config {
	flags := cmd.Flags()
	if flags.Changed("max-passes") {
		cfg.MaxPasses = opts.maxPasses
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth = opts.maxDepth
	}
	if flags.Changed("db") {
		cfg.DB = opts.db
	}
	if flags.Changed("seed") {
		cfg.Seed = opts.seed
	}
	return cfg
}

func newLogger(w io.Writer, opts *RootOptions) *slog.Logger {
	level := opts.Config.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// logger returns the configured logger, or a silent one when the command
// runs without the root pre-run.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
