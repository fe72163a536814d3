package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/grimoire/internal/config"
	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/harness"
	"github.com/roach88/grimoire/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// RunID overrides the generated run id (for testing).
	RunID string
}

// RunReport is the JSON payload of the run command.
type RunReport struct {
	RunID    string      `json:"run_id,omitempty"`
	Scenario string      `json:"scenario"`
	Pass     bool        `json:"pass"`
	Errors   []string    `json:"errors"`
	Trace    *doc.Object `json:"trace"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print its trace",
		Long: `Place the scenario's entities, invoke its steps and print every
settled subevent in sequence order.

With --db (or GRIMOIRE_DB) the subevents and effect applications are
also recorded as a new run in the SQLite trace log.

Example:
  grimoire run ./scenarios/fire_ward.yaml
  grimoire run --db ./grimoire.db --seed 7 ./scenarios/fire_ward.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "id of the recorded run (default: generated)")

	return cmd
}

func runScenarioCommand(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	applyDefaults(scenario, opts.Config)

	runOpts := []harness.Option{harness.WithLogger(logger)}
	report := RunReport{Scenario: scenario.Name}

	if opts.Config.DB != "" {
		st, err := store.Open(opts.Config.DB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		report.RunID = opts.RunID
		if report.RunID == "" {
			report.RunID = uuid.Must(uuid.NewV7()).String()
		}
		run := store.Run{ID: report.RunID, Label: scenario.Name, Content: scenario.Content}
		if err := st.BeginRun(commandContext(cmd), run); err != nil {
			return WrapExitError(ExitCommandError, "failed to begin run", err)
		}
		logger.Info("recording run", "run", report.RunID, "db", opts.Config.DB)
		runOpts = append(runOpts, harness.WithRecorder(st))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeRunFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "scenario setup failed", err)
	}
	report.Pass = result.Pass
	report.Errors = result.Errors
	report.Trace = harness.Snapshot(scenario.Name, result)

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: report, RunID: report.RunID}
		if !report.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeRunFailed, Message: report.Errors[0]}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		printTrace(formatter, result.Trace)
		if report.RunID != "" {
			fmt.Fprintf(formatter.Writer, "run %s\n", report.RunID)
		}
		if report.Pass {
			fmt.Fprintf(formatter.Writer, "✓ %s\n", scenario.Name)
		} else {
			fmt.Fprintf(formatter.Writer, "✗ %s\n", scenario.Name)
			for _, e := range report.Errors {
				fmt.Fprintf(formatter.Writer, "  %s\n", e)
			}
		}
	}

	if !report.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// applyDefaults fills the engine settings a scenario leaves unset from cfg.
func applyDefaults(s *harness.Scenario, cfg config.Config) {
	if s.MaxPasses <= 0 {
		s.MaxPasses = cfg.MaxPasses
	}
	if s.MaxDepth <= 0 {
		s.MaxDepth = cfg.MaxDepth
	}
	if s.Dice == nil {
		s.Dice = &harness.DiceSetup{Seed: cfg.Seed}
	}
}

func printTrace(formatter *OutputFormatter, trace []harness.TraceEvent) {
	for _, ev := range trace {
		indent := strings.Repeat("  ", ev.Depth)
		fmt.Fprintf(formatter.Writer, "%s[%d] %s %s target=%s passes=%d applied=[%s]\n",
			indent, ev.Seq, ev.ID, ev.Subevent, ev.Target, ev.Passes, strings.Join(ev.Applied, ", "))
		if formatter.Verbose && ev.Doc != nil {
			fmt.Fprintf(formatter.Writer, "%s    %s\n", indent, ev.Doc.String())
		}
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
