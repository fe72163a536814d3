package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/grimoire/internal/doc"
	"github.com/roach88/grimoire/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	RunID  string
	Export string
}

// RunSummary describes one recorded run.
type RunSummary struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Content string `json:"content,omitempty"`
}

// TraceEntry is one recorded subevent.
type TraceEntry struct {
	ID       string      `json:"id"`
	ParentID string      `json:"parent_id,omitempty"`
	Seq      int64       `json:"seq"`
	Depth    int         `json:"depth"`
	Subevent string      `json:"subevent"`
	Target   string      `json:"target,omitempty"`
	Passes   int         `json:"passes"`
	Applied  []string    `json:"applied"`
	Hash     string      `json:"hash"`
	Doc      *doc.Object `json:"doc,omitempty"`
}

// ApplicationEntry is one recorded effect application.
type ApplicationEntry struct {
	Subevent string `json:"subevent"`
	Seq      int64  `json:"seq"`
	Pass     int    `json:"pass"`
	Entity   string `json:"entity"`
	Effect   string `json:"effect"`
	Behavior int    `json:"behavior"`
}

// TraceStats holds summary statistics for a run.
type TraceStats struct {
	Subevents    int `json:"subevents"`
	Applications int `json:"applications"`
	MaxDepth     int `json:"max_depth"`
	MaxPasses    int `json:"max_passes"`
}

// TraceResult holds the complete trace of one run.
type TraceResult struct {
	Run          RunSummary         `json:"run"`
	Subevents    []TraceEntry       `json:"subevents"`
	Applications []ApplicationEntry `json:"applications"`
	Stats        TraceStats         `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded runs",
		Long: `Read the SQLite trace log written by run and test.

Without --run, lists every recorded run. With --run, prints the run's
subevents in sequence order followed by the effect applications.
--export writes the run (default: the latest) as zstd-compressed JSONL.

Examples:
  grimoire trace --db ./grimoire.db
  grimoire trace --db ./grimoire.db --run 0192f3c4-...
  grimoire trace --db ./grimoire.db --export latest.jsonl.zst`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to print")
	cmd.Flags().StringVar(&opts.Export, "export", "", "write the run as zstd JSONL to this file")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	if opts.Config.DB == "" {
		_ = formatter.Error(ErrCodeBadInput, "no database: set --db or GRIMOIRE_DB", nil)
		return NewExitError(ExitCommandError, "no database: set --db or GRIMOIRE_DB")
	}
	if _, err := os.Stat(opts.Config.DB); err != nil {
		_ = formatter.Error(ErrCodeBadInput, fmt.Sprintf("database not found: %s", opts.Config.DB), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(opts.Config.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	if opts.RunID == "" && opts.Export == "" {
		return listRuns(formatter, st, cmd)
	}

	run, ok, err := resolveRun(opts, st, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	if !ok {
		_ = formatter.Error(ErrCodeNoRun, "run not found", map[string]string{"run": opts.RunID})
		return NewExitError(ExitFailure, fmt.Sprintf("run not found: %q", opts.RunID))
	}

	if opts.Export != "" {
		return exportRun(formatter, st, run, opts.Export, cmd)
	}

	result, err := buildTraceResult(st, run, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}
	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	outputTraceText(formatter, result)
	return nil
}

func resolveRun(opts *TraceOptions, st *store.Store, cmd *cobra.Command) (store.Run, bool, error) {
	if opts.RunID == "" {
		return st.LatestRun(commandContext(cmd))
	}
	return st.GetRun(commandContext(cmd), opts.RunID)
}

func listRuns(formatter *OutputFormatter, st *store.Store, cmd *cobra.Command) error {
	runs, err := st.Runs(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	summaries := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		summaries = append(summaries, RunSummary(r))
	}

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range summaries {
		fmt.Fprintf(formatter.Writer, "%s  %s\n", r.ID, r.Label)
	}
	return nil
}

func buildTraceResult(st *store.Store, run store.Run, cmd *cobra.Command) (TraceResult, error) {
	ctx := commandContext(cmd)
	subs, err := st.ReadSubevents(ctx, run.ID)
	if err != nil {
		return TraceResult{}, err
	}
	apps, err := st.ReadApplications(ctx, run.ID)
	if err != nil {
		return TraceResult{}, err
	}

	result := TraceResult{
		Run:          RunSummary(run),
		Subevents:    make([]TraceEntry, 0, len(subs)),
		Applications: make([]ApplicationEntry, 0, len(apps)),
	}
	for _, s := range subs {
		result.Subevents = append(result.Subevents, TraceEntry{
			ID:       s.ID,
			ParentID: s.ParentID,
			Seq:      s.Seq,
			Depth:    s.Depth,
			Subevent: s.Kind,
			Target:   s.Target,
			Passes:   s.Passes,
			Applied:  s.Applied,
			Hash:     s.Hash,
			Doc:      s.Doc,
		})
		result.Stats.MaxDepth = max(result.Stats.MaxDepth, s.Depth)
		result.Stats.MaxPasses = max(result.Stats.MaxPasses, s.Passes)
	}
	for _, a := range apps {
		result.Applications = append(result.Applications, ApplicationEntry{
			Subevent: a.SubeventID,
			Seq:      a.Seq,
			Pass:     a.Pass,
			Entity:   a.Entity,
			Effect:   a.Effect,
			Behavior: a.Behavior,
		})
	}
	result.Stats.Subevents = len(result.Subevents)
	result.Stats.Applications = len(result.Applications)
	return result, nil
}

func exportRun(formatter *OutputFormatter, st *store.Store, run store.Run, path string, cmd *cobra.Command) error {
	f, err := os.Create(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create export file", err)
	}
	if err := st.Export(commandContext(cmd), run.ID, f); err != nil {
		f.Close()
		return WrapExitError(ExitFailure, "export failed", err)
	}
	if err := f.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to write export file", err)
	}

	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{
			Status: "ok",
			Data:   map[string]string{"run": run.ID, "path": path},
			RunID:  run.ID,
		})
	}
	fmt.Fprintf(formatter.Writer, "✓ Exported run %s to %s\n", run.ID, path)
	return nil
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Run: %s (%s)\n", result.Run.ID, result.Run.Label)
	fmt.Fprintln(w, strings.Repeat("=", 50))

	fmt.Fprintln(w, "\nSubevents:")
	for _, s := range result.Subevents {
		indent := strings.Repeat("  ", s.Depth)
		fmt.Fprintf(w, "  %s[%d] %s %s target=%s passes=%d applied=[%s]\n",
			indent, s.Seq, s.ID, s.Subevent, s.Target, s.Passes, strings.Join(s.Applied, ", "))
		if formatter.Verbose && s.Doc != nil {
			fmt.Fprintf(w, "  %s    %s\n", indent, s.Doc.String())
		}
	}

	fmt.Fprintln(w, "\nApplications:")
	if len(result.Applications) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, a := range result.Applications {
		fmt.Fprintf(w, "  [%d] %s.%s on %s (pass %d, behavior %d)\n",
			a.Seq, a.Entity, a.Effect, a.Subevent, a.Pass, a.Behavior)
	}

	fmt.Fprintln(w, "\nStats:")
	fmt.Fprintf(w, "  Subevents: %d\n", result.Stats.Subevents)
	fmt.Fprintf(w, "  Applications: %d\n", result.Stats.Applications)
	fmt.Fprintf(w, "  Max depth: %d\n", result.Stats.MaxDepth)
	fmt.Fprintf(w, "  Max passes: %d\n", result.Stats.MaxPasses)
}
