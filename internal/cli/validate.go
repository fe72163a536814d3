package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/grimoire/internal/content"
	"github.com/roach88/grimoire/internal/library"
	"github.com/roach88/grimoire/internal/rules"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Testing bool
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                      `json:"valid"`
	Files      int                       `json:"files"`
	Effects    int                       `json:"effects"`
	Resources  int                       `json:"resources"`
	Namespaces []string                  `json:"namespaces"`
	Errors     []content.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <content-dir>",
		Short: "Validate content templates",
		Long: `Load every namespace under <content-dir> and check each effect
against the rule registry: subevent filters, condition and function ids,
invert arity and grant/revoke references.

Exit codes:
  0  content valid
  1  content invalid
  2  directory missing or unreadable`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Testing, "testing", false, "include the testing handler set")

	return cmd
}

func runValidate(opts *ValidateOptions, contentDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	reg, err := library.NewRegistry(opts.Testing)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build registry", err)
	}

	lib, err := content.Load(contentDir, content.WithLogger(opts.logger()))
	if err != nil {
		var loadErr *content.LoadError
		if !errors.As(err, &loadErr) {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load content", err)
		}
		_ = formatter.Error(loadErr.Code, loadErr.Error(), nil)
		if loadErr.Code == content.ErrCodeNotFound {
			return WrapExitError(ExitCommandError, "failed to load content", err)
		}
		return WrapExitError(ExitFailure, "content invalid", err)
	}

	formatter.VerboseLog("Loaded %d file(s) from %s", len(lib.Files()), contentDir)

	result := ValidationResult{
		Valid:      true,
		Files:      len(lib.Files()),
		Effects:    len(lib.Refs(rules.KindEffect)),
		Resources:  len(lib.Refs(rules.KindResource)),
		Namespaces: lib.Namespaces(),
		Errors:     lib.Check(reg),
	}
	if len(result.Errors) > 0 {
		result.Valid = false
		return outputValidationErrors(formatter, result)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Content valid: %d effect(s), %d resource(s) in %d file(s)\n",
		result.Effects, result.Resources, result.Files)
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "%s %s\n", e.Ref, e.Field)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", e.Code, e.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
