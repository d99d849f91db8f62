package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/multicast/internal/ir"
	"github.com/roach88/multicast/internal/persist"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                      `json:"valid"`
	Entries int                       `json:"entries"`
	Targets int                       `json:"targets"`
	Errors  []persist.ValidationError `json:"errors,omitempty"`
}

// ConvertResult describes a converted document written to a file.
type ConvertResult struct {
	Output  string `json:"output"`
	Format  string `json:"format"`
	Entries int    `json:"entries"`
}

// HashResult holds a record's content hash.
type HashResult struct {
	RecordHash string `json:"record_hash"`
	Entries    int    `json:"entries"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a chain record document",
		Long: `Validate a chain record document (.json, .yaml or .yml) against the
record schema and check its entry links and side-table slots.

Exit codes:
  0 - Record is valid
  1 - Record is malformed
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Errors are reported through the formatter
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	rec, err := loadRecord(f, path)
	if err != nil {
		return err
	}
	f.VerboseLog("Decoded %d entries and %d targets from %s", len(rec.Entries), len(rec.Targets), path)

	result := ValidationResult{
		Valid:   true,
		Entries: len(rec.Entries),
		Targets: len(rec.Targets),
	}
	if errs := persist.Validate(rec); len(errs) > 0 {
		result.Valid = false
		result.Errors = errs
		return outputValidationErrors(f, result)
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "%s Record valid (%d entries, %d targets)\n", f.Mark(true), result.Entries, result.Targets)
	return nil
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(f *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if f.Format == "json" {
		if err := f.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintf(f.Writer, "%s Validation failed\n\n", f.Mark(false))
	for _, e := range errs {
		if e.Field != "" {
			fmt.Fprintf(f.Writer, "%s\n", e.Field)
		}
		fmt.Fprintf(f.Writer, "  %s: %s\n\n", e.Code, e.Message)
	}
	return exitErr
}

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	To     string
	Output string
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a chain record between JSON and YAML",
		Long: `Convert a chain record document to canonical JSON or YAML.

The document is written to stdout unless --output is given.

Examples:
  chainctl convert chain.yaml --to json
  chainctl convert chain.json --to yaml -o chain.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.To, "to", "json", "target format (json|yaml)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func runConvert(opts *ConvertOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	to, err := parseDocFormat(opts.To)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	rec, err := loadRecord(f, path)
	if err != nil {
		return err
	}

	data, err := encodeDocument(rec, to)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGeneric, "failed to encode record", err)
	}

	if opts.Output == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	if err := os.WriteFile(opts.Output, data, 0644); err != nil {
		return f.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write output", err)
	}
	f.VerboseLog("Wrote %d bytes to %s", len(data), opts.Output)

	result := ConvertResult{Output: opts.Output, Format: string(to), Entries: len(rec.Entries)}
	if f.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "%s Wrote %s (%s, %d entries)\n", f.Mark(true), result.Output, result.Format, result.Entries)
	return nil
}

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file>",
		Short: "Print the content hash of a chain record",
		Long: `Print the content hash of a chain record. Records that differ only in
formatting or key order hash the same.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHash(rootOpts, args[0], cmd)
		},
	}
}

func runHash(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	rec, err := loadRecord(f, path)
	if err != nil {
		return err
	}
	hash, err := ir.RecordID(rec)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGeneric, "failed to hash record", err)
	}

	if f.Format == "json" {
		return f.Success(HashResult{RecordHash: hash, Entries: len(rec.Entries)})
	}
	fmt.Fprintln(f.Writer, hash)
	return nil
}

// loadRecord decodes a record document, reporting failures through f.
func loadRecord(f *OutputFormatter, path string) (ir.ChainRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return ir.ChainRecord{}, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("record file not found: %s", path), nil)
	}
	rec, err := persist.DecodeFile(path)
	if err != nil {
		return ir.ChainRecord{}, f.Fail(ExitFailure, ErrCodeDecodeFailed, "failed to decode record", err)
	}
	return rec, nil
}

func parseDocFormat(s string) (persist.Format, error) {
	switch persist.Format(s) {
	case persist.FormatJSON, persist.FormatYAML:
		return persist.Format(s), nil
	}
	return "", fmt.Errorf("invalid document format %q: must be json or yaml", s)
}

// encodeDocument renders rec for output. Canonical JSON has no trailing
// newline of its own, so one is added for terminals and files.
func encodeDocument(rec ir.ChainRecord, to persist.Format) ([]byte, error) {
	data, err := persist.Encode(rec, to)
	if err != nil {
		return nil, err
	}
	if to == persist.FormatJSON {
		data = append(data, '\n')
	}
	return data, nil
}
