package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/multicast/internal/ir"
	"github.com/roach88/multicast/internal/persist"
	"github.com/roach88/multicast/internal/store"
)

// ChainOptions holds flags shared by the database commands.
type ChainOptions struct {
	*RootOptions
	Database string
	Name     string // save only
	To       string // show only
}

// ShowResult holds a stored chain and its record.
type ShowResult struct {
	Chain  store.ChainInfo `json:"chain"`
	Record ir.ChainRecord  `json:"record"`
}

// ListResult holds every stored chain.
type ListResult struct {
	Chains []store.ChainInfo `json:"chains"`
	Total  int               `json:"total"`
}

func addDatabaseFlag(cmd *cobra.Command, opts *ChainOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <file>",
		Short: "Validate a chain record and store it under a name",
		Long: `Validate a chain record document and store it in the database under
--name. Saving over an existing name replaces its record.

Examples:
  chainctl save chain.yaml --db ./chains.db --name clicks`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, opts)
	cmd.Flags().StringVar(&opts.Name, "name", "", "chain name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runSave(opts *ChainOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	rec, err := loadRecord(f, path)
	if err != nil {
		return err
	}
	if errs := persist.Validate(rec); len(errs) > 0 {
		return outputValidationErrors(f, ValidationResult{
			Entries: len(rec.Entries),
			Targets: len(rec.Targets),
			Errors:  errs,
		})
	}

	st, err := openStore(f, opts, false)
	if err != nil {
		return err
	}
	defer st.Close()

	info, err := st.SaveChain(context.Background(), opts.Name, rec)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to save chain", err)
	}

	if f.Format == "json" {
		return f.Success(info)
	}
	fmt.Fprintf(f.Writer, "%s Saved %s (%d entries, %s)\n", f.Mark(true), info.Name, info.Entries, info.RecordHash)
	return nil
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored chains",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	addDatabaseFlag(cmd, opts)
	return cmd
}

func runList(opts *ChainOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(f, opts, true)
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.ListChains(context.Background())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to list chains", err)
	}

	if f.Format == "json" {
		return f.Success(ListResult{Chains: infos, Total: len(infos)})
	}
	if len(infos) == 0 {
		fmt.Fprintln(f.Writer, "No chains stored.")
		return nil
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tENTRIES\tHASH")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Name, info.Entries, info.RecordHash)
	}
	return tw.Flush()
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a stored chain record",
		Long: `Print the record stored under a name as a YAML or canonical JSON
document. With --format json the record is wrapped in the response
envelope together with its stored metadata.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, opts)
	cmd.Flags().StringVar(&opts.To, "to", "yaml", "document format (json|yaml)")
	return cmd
}

func runShow(opts *ChainOptions, name string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	to, err := parseDocFormat(opts.To)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	st, err := openStore(f, opts, true)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, info, err := st.LoadChain(context.Background(), name)
	if errors.Is(err, store.ErrNotFound) {
		return f.Fail(ExitFailure, ErrCodeNoSuchChain, fmt.Sprintf("no chain named %q", name), nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to load chain", err)
	}
	f.VerboseLog("Loaded %s (id %s, seq %d)", info.Name, info.ID, info.Seq)

	if f.Format == "json" {
		return f.Success(ShowResult{Chain: info, Record: rec})
	}
	data, err := encodeDocument(rec, to)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGeneric, "failed to encode record", err)
	}
	_, err = f.Writer.Write(data)
	return err
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "delete <name>",
		Short:         "Delete a stored chain",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, opts)
	return cmd
}

func runDelete(opts *ChainOptions, name string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(f, opts, true)
	if err != nil {
		return err
	}
	defer st.Close()

	err = st.DeleteChain(context.Background(), name)
	if errors.Is(err, store.ErrNotFound) {
		return f.Fail(ExitFailure, ErrCodeNoSuchChain, fmt.Sprintf("no chain named %q", name), nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to delete chain", err)
	}

	if f.Format == "json" {
		return f.Success(map[string]string{"deleted": name})
	}
	fmt.Fprintf(f.Writer, "%s Deleted %s\n", f.Mark(true), name)
	return nil
}

// openStore opens the database named by --db. Only save may create it;
// the other commands fail on a missing file rather than open an empty one.
func openStore(f *OutputFormatter, opts *ChainOptions, mustExist bool) (*store.Store, error) {
	if mustExist {
		if _, err := os.Stat(opts.Database); err != nil {
			return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
		}
	}
	st, err := store.Open(opts.Database, store.WithLogger(opts.logger()))
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", err)
	}
	return st, nil
}
