package cli

import (
	"github.com/spf13/cobra"

	"github.com/percussion/deployer/pkg/archive"
	"github.com/percussion/deployer/pkg/auth"
	"github.com/percussion/deployer/pkg/errors"
	"github.com/percussion/deployer/pkg/job"
)

// exportCommand writes an archive of a selection and its dependencies.
func (c *CLI) exportCommand() *cobra.Command {
	var (
		output      string
		allOf       []string
		compression string
	)

	cmd := &cobra.Command{
		Use:   "export [Type:ID...] -o archive",
		Short: "Export objects and their dependencies to an archive",
		Long: `Resolve the objects and everything they depend on, order them for
installation, and write them to a single archive. Dependencies that cannot be
found are skipped with a warning; any other failure aborts the export and
leaves no archive behind.`,
		Example: `  deployer export ContentType:article -o article.dpkg
  deployer export --all-of Workflow -o workflows.dpkg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			roots, err := parseKeys(args)
			if err != nil {
				return err
			}
			if output == "" {
				return errors.New(errors.ErrCodeInvalidPath, "export requires an output path (-o)")
			}
			e, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			if cmd.Flags().Changed("compression") {
				comp, err := archive.ParseCompression(compression)
				if err != nil {
					return err
				}
				e.runner.Options.Compression = comp
			}

			spinner := newSpinner(ctx, "Resolving dependencies...")
			spinner.Start()
			rep, err := e.runner.Export(ctx, job.ExportRequest{
				Roots:  roots,
				Types:  toTypes(allOf),
				Auth:   auth.Local(),
				Output: output,
				Progress: func(p archive.Progress) {
					spinner.SetMessage("Archived %s (%s)", plural(p.Entries, "entry"), formatBytes(p.Bytes))
				},
			})
			spinner.Stop()
			printReport(rep)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "archive `file` to write")
	cmd.Flags().StringSliceVar(&allOf, "all-of", nil, "select every object of these types")
	cmd.Flags().StringVar(&compression, "compression", "", "archive compression: none or zstd")

	return cmd
}
