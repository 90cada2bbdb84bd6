package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/percussion/deployer/pkg/archive"
	"github.com/percussion/deployer/pkg/auth"
	"github.com/percussion/deployer/pkg/job"
)

// installCommand installs an archive into the configured store.
func (c *CLI) installCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "install <archive>",
		Short: "Install an archive in dependency order",
		Long: `Verify and stage the whole archive, then install its entries in the order
they were archived. Nothing is installed when the archive is damaged or an
entry's type cannot be installed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			spinner := newSpinner(ctx, "Staging archive...")
			spinner.Start()
			rep, err := e.runner.Install(ctx, job.InstallRequest{
				Archive: args[0],
				Auth:    auth.Local(),
				DryRun:  dryRun,
				Progress: func(p archive.Progress) {
					spinner.SetMessage("Verified %s (%s)", plural(p.Entries, "entry"), formatBytes(p.Bytes))
				},
			})
			spinner.Stop()
			printReport(rep)
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "verify and stage the archive without installing")

	return cmd
}

// verifyCommand checks an archive without a dependency map or store.
func (c *CLI) verifyCommand() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "verify <archive>",
		Short: "Check an archive's integrity",
		Long: `Read every entry of an archive and check its declared lengths and
checksum. No dependency map or object store is needed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return verifyArchive(cmd.Context(), args[0], list)
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list the archived entries")

	return cmd
}

func verifyArchive(ctx context.Context, path string, list bool) error {
	r, err := archive.Open(path, archive.ReaderOptions{})
	if err != nil {
		return err
	}
	defer r.Close()

	h := r.Header()
	for i := 1; ; i++ {
		e, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			printError("%s is damaged", path)
			return err
		}
		if list {
			printOrdered(i, e.Key().String(), displayName(e), e.Dependency.IsIncluded, false)
		}
	}

	printSuccess("%s is intact", path)
	printKeyValue("format", h.FormatVersion)
	printKeyValue("created", h.Created.Format("2006-01-02 15:04:05Z07:00"))
	printKeyValue("compression", string(h.Compression))
	if h.Generator != "" {
		printKeyValue("generator", h.Generator)
	}
	printStats(plural(r.Entries(), "entry"), formatBytes(r.Count()))
	return nil
}

func displayName(e *archive.Entry) string {
	if e.Dependency.DisplayName == e.Dependency.ID {
		return ""
	}
	return e.Dependency.DisplayName
}
