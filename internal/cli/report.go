package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/percussion/deployer/pkg/errors"
	"github.com/percussion/deployer/pkg/job"
)

// reportCommand shows a persisted job report.
func (c *CLI) reportCommand() *cobra.Command {
	var (
		latest string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "report [job-id]",
		Short: "Show the report of an export or install job",
		Example: `  deployer report 0b6f8d0e-3c55-4f7e-9d7a-6a3b1d2c9e41
  deployer report --latest install --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if (len(args) == 1) == (latest != "") {
				return errors.New(errors.ErrCodeInvalidInput, "give either a job id or --latest export|install")
			}
			rc, err := openReportCache(ctx, c.cfg.Reports)
			if err != nil {
				return err
			}
			runner := job.NewRunner(nil, rc, c.reportKeyer(), c.Logger, job.Options{})
			defer runner.Close()

			var rep *job.Report
			if latest != "" {
				kind := job.Kind(latest)
				if kind != job.KindExport && kind != job.KindInstall {
					return errors.New(errors.ErrCodeInvalidInput, "unknown job kind %q (want export or install)", latest)
				}
				rep, err = runner.LatestReport(ctx, kind)
			} else {
				rep, err = runner.LoadReport(ctx, args[0])
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			printReportDetails(rep)
			return nil
		},
	}

	cmd.Flags().StringVar(&latest, "latest", "", "show the most recent report of this job kind")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	return cmd
}

// printReport prints the outcome of a job that just ran.
func printReport(rep *job.Report) {
	if rep == nil {
		return
	}
	for _, w := range rep.Warnings {
		printWarning("skipped %s: %s", w.Key, w.Message)
	}
	for _, k := range rep.CycleBreaks {
		printWarning("cycle broken at %s", k)
	}

	switch {
	case rep.Status == job.StatusFailed:
		msg := fmt.Sprintf("%s failed", rep.Kind)
		if rep.FailedKey != "" {
			msg += " at " + rep.FailedKey
		}
		printError("%s", msg)
		if rep.Kind == job.KindInstall && rep.Installed > 0 {
			printDetail("%s installed before the failure", plural(rep.Installed, "entry"))
		}
	case rep.Kind == job.KindExport:
		printSuccess("Exported %s", plural(len(rep.Entries), "dependency"))
		printFile(rep.Archive)
	case rep.DryRun:
		printSuccess("Verified %s, nothing installed (dry run)", plural(len(rep.Entries), "entry"))
	default:
		printSuccess("Installed %s", plural(rep.Installed, "dependency"))
	}
	if rep.Bytes > 0 {
		printStats(formatBytes(rep.Bytes), rep.Duration().Round(time.Millisecond).String())
	}
	printDetail("report: %s", rep.ID)
}

func printReportDetails(rep *job.Report) {
	printTitle(fmt.Sprintf("%s %s", rep.Kind, rep.ID))
	printKeyValue("status", string(rep.Status))
	printKeyValue("archive", rep.Archive)
	printKeyValue("started", rep.Started.Format(time.RFC3339))
	printKeyValue("duration", rep.Duration().Round(time.Millisecond).String())
	if rep.DryRun {
		printKeyValue("dry run", "yes")
	}
	if rep.Kind == job.KindInstall {
		printKeyValue("installed", fmt.Sprint(rep.Installed))
	}
	if rep.Error != "" {
		printKeyValue("error", fmt.Sprintf("%s (%s)", rep.Error, rep.ErrorCode))
	}
	if rep.FailedKey != "" {
		printKeyValue("failed at", rep.FailedKey)
	}
	for i, e := range rep.Entries {
		printOrdered(i+1, e.Key, e.Name, e.Included, false)
	}
	for _, w := range rep.Warnings {
		printWarning("skipped %s: %s", w.Key, w.Message)
	}
	for _, k := range rep.CycleBreaks {
		printWarning("cycle broken at %s", k)
	}
}
