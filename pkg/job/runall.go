package job

import (
	"context"
	stderrors "errors"

	"golang.org/x/sync/errgroup"
)

// Job is one export or install bound to its request.
type Job func(ctx context.Context) (*Report, error)

// ExportJob returns req as a Job.
func (r *Runner) ExportJob(req ExportRequest) Job {
	return func(ctx context.Context) (*Report, error) { return r.Export(ctx, req) }
}

// InstallJob returns req as a Job.
func (r *Runner) InstallJob(req InstallRequest) Job {
	return func(ctx context.Context) (*Report, error) { return r.Install(ctx, req) }
}

// RunAll runs independent jobs concurrently, at most limit at a time (no
// limit if limit <= 0). A failing job does not stop the others. Reports are
// returned in job order; the error joins every job's error.
func RunAll(ctx context.Context, jobs []Job, limit int) ([]*Report, error) {
	reports := make([]*Report, len(jobs))
	errs := make([]error, len(jobs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, j := range jobs {
		g.Go(func() error {
			reports[i], errs[i] = j(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return reports, stderrors.Join(errs...)
}
