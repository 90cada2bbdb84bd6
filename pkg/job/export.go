package job

import (
	"context"

	"github.com/percussion/deployer/pkg/archive"
	"github.com/percussion/deployer/pkg/deps"
	"github.com/percussion/deployer/pkg/errors"
	"github.com/percussion/deployer/pkg/observability"
)

// ExportRequest selects what to export and where.
type ExportRequest struct {
	// Roots are the objects selected explicitly.
	Roots []deps.Key

	// Types selects every object of each type, as enumerated by its handler.
	Types []deps.Type

	Auth   deps.AuthContext
	Output string

	// Progress is called after each archived entry; may be nil.
	Progress func(archive.Progress)
}

// Export resolves, orders and archives the selection. The returned report is
// non-nil even when err is not; on error no file is left at Output.
func (r *Runner) Export(ctx context.Context, req ExportRequest) (*Report, error) {
	rep := r.newReport(KindExport, req.Output)
	err := r.export(ctx, req, rep)
	r.finish(ctx, rep, err)
	return rep, err
}

func (r *Runner) export(ctx context.Context, req ExportRequest, rep *Report) error {
	if req.Output == "" {
		return errors.New(errors.ErrCodeInvalidPath, "export requires an output path")
	}
	plan, err := r.Plan(ctx, req.Auth, req.Roots, req.Types)
	if err != nil {
		return err
	}
	for _, w := range plan.Closure.Warnings {
		rep.Warnings = append(rep.Warnings, Warning{
			Key:     w.Key.String(),
			Code:    string(errors.GetCode(w.Err)),
			Message: errors.UserMessage(w.Err),
		})
	}
	for _, id := range plan.Ordering.Broken {
		n, _ := plan.Graph().Node(id)
		rep.CycleBreaks = append(rep.CycleBreaks, n.Key().String())
	}

	a, err := archive.Create(req.Output, archive.WriterOptions{
		Compression: r.Options.Compression,
		Generator:   r.Options.Generator,
		Progress:    req.Progress,
	})
	if err != nil {
		return err
	}
	defer a.Abort()

	for _, d := range plan.Dependencies() {
		if err := ctx.Err(); err != nil {
			return errors.Canceled(err)
		}
		p, err := r.exportOne(ctx, req.Auth, d)
		if err != nil {
			return err
		}
		e := &archive.Entry{Dependency: d, Payload: p}
		if err := a.WriteEntry(ctx, e); err != nil {
			return err
		}
		observability.Jobs().OnArchiveEntry(ctx, "write", e.Size)
		rep.Entries = append(rep.Entries, Entry{Key: d.Key().String(), Name: d.DisplayName, Included: d.IsIncluded, Size: e.Size})
	}
	if err := a.Commit(); err != nil {
		return err
	}
	rep.Bytes = a.Count()
	return nil
}

// exportOne serializes one dependency through its type's exporter. Any
// failure here is hard: an archive missing a resolved dependency would not
// install consistently.
func (r *Runner) exportOne(ctx context.Context, authCtx deps.AuthContext, d *deps.Dependency) (*deps.Payload, error) {
	h, err := r.Manager.MustHandler(d.Type)
	if err != nil {
		return nil, errors.AtDependency(string(d.Type), d.ID, err)
	}
	exp, ok := h.(deps.Exporter)
	if !ok {
		return nil, errors.AtDependency(string(d.Type), d.ID,
			errors.New(errors.ErrCodeUnsupported, "handler for %s cannot export", d.Type))
	}
	p, err := exp.Export(ctx, authCtx, d.ID)
	if err != nil {
		return nil, errors.AtDependency(string(d.Type), d.ID, err)
	}
	if p == nil {
		p = &deps.Payload{}
	}
	return p, nil
}
