package job

import (
	"context"

	"github.com/percussion/deployer/pkg/archive"
	"github.com/percussion/deployer/pkg/deps"
	"github.com/percussion/deployer/pkg/errors"
	"github.com/percussion/deployer/pkg/observability"
)

// InstallRequest names an archive to install.
type InstallRequest struct {
	Archive string
	Auth    deps.AuthContext

	// DryRun stages and verifies the archive and checks that every entry
	// has an installer, without installing anything.
	DryRun bool

	// Progress is called after each verified entry; may be nil.
	Progress func(archive.Progress)
}

// Install installs the archive's entries in archive order.
//
// The whole archive is read, verified and unpacked into a staging directory
// first, and every entry's type must have an installer, so integrity and
// configuration failures surface before anything is installed. The staging
// directory is always removed.
func (r *Runner) Install(ctx context.Context, req InstallRequest) (*Report, error) {
	rep := r.newReport(KindInstall, req.Archive)
	rep.DryRun = req.DryRun
	err := r.install(ctx, req, rep)
	r.finish(ctx, rep, err)
	return rep, err
}

func (r *Runner) install(ctx context.Context, req InstallRequest, rep *Report) error {
	if req.Archive == "" {
		return errors.New(errors.ErrCodeInvalidPath, "install requires an archive path")
	}
	staged, err := archive.Stage(ctx, req.Archive, r.Options.StagingDir, archive.ReaderOptions{Progress: req.Progress})
	if err != nil {
		return err
	}
	defer func() {
		if err := staged.Remove(); err != nil {
			r.Logger.Warn("could not remove staging directory", "dir", staged.Dir, "err", err)
		}
	}()
	rep.Bytes = staged.Bytes
	r.Logger.Info("verified archive", "entries", len(staged.Entries), "bytes", staged.Bytes, "created", staged.Header.Created)

	installers := make([]deps.Installer, len(staged.Entries))
	for i, e := range staged.Entries {
		observability.Jobs().OnArchiveEntry(ctx, "read", e.Size)
		d := e.Dependency
		rep.Entries = append(rep.Entries, Entry{Key: d.Key().String(), Name: d.DisplayName, Included: d.IsIncluded, Size: e.Size})
		h, err := r.Manager.MustHandler(d.Type)
		if err != nil {
			return errors.AtDependency(string(d.Type), d.ID, err)
		}
		inst, ok := h.(deps.Installer)
		if !ok {
			return errors.AtDependency(string(d.Type), d.ID,
				errors.New(errors.ErrCodeUnsupported, "handler for %s cannot install", d.Type))
		}
		installers[i] = inst
	}
	if req.DryRun {
		return nil
	}

	for i := range staged.Entries {
		if err := ctx.Err(); err != nil {
			return errors.Canceled(err)
		}
		e := &staged.Entries[i]
		p, err := e.Payload()
		if err != nil {
			return errors.AtDependency(string(e.Dependency.Type), e.Dependency.ID, err)
		}
		if err := installers[i].Install(ctx, req.Auth, e.Dependency, p); err != nil {
			return errors.AtDependency(string(e.Dependency.Type), e.Dependency.ID, err)
		}
		rep.Installed++
		r.Logger.Debug("installed", "type", e.Dependency.Type, "id", e.Dependency.ID)
	}
	return nil
}
