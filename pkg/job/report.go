package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/percussion/deployer/pkg/cache"
	"github.com/percussion/deployer/pkg/errors"
	"github.com/percussion/deployer/pkg/observability"
)

// Kind is the type of job.
type Kind string

const (
	KindExport  Kind = "export"
	KindInstall Kind = "install"
)

// Status is the outcome of a job.
type Status string

const (
	StatusRunning  Status = "running"
	StatusSuccess  Status = "success"
	StatusWarnings Status = "warnings"
	StatusFailed   Status = "failed"
)

// Report describes one job run.
type Report struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	Status   Status    `json:"status"`
	Archive  string    `json:"archive"`
	DryRun   bool      `json:"dry_run,omitempty"`
	Entries  []Entry   `json:"entries,omitempty"`
	Bytes    int64     `json:"bytes,omitempty"`
	Warnings []Warning `json:"warnings,omitempty"`

	// CycleBreaks lists the "Type:ID" keys where install ordering broke a
	// dependency cycle.
	CycleBreaks []string `json:"cycle_breaks,omitempty"`

	// Installed counts the entries handed to installers, including on failure.
	Installed int `json:"installed,omitempty"`

	Error     string    `json:"error,omitempty"`
	ErrorCode string    `json:"error_code,omitempty"`
	FailedKey string    `json:"failed_key,omitempty"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
}

// Entry is one archived dependency in a report.
type Entry struct {
	Key      string `json:"key"`
	Name     string `json:"name,omitempty"`
	Included bool   `json:"included,omitempty"`
	Size     int64  `json:"size"`
}

// Warning is a soft failure recorded by a job.
type Warning struct {
	Key     string `json:"key"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Duration returns how long the job ran.
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

func (r *Runner) newReport(kind Kind, archivePath string) *Report {
	return &Report{
		ID:      uuid.NewString(),
		Kind:    kind,
		Status:  StatusRunning,
		Archive: archivePath,
		Started: time.Now().UTC(),
	}
}

// finish sets the final status, logs and persists the report.
func (r *Runner) finish(ctx context.Context, rep *Report, err error) {
	rep.Finished = time.Now().UTC()
	switch {
	case err != nil:
		rep.Status = StatusFailed
		rep.Error = errors.UserMessage(err)
		rep.ErrorCode = string(errors.GetCode(err))
		if errors.IsCanceled(err) {
			rep.ErrorCode = string(errors.ErrCodeCanceled)
		}
		if typ, id, ok := errors.FailedDependency(err); ok {
			rep.FailedKey = typ + ":" + id
		}
	case len(rep.Warnings) > 0 || len(rep.CycleBreaks) > 0:
		rep.Status = StatusWarnings
	default:
		rep.Status = StatusSuccess
	}

	observability.Jobs().OnJobComplete(ctx, string(rep.Kind), string(rep.Status), rep.Duration())
	logger := r.Logger.With("job", rep.ID, "kind", rep.Kind)
	if err != nil {
		logger.Error("job failed", "failed", rep.FailedKey, "err", err)
	} else {
		logger.Info("job complete", "status", rep.Status, "entries", len(rep.Entries), "duration", rep.Duration())
	}

	// A canceled job still records its report.
	if err := r.saveReport(context.WithoutCancel(ctx), rep); err != nil {
		logger.Warn("could not save report", "err", err)
	}
}

func (r *Runner) saveReport(ctx context.Context, rep *Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	key := r.Keyer.ReportKey(rep.ID)
	err = cache.RetryWithBackoff(ctx, func() error {
		return r.Cache.Set(ctx, key, data, r.Options.ReportTTL)
	})
	if err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, "report", len(data))
	return cache.RetryWithBackoff(ctx, func() error {
		return r.Cache.Set(ctx, r.Keyer.LatestKey(string(rep.Kind)), []byte(rep.ID), r.Options.ReportTTL)
	})
}

// LoadReport returns the persisted report of a job.
func (r *Runner) LoadReport(ctx context.Context, id string) (*Report, error) {
	data, hit, err := r.Cache.Get(ctx, r.Keyer.ReportKey(id))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load report %s", id)
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "report")
		return nil, errors.New(errors.ErrCodeNotFound, "no report for job %s", id)
	}
	observability.Cache().OnCacheHit(ctx, "report")
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode report %s", id)
	}
	return &rep, nil
}

// LatestReport returns the report of the most recent job of a kind.
func (r *Runner) LatestReport(ctx context.Context, kind Kind) (*Report, error) {
	id, hit, err := r.Cache.Get(ctx, r.Keyer.LatestKey(string(kind)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load latest %s report", kind)
	}
	if !hit {
		return nil, errors.New(errors.ErrCodeNotFound, "no %s job has run", kind)
	}
	return r.LoadReport(ctx, string(id))
}
