// Package job drives export and install jobs on top of the engine.
//
// A job is one single-threaded unit of work: an export resolves the closure
// of a selection, orders it for installation and writes an archive; an
// install stages and verifies a whole archive and then hands each entry to
// its type's installer in archive order. Independent jobs may run
// concurrently on the same [Runner]; see [Runner.RunAll].
//
// # Usage
//
//	runner := job.NewRunner(mgr, reports, nil, logger, job.Options{})
//	rep, err := runner.Export(ctx, job.ExportRequest{
//	    Roots:  []deps.Key{deps.K("ContentType", "article")},
//	    Auth:   auth.Local(),
//	    Output: "article.dpkg",
//	})
//
// Every export and install produces a [Report], returned to the caller and
// persisted in the runner's cache under the report's job id. The report
// status is success, warnings (dependencies skipped or cycles broken) or
// failed, in which case it names the failing dependency and the cause.
//
// Hard failures leave nothing behind: an export that fails leaves no file
// at the output path, and an install never touches the target system until
// the entire archive has been verified.
package job
